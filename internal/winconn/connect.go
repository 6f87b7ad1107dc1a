package winconn

import (
	"context"
	"fmt"
	"time"

	"github.com/oba-ldap/winsync/internal/ldap"
)

// connectParams is a snapshot of the settings used by one connect attempt.
type connectParams struct {
	host       string
	port       int
	bindDN     string
	bindMethod BindMethod
	transport  Transport
	timeout    time.Duration
	password   []byte
	prevErr    ldap.ResultCode
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Connect opens and binds the transport. It returns nil at once when the
// connection is already open. After a successful bind it probes whether
// the peer supports incremental search and whether it is Windows Server
// 2003 or later, and reports both to the agreement.
func (c *Connection) Connect(ctx context.Context) error {
	p, err := c.prepareConnect()
	if err != nil || p == nil {
		return err
	}

	handle := c.opts.Watchdog.Start("connect")
	sess, err := c.open(ctx, p)
	if err != nil {
		handle.Stop()
		return err
	}

	c.mu.Lock()
	c.lastOp = OpBind
	c.mu.Unlock()

	bctx, cancel := withTimeout(ctx, p.timeout)
	code, bindErr := c.bindAndCheck(bctx, sess, p.bindMethod, p.bindDN, p.password, p.prevErr)
	cancel()
	handle.Stop()
	if bindErr != nil {
		c.closeSession(sess)
		c.mu.Lock()
		c.lastErr = code
		c.state = StateDisconnected
		c.status = StatusDisconnected
		c.mu.Unlock()
		return bindErr
	}

	c.mu.Lock()
	if c.goneLocked() || c.state == StateConnected {
		// Deleted or connected by another caller while binding.
		deleted := c.goneLocked()
		c.mu.Unlock()
		c.closeSession(sess)
		if deleted {
			return ErrDeleted
		}
		return nil
	}
	c.session = sess
	c.state = StateConnected
	c.status = StatusConnected
	c.lastErr = ldap.ResultSuccess
	c.mu.Unlock()

	c.log.Debug("connected", "host", p.host, "port", p.port, "transport", p.transport.String())

	dirsync, err := c.SupportsDirSync(ctx)
	c.agreement.SetIsNT4(err == nil && dirsync == CapabilityUnsupported)

	win2k3, err := c.IsWin2k3(ctx)
	c.agreement.SetIsWin2k3(err == nil && win2k3 == CapabilitySupported)

	if !c.IsConnected() {
		return &OperationError{Op: OpSearch, Code: ldap.ResultServerDown, Err: ErrNotConnected}
	}
	return nil
}

// prepareConnect validates the settings under the lock. It returns nil
// params and a nil error when there is nothing to do.
func (c *Connection) prepareConnect() (*connectParams, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.goneLocked() {
		return nil, ErrDeleted
	}
	if c.state == StateConnected {
		return nil, nil
	}

	if c.refresh {
		c.bindDN = c.agreement.BindDN()
		c.bindMethod = c.agreement.BindMethod()
		c.transport = c.agreement.Transport()
		c.timeout = c.agreement.Timeout()
		c.password = nil
		c.refresh = false
	}

	c.lastOp = OpInit
	if c.password == nil {
		pw, err := c.decodeCredentials()
		if err != nil {
			c.lastErr = ldap.ResultInvalidCredentials
			c.state = StateDisconnected
			c.status = StatusDisconnected
			c.log.Error("decoding of the credentials failed", "error", err)
			return nil, &OperationError{
				Op:      OpInit,
				Code:    ldap.ResultInvalidCredentials,
				Message: err.Error(),
				Err:     ErrCredentialsDecode,
			}
		}
		c.password = pw
	}

	if c.transport.Secure() && c.opts.TLS == nil {
		c.lastErr = ldap.ResultInappropriateAuthentication
		c.status = StatusDisconnected
		c.log.Error("secure transport requested but TLS is not initialized", "transport", c.transport.String())
		return nil, &OperationError{
			Op:   OpInit,
			Code: ldap.ResultInappropriateAuthentication,
			Err:  ErrTLSNotEnabled,
		}
	}

	c.status = StatusBinding
	return &connectParams{
		host:       c.host,
		port:       c.port,
		bindDN:     c.bindDN,
		bindMethod: c.bindMethod,
		transport:  c.transport,
		timeout:    c.timeout,
		password:   c.password,
		prevErr:    c.lastErr,
	}, nil
}

func (c *Connection) decodeCredentials() ([]byte, error) {
	stored := c.agreement.Credentials()
	if c.opts.Credentials == nil {
		return []byte(stored), nil
	}
	pw, err := c.opts.Credentials.Decode(stored)
	if err != nil {
		return nil, err
	}
	if pw == nil {
		pw = []byte{}
	}
	return pw, nil
}

func (c *Connection) open(ctx context.Context, p *connectParams) (Session, error) {
	dctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	sess, err := c.dialer.Dial(dctx, DialOptions{
		Host:      p.host,
		Port:      p.port,
		Transport: p.transport,
		TLS:       c.opts.TLS,
		Timeout:   p.timeout,
	})
	if err == nil {
		return sess, nil
	}

	c.mu.Lock()
	c.lastOp = OpInit
	c.lastErr = ldap.ResultLocalError
	c.state = StateDisconnected
	c.status = StatusDisconnected
	c.mu.Unlock()

	c.log.Error("could not open connection", "host", p.host, "port", p.port, "error", err)
	return nil, &OperationError{
		Op:      OpInit,
		Code:    ldap.ResultLocalError,
		Message: err.Error(),
		Err:     fmt.Errorf("%w: %w", ErrLocal, err),
	}
}

// bindAndCheck binds sess and inspects the password policy controls
// returned on success. prevErr is the last error before this attempt; a
// failure repeating it is logged at trace level only.
func (c *Connection) bindAndCheck(ctx context.Context, sess Session, method BindMethod, dn string, password []byte, prevErr ldap.ResultCode) (ldap.ResultCode, error) {
	req := &ldap.BindRequest{Name: dn, Mechanism: method.Mechanism()}
	if method == BindSimple || method == BindDigestMD5 {
		req.Password = string(password)
	}
	mech := method.Mechanism()

	resp, err := sess.Bind(ctx, req)
	var res *ldap.LDAPResult
	if resp != nil {
		res = &resp.LDAPResult
	}
	v := classify(OpBind, res, err)

	if v.outcome != OutcomeSuccess {
		if v.code != prevErr {
			c.log.Error("bind failed",
				"mechanism", mech, "code", int(v.code), "error", v.code.String(), "message", v.message)
		} else {
			c.log.Trace("bind failed",
				"mechanism", mech, "code", int(v.code), "error", v.code.String(), "message", v.message)
		}
		if v.outcome == OutcomeTimeout {
			return v.code, &OperationError{Op: OpBind, Code: v.code, Message: v.message, Err: ErrTimeout}
		}
		return v.code, &OperationError{Op: OpBind, Code: v.code, Message: v.message, Err: ErrOperationFailed}
	}

	if prevErr != ldap.ResultSuccess {
		c.log.Info("bind resumed", "mechanism", mech)
	}
	if ldap.FindControl(resp.Controls, ldap.OIDPasswordExpired) != nil {
		c.log.Error("successfully bound but the password has expired", "dn", dn, "mechanism", mech)
	}
	if ctrl := ldap.FindControl(resp.Controls, ldap.OIDPasswordExpiring); ctrl != nil {
		c.log.Warn("successfully bound but the password is expiring",
			"dn", dn, "mechanism", mech, "seconds", string(ctrl.Value))
	}
	return ldap.ResultSuccess, nil
}
