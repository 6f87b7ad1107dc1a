package winconn

import (
	"context"

	"github.com/oba-ldap/winsync/internal/ldap"
)

// CheckUserPassword verifies a password by binding as dn on the agreement's
// connection, then binds again with the agreement's identity. It connects
// first when needed. A rejected password is returned as an
// *OperationError carrying the bind result code.
func (c *Connection) CheckUserPassword(ctx context.Context, dn string, password []byte) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	if err := c.checkLocked(OpBind); err != nil {
		c.mu.Unlock()
		return err
	}
	sess := c.session
	timeout := c.timeout
	method := c.bindMethod
	bindDN := c.bindDN
	own := c.password
	c.lastOp = OpBind
	c.status = StatusBinding
	c.mu.Unlock()

	handle := c.opts.Watchdog.Start("check password")
	defer handle.Stop()

	bctx, cancel := withTimeout(ctx, timeout)
	resp, err := sess.Bind(bctx, &ldap.BindRequest{
		Name:      dn,
		Password:  string(password),
		Mechanism: ldap.MechanismSimple,
	})
	cancel()
	var res *ldap.LDAPResult
	if resp != nil {
		res = &resp.LDAPResult
	}
	v := classify(OpBind, res, err)
	if v.outcome != OutcomeSuccess {
		c.log.Debug("password check failed", "dn", dn, "code", int(v.code), "message", v.message)
	}

	rctx, cancel := withTimeout(ctx, timeout)
	code, rebindErr := c.bindAndCheck(rctx, sess, method, bindDN, own, ldap.ResultSuccess)
	cancel()

	c.mu.Lock()
	var stale Session
	if rebindErr != nil {
		c.lastErr = code
		if c.session == sess {
			stale = c.detachLocked()
		}
	} else if c.session == sess {
		c.status = StatusConnected
	}
	c.mu.Unlock()
	c.closeSession(stale)

	if v.outcome == OutcomeSuccess {
		return nil
	}
	sentinel := ErrOperationFailed
	if v.outcome == OutcomeTimeout {
		sentinel = ErrTimeout
	}
	return &OperationError{Op: OpBind, Code: v.code, Message: v.message, Err: sentinel}
}
