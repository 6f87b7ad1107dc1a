package winconn

import (
	"context"

	"github.com/oba-ldap/winsync/internal/ldap"
)

// roundTrip performs one request on sess. It returns the result when the
// server answered.
type roundTrip func(ctx context.Context, sess Session) (*ldap.LDAPResult, error)

// perform runs rt on the current session under the request timeout and
// classifies its result. The lock is not held while rt runs.
func (c *Connection) perform(ctx context.Context, op OpKind, dn, extOID string, rt roundTrip) error {
	c.mu.Lock()
	if err := c.checkLocked(op); err != nil {
		c.mu.Unlock()
		return err
	}
	sess := c.session
	timeout := c.timeout
	c.lastOp = op
	c.status = statusFor(op)
	c.mu.Unlock()

	rctx, cancel := withTimeout(ctx, timeout)
	handle := c.opts.Watchdog.Start(op.String())
	res, err := rt(rctx, sess)
	handle.Stop()
	cancel()

	v := classify(op, res, err)

	c.mu.Lock()
	c.lastErr = v.code
	var stale Session
	if v.disconnect {
		// Another caller may already have replaced the session.
		if c.session == sess {
			stale = c.detachLocked()
		}
	} else if c.session == sess {
		if c.lingerActive {
			c.status = StatusLingering
		} else {
			c.status = StatusConnected
		}
	}
	c.mu.Unlock()

	c.closeSession(stale)
	c.logResult(op, dn, extOID, v)
	return v.err(op)
}

func (c *Connection) logResult(op OpKind, dn, extOID string, v verdict) {
	if v.code == ldap.ResultSuccess {
		return
	}
	if v.code == ldap.ResultConstraintViolation {
		c.log.Error("received error when attempting to "+op.String()+" entry: "+
			"please correct the attribute specified in the error message",
			"dn", dn, "code", int(v.code), "message", v.message)
		return
	}
	kv := []interface{}{"op", op.String(), "dn", dn, "code", int(v.code), "error", v.code.String(), "message", v.message}
	if extOID != "" {
		kv = append(kv, "extop", extOID)
	}
	c.log.Debug("operation did not succeed", kv...)
}

func invalidRequest(op OpKind, err error) error {
	return &OperationError{Op: op, Code: ldap.ResultParamError, Message: err.Error(), Err: ErrOperationFailed}
}

func resultOf(resp *ldap.Response) *ldap.LDAPResult {
	if resp == nil {
		return nil
	}
	return &resp.LDAPResult
}

// Add sends an add request. An entry that already exists counts as
// success; LastError then still reports entryAlreadyExists.
func (c *Connection) Add(ctx context.Context, req *ldap.AddRequest) (*ldap.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidRequest(OpAdd, err)
	}
	var resp *ldap.Response
	err := c.perform(ctx, OpAdd, req.Entry, "", func(ctx context.Context, sess Session) (*ldap.LDAPResult, error) {
		var err error
		resp, err = sess.Add(ctx, req)
		return resultOf(resp), err
	})
	return resp, err
}

// Modify sends a modify request. unwillingToPerform counts as success.
func (c *Connection) Modify(ctx context.Context, req *ldap.ModifyRequest) (*ldap.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidRequest(OpModify, err)
	}
	var resp *ldap.Response
	err := c.perform(ctx, OpModify, req.Object, "", func(ctx context.Context, sess Session) (*ldap.LDAPResult, error) {
		var err error
		resp, err = sess.Modify(ctx, req)
		return resultOf(resp), err
	})
	return resp, err
}

// DeleteEntry sends a delete request. An entry that does not exist counts
// as success.
func (c *Connection) DeleteEntry(ctx context.Context, req *ldap.DeleteRequest) (*ldap.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidRequest(OpDelete, err)
	}
	var resp *ldap.Response
	err := c.perform(ctx, OpDelete, req.DN, "", func(ctx context.Context, sess Session) (*ldap.LDAPResult, error) {
		var err error
		resp, err = sess.Delete(ctx, req)
		return resultOf(resp), err
	})
	return resp, err
}

// Rename sends a modify DN request.
func (c *Connection) Rename(ctx context.Context, req *ldap.ModifyDNRequest) (*ldap.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidRequest(OpRename, err)
	}
	var resp *ldap.Response
	err := c.perform(ctx, OpRename, req.Entry, "", func(ctx context.Context, sess Session) (*ldap.LDAPResult, error) {
		var err error
		resp, err = sess.ModifyDN(ctx, req)
		return resultOf(resp), err
	})
	return resp, err
}

// Extended sends an extended operation and returns the peer's response.
func (c *Connection) Extended(ctx context.Context, req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
	var resp *ldap.ExtendedResponse
	err := c.perform(ctx, OpExtended, "", req.Name, func(ctx context.Context, sess Session) (*ldap.LDAPResult, error) {
		var err error
		resp, err = sess.Extended(ctx, req)
		if resp == nil {
			return nil, err
		}
		return &resp.LDAPResult, err
	})
	return resp, err
}

// search runs one search round trip.
func (c *Connection) search(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	var result *ldap.SearchResult
	err := c.perform(ctx, OpSearch, req.BaseObject, "", func(ctx context.Context, sess Session) (*ldap.LDAPResult, error) {
		r, err := sess.Search(ctx, req)
		if r == nil {
			return nil, err
		}
		result = r
		return &r.Result, err
	})
	return result, err
}
