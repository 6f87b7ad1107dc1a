package winconn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oba-ldap/winsync/internal/ldap"
)

func TestClassify(t *testing.T) {
	result := func(code ldap.ResultCode) *ldap.LDAPResult {
		r := ldap.NewErrorResult(code, "")
		return &r
	}

	tests := []struct {
		name       string
		op         OpKind
		res        *ldap.LDAPResult
		err        error
		outcome    Outcome
		code       ldap.ResultCode
		disconnect bool
	}{
		{"success", OpAdd, result(ldap.ResultSuccess), nil, OutcomeSuccess, ldap.ResultSuccess, false},
		{"modify unwilling", OpModify, result(ldap.ResultUnwillingToPerform), nil, OutcomeSuccess, ldap.ResultSuccess, false},
		{"add unwilling", OpAdd, result(ldap.ResultUnwillingToPerform), nil, OutcomeFailed, ldap.ResultUnwillingToPerform, false},
		{"add exists", OpAdd, result(ldap.ResultEntryAlreadyExists), nil, OutcomeSuccess, ldap.ResultEntryAlreadyExists, false},
		{"modify exists", OpModify, result(ldap.ResultEntryAlreadyExists), nil, OutcomeFailed, ldap.ResultEntryAlreadyExists, false},
		{"delete missing", OpDelete, result(ldap.ResultNoSuchObject), nil, OutcomeSuccess, ldap.ResultSuccess, false},
		{"search missing", OpSearch, result(ldap.ResultNoSuchObject), nil, OutcomeFailed, ldap.ResultNoSuchObject, false},
		{"access denied", OpModify, result(ldap.ResultInsufficientAccessRights), nil, OutcomeFailed, ldap.ResultInsufficientAccessRights, false},
		{"server down result", OpAdd, result(ldap.ResultServerDown), nil, OutcomeNotConnected, ldap.ResultServerDown, true},
		{"invalid credentials result", OpSearch, result(ldap.ResultInvalidCredentials), nil, OutcomeNotConnected, ldap.ResultInvalidCredentials, true},
		{"no response", OpAdd, nil, nil, OutcomeTimeout, ldap.ResultTimeout, false},
		{"local server down", OpAdd, nil, ldap.NewLocalError(ldap.ResultServerDown, errors.New("eof")), OutcomeNotConnected, ldap.ResultServerDown, true},
		{"local connect error", OpAdd, nil, ldap.NewLocalError(ldap.ResultConnectError, nil), OutcomeNotConnected, ldap.ResultConnectError, true},
		{"local decoding error", OpAdd, nil, ldap.NewLocalError(ldap.ResultDecodingError, nil), OutcomeFailed, ldap.ResultDecodingError, false},
		{"local timeout", OpAdd, nil, ldap.NewLocalError(ldap.ResultTimeout, nil), OutcomeTimeout, ldap.ResultTimeout, false},
		{"unknown error", OpAdd, nil, errors.New("boom"), OutcomeNotConnected, ldap.ResultLocalError, true},
		{"deadline", OpAdd, nil, context.DeadlineExceeded, OutcomeTimeout, ldap.ResultTimeout, false},
		{"cancelled", OpAdd, nil, context.Canceled, OutcomeFailed, ldap.ResultUserCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := classify(tt.op, tt.res, tt.err)
			assert.Equal(t, tt.outcome, v.outcome)
			assert.Equal(t, tt.code, v.code)
			assert.Equal(t, tt.disconnect, v.disconnect)
		})
	}
}

func TestClassifyNormalizesDiagnostic(t *testing.T) {
	res := ldap.NewErrorResult(ldap.ResultConstraintViolation, "0000052D: Constraint\r\nviolation")
	v := classify(OpModify, &res, nil)
	assert.Equal(t, "0000052D: Constraint  violation", v.message)
}

func respondWith(code ldap.ResultCode) func(context.Context, OpKind, string) (*ldap.Response, error) {
	return func(context.Context, OpKind, string) (*ldap.Response, error) {
		return &ldap.Response{LDAPResult: ldap.NewErrorResult(code, "")}, nil
	}
}

func addRequest() *ldap.AddRequest {
	req := &ldap.AddRequest{Entry: "cn=alice,ou=People,dc=example,dc=com"}
	req.AddStringAttribute("objectClass", "top", "person", "user")
	return req
}

func modifyRequest() *ldap.ModifyRequest {
	req := &ldap.ModifyRequest{Object: "cn=alice,ou=People,dc=example,dc=com"}
	req.AddStringModification(ldap.ModifyOperationReplace, "unicodePwd", "\"new\"")
	return req
}

func TestDispatchTolerances(t *testing.T) {
	ctx := context.Background()
	c, _, dialer := connectedTestConnection(t, Options{})
	sess := dialer.last()

	sess.writeFn = respondWith(ldap.ResultUnwillingToPerform)
	_, err := c.Modify(ctx, modifyRequest())
	require.NoError(t, err)
	op, code := c.LastError()
	assert.Equal(t, OpModify, op)
	assert.Equal(t, ldap.ResultSuccess, code)

	sess.writeFn = respondWith(ldap.ResultNoSuchObject)
	_, err = c.DeleteEntry(ctx, &ldap.DeleteRequest{DN: "cn=gone,dc=example,dc=com"})
	require.NoError(t, err)
	op, code = c.LastError()
	assert.Equal(t, OpDelete, op)
	assert.Equal(t, ldap.ResultSuccess, code)

	sess.writeFn = respondWith(ldap.ResultEntryAlreadyExists)
	resp, err := c.Add(ctx, addRequest())
	require.NoError(t, err)
	assert.Equal(t, ldap.ResultEntryAlreadyExists, resp.ResultCode)
	op, code = c.LastError()
	assert.Equal(t, OpAdd, op)
	assert.Equal(t, ldap.ResultEntryAlreadyExists, code)

	assert.True(t, c.IsConnected())
	assertInvariants(t, c)
}

func TestDispatchFailureStaysConnected(t *testing.T) {
	c, _, dialer := connectedTestConnection(t, Options{})
	dialer.last().writeFn = respondWith(ldap.ResultInsufficientAccessRights)

	_, err := c.Rename(context.Background(), &ldap.ModifyDNRequest{
		Entry:        "cn=alice,ou=People,dc=example,dc=com",
		NewRDN:       "cn=alicia",
		DeleteOldRDN: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.Equal(t, OutcomeFailed, OutcomeOf(err))

	assert.True(t, c.IsConnected())
	assert.Equal(t, StatusConnected, c.Status())
	op, code := c.LastError()
	assert.Equal(t, OpRename, op)
	assert.Equal(t, ldap.ResultInsufficientAccessRights, code)
}

func TestDispatchDisconnectAndReconnect(t *testing.T) {
	ctx := context.Background()
	c, _, dialer := connectedTestConnection(t, Options{})
	sess := dialer.last()
	sess.writeFn = func(context.Context, OpKind, string) (*ldap.Response, error) {
		return nil, ldap.NewLocalError(ldap.ResultServerDown, errors.New("connection reset by peer"))
	}

	_, err := c.Add(ctx, addRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, OutcomeNotConnected, OutcomeOf(err))
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 1, sess.closeCount())
	assertInvariants(t, c)

	require.NoError(t, c.Connect(ctx))
	assert.True(t, c.IsConnected())
	assert.Equal(t, 2, dialer.dialCount())
	assertInvariants(t, c)

	_, err = c.Add(ctx, addRequest())
	require.NoError(t, err)
}

func TestDispatchTimeout(t *testing.T) {
	c, _, dialer := connectedTestConnection(t, Options{})
	c.SetTimeout(20 * time.Millisecond)
	dialer.last().writeFn = func(ctx context.Context, _ OpKind, _ string) (*ldap.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := c.Modify(context.Background(), modifyRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, OutcomeTimeout, OutcomeOf(err))
	assert.True(t, c.IsConnected())

	_, code := c.LastError()
	assert.Equal(t, ldap.ResultTimeout, code)
}

func TestDispatchNotConnected(t *testing.T) {
	c, _, dialer := newTestConnection(t, Options{})

	_, err := c.Add(context.Background(), addRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, 0, dialer.dialCount())

	op, code := c.LastError()
	assert.Equal(t, OpAdd, op)
	assert.Equal(t, ldap.ResultServerDown, code)
}

func TestDispatchInvalidRequest(t *testing.T) {
	c, _, dialer := connectedTestConnection(t, Options{})

	_, err := c.Modify(context.Background(), &ldap.ModifyRequest{Object: "cn=alice"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperationFailed)
	assert.Equal(t, 0, dialer.last().writes)
}

func TestExtended(t *testing.T) {
	c, _, dialer := connectedTestConnection(t, Options{})
	dialer.last().extFn = func(req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
		return &ldap.ExtendedResponse{Name: req.Name, Value: []byte("ok")}, nil
	}

	resp, err := c.Extended(context.Background(), &ldap.ExtendedRequest{Name: ldap.OIDStartReplicationRequest})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), resp.Value)

	op, _ := c.LastError()
	assert.Equal(t, OpExtended, op)
}

func TestOperationErrorMessage(t *testing.T) {
	err := &OperationError{Op: OpAdd, Code: ldap.ResultConstraintViolation, Message: "bad value", Err: ErrOperationFailed}
	assert.Contains(t, err.Error(), "add operation")
	assert.Contains(t, err.Error(), "constraintViolation")
	assert.Contains(t, err.Error(), "bad value")
	assert.ErrorIs(t, err, ErrOperationFailed)
}
