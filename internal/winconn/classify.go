package winconn

import (
	"context"
	"errors"

	"github.com/oba-ldap/winsync/internal/ldap"
)

// disconnectCodes are the result codes after which the transport is no
// longer trusted.
var disconnectCodes = map[ldap.ResultCode]bool{
	ldap.ResultServerDown:                  true,
	ldap.ResultConnectError:                true,
	ldap.ResultInvalidCredentials:          true,
	ldap.ResultInappropriateAuthentication: true,
	ldap.ResultLocalError:                  true,
}

// IsDisconnectCode reports whether code forces the connection closed.
func IsDisconnectCode(code ldap.ResultCode) bool {
	return disconnectCodes[code]
}

// verdict is the classification of one round trip.
type verdict struct {
	outcome Outcome
	// code is the value recorded as the last error.
	code    ldap.ResultCode
	message string
	// disconnect asks the caller to close the transport.
	disconnect bool
}

// classify maps the result of a round trip to an outcome. res is nil when
// no response was obtained.
func classify(op OpKind, res *ldap.LDAPResult, err error) verdict {
	if err != nil {
		return classifyLocal(err)
	}
	if res == nil {
		return verdict{outcome: OutcomeTimeout, code: ldap.ResultTimeout}
	}

	v := verdict{
		code:    res.ResultCode,
		message: ldap.NormalizeDiagnostic(res.DiagnosticMessage),
	}
	if disconnectCodes[res.ResultCode] {
		v.outcome = OutcomeNotConnected
		v.disconnect = true
		return v
	}

	switch {
	case op == OpModify && res.ResultCode == ldap.ResultUnwillingToPerform:
		// Password policy on the peer refused the change.
		v.code = ldap.ResultSuccess
		v.outcome = OutcomeSuccess
	case op == OpAdd && res.ResultCode == ldap.ResultEntryAlreadyExists:
		// The code is kept so callers can tell the entry was present.
		v.outcome = OutcomeSuccess
	case op == OpDelete && res.ResultCode == ldap.ResultNoSuchObject:
		v.code = ldap.ResultSuccess
		v.outcome = OutcomeSuccess
	case res.ResultCode == ldap.ResultSuccess:
		v.outcome = OutcomeSuccess
	default:
		v.outcome = OutcomeFailed
	}
	return v
}

func classifyLocal(err error) verdict {
	v := verdict{message: err.Error()}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		v.outcome = OutcomeTimeout
		v.code = ldap.ResultTimeout
		return v
	case errors.Is(err, context.Canceled):
		v.outcome = OutcomeFailed
		v.code = ldap.ResultUserCancelled
		return v
	}

	code, ok := ldap.LocalErrorCode(err)
	if !ok {
		code = ldap.ResultLocalError
	}
	v.code = code
	switch {
	case code == ldap.ResultTimeout:
		v.outcome = OutcomeTimeout
	case disconnectCodes[code]:
		v.outcome = OutcomeNotConnected
		v.disconnect = true
	default:
		v.outcome = OutcomeFailed
	}
	return v
}

// err converts a verdict into the error returned to callers.
func (v verdict) err(op OpKind) error {
	var sentinel error
	switch v.outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeTimeout:
		sentinel = ErrTimeout
	case OutcomeNotConnected:
		sentinel = ErrNotConnected
	default:
		sentinel = ErrOperationFailed
	}
	return &OperationError{Op: op, Code: v.code, Message: v.message, Err: sentinel}
}
