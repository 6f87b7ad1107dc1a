package winconn

import (
	"context"
	"errors"
	"fmt"

	"github.com/oba-ldap/winsync/internal/ldap"
)

// Errors returned by connection operations. Use errors.Is to test for them.
var (
	ErrNotConnected      = errors.New("winconn: not connected")
	ErrTimeout           = errors.New("winconn: operation timed out")
	ErrOperationFailed   = errors.New("winconn: operation failed")
	ErrTLSNotEnabled     = errors.New("winconn: secure transport requested but TLS is not configured")
	ErrCredentialsDecode = errors.New("winconn: decoding of the credentials failed")
	ErrLocal             = errors.New("winconn: local error")
	ErrDeleted           = errors.New("winconn: connection deleted")
)

// Outcome is the classification of an operation.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailed
	OutcomeNotConnected
	OutcomeTimeout
	OutcomeLocalError
	OutcomeTLSNotEnabled
	OutcomeSupported
	OutcomeUnsupported
	OutcomeLegacyPeer
	OutcomeModernPeer
)

var outcomeNames = map[Outcome]string{
	OutcomeSuccess:       "success",
	OutcomeFailed:        "operation failed",
	OutcomeNotConnected:  "not connected",
	OutcomeTimeout:       "timed out",
	OutcomeLocalError:    "local error",
	OutcomeTLSNotEnabled: "tls not enabled",
	OutcomeSupported:     "supported",
	OutcomeUnsupported:   "unsupported",
	OutcomeLegacyPeer:    "legacy peer",
	OutcomeModernPeer:    "modern peer",
}

// String returns the outcome name.
func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// OperationError describes an operation that did not succeed.
type OperationError struct {
	Op      OpKind
	Code    ldap.ResultCode
	Message string
	// Err is one of the package sentinels, possibly wrapping the cause.
	Err error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s: %s operation: LDAP error %d (%s)", e.Err, e.Op, e.Code, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Unwrap returns the sentinel.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// OutcomeOf classifies an error returned by this package. A nil error is
// a success.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrDeleted):
		return OutcomeNotConnected
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case errors.Is(err, ErrTLSNotEnabled):
		return OutcomeTLSNotEnabled
	case errors.Is(err, ErrLocal):
		return OutcomeLocalError
	default:
		return OutcomeFailed
	}
}

// ProbeOutcome maps a capability probe answer to an outcome.
func ProbeOutcome(c Capability, err error) Outcome {
	if err != nil {
		return OutcomeOf(err)
	}
	if c == CapabilitySupported {
		return OutcomeSupported
	}
	return OutcomeUnsupported
}

// PeerOutcome maps the answer of the modern-peer probe to an outcome.
func PeerOutcome(c Capability, err error) Outcome {
	if err != nil {
		return OutcomeOf(err)
	}
	if c == CapabilitySupported {
		return OutcomeModernPeer
	}
	return OutcomeLegacyPeer
}
