package ldap

import (
	"errors"
	"fmt"
	"strings"
)

// Control represents an LDAP control attached to a request or response.
// Control ::= SEQUENCE {
//
//	controlType             LDAPOID,
//	criticality             BOOLEAN DEFAULT FALSE,
//	controlValue            OCTET STRING OPTIONAL
//
// }
type Control struct {
	// OID is the control type OID
	OID string
	// Criticality indicates whether the control is critical
	Criticality bool
	// Value is the optional control value
	Value []byte
}

// FindControl returns the first control with the given OID, or nil.
func FindControl(controls []Control, oid string) *Control {
	for i := range controls {
		if controls[i].OID == oid {
			return &controls[i]
		}
	}
	return nil
}

// Attribute represents an LDAP attribute with its values
type Attribute struct {
	// Type is the attribute description, possibly with options
	Type string
	// Values contains the attribute values
	Values [][]byte
}

// StringValues returns the attribute values as strings.
func (a Attribute) StringValues() []string {
	out := make([]string, len(a.Values))
	for i, v := range a.Values {
		out[i] = string(v)
	}
	return out
}

// HasValue reports whether the attribute carries exactly the given value.
func (a Attribute) HasValue(value string) bool {
	for _, v := range a.Values {
		if string(v) == value {
			return true
		}
	}
	return false
}

// StringsToValues converts string values to attribute values.
func StringsToValues(values ...string) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = []byte(v)
	}
	return out
}

// LocalError reports a failure detected by the client rather than a result
// returned by the server. Code is one of the client-side result codes.
type LocalError struct {
	Code ResultCode
	Err  error
}

// Error implements the error interface
func (e *LocalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ldap: local error %d (%s): %v", e.Code, e.Code, e.Err)
	}
	return fmt.Sprintf("ldap: local error %d (%s)", e.Code, e.Code)
}

// Unwrap returns the underlying error
func (e *LocalError) Unwrap() error {
	return e.Err
}

// NewLocalError creates a new LocalError
func NewLocalError(code ResultCode, err error) *LocalError {
	return &LocalError{Code: code, Err: err}
}

// LocalErrorCode extracts the client-side result code from err. It returns
// false when err is not a *LocalError.
func LocalErrorCode(err error) (ResultCode, bool) {
	var le *LocalError
	if errors.As(err, &le) {
		return le.Code, true
	}
	return 0, false
}

// NormalizeDiagnostic replaces carriage returns and newlines in a server
// diagnostic message with spaces so it fits on one log line.
func NormalizeDiagnostic(msg string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, msg)
}
