package transport

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
	goldap "github.com/go-ldap/ldap/v3"

	"github.com/oba-ldap/winsync/internal/ldap"
)

func toControls(controls []ldap.Control) []goldap.Control {
	if len(controls) == 0 {
		return nil
	}
	out := make([]goldap.Control, 0, len(controls))
	for _, c := range controls {
		out = append(out, goldap.NewControlString(c.OID, c.Criticality, string(c.Value)))
	}
	return out
}

func fromControls(controls []goldap.Control) []ldap.Control {
	if len(controls) == 0 {
		return nil
	}
	out := make([]ldap.Control, 0, len(controls))
	for _, c := range controls {
		if c == nil {
			continue
		}
		out = append(out, fromControl(c))
	}
	return out
}

// fromControl recovers the OID, criticality and raw value of a response
// control. go-ldap decodes the controls it knows; the password policy ones
// cannot be encoded again and are rebuilt from their fields.
func fromControl(c goldap.Control) ldap.Control {
	switch v := c.(type) {
	case *goldap.ControlVChuPasswordMustChange:
		return ldap.Control{OID: ldap.OIDPasswordExpired, Value: []byte("0")}
	case *goldap.ControlVChuPasswordWarning:
		return ldap.Control{OID: ldap.OIDPasswordExpiring, Value: []byte(strconv.FormatInt(v.Expire, 10))}
	case *goldap.ControlString:
		return ldap.Control{OID: v.ControlType, Criticality: v.Criticality, Value: []byte(v.ControlValue)}
	}

	out := ldap.Control{OID: c.GetControlType()}
	pkt := c.Encode()
	if pkt == nil {
		return out
	}
	for i, child := range pkt.Children {
		if i == 0 {
			continue
		}
		switch child.Tag {
		case ber.TagBoolean:
			if b, ok := child.Value.(bool); ok {
				out.Criticality = b
			}
		case ber.TagOctetString:
			out.Value = packetBytes(child)
		}
	}
	return out
}

// packetBytes returns the content of an octet string packet. A value that
// go-ldap decoded into child packets is encoded back.
func packetBytes(p *ber.Packet) []byte {
	if len(p.Children) == 0 {
		if p.Data == nil {
			return nil
		}
		return append([]byte(nil), p.Data.Bytes()...)
	}
	var buf bytes.Buffer
	for _, child := range p.Children {
		buf.Write(child.Bytes())
	}
	return buf.Bytes()
}

// mapError splits a go-ldap error into a server result or a local error.
// A nil error is a success result.
func mapError(err error) (ldap.LDAPResult, error) {
	if err == nil {
		return ldap.NewSuccessResult(), nil
	}

	var le *goldap.Error
	if !errors.As(err, &le) {
		if _, ok := ldap.LocalErrorCode(err); ok {
			return ldap.LDAPResult{}, err
		}
		if isContextError(err) {
			return ldap.LDAPResult{}, err
		}
		return ldap.LDAPResult{}, ldap.NewLocalError(ldap.ResultLocalError, err)
	}

	if code, ok := localCode(le); ok {
		return ldap.LDAPResult{}, ldap.NewLocalError(code, err)
	}

	msg := ""
	if le.Err != nil {
		msg = le.Err.Error()
	}
	return ldap.LDAPResult{
		ResultCode:        ldap.ResultCode(le.ResultCode),
		MatchedDN:         le.MatchedDN,
		DiagnosticMessage: msg,
	}, nil
}

// localCode maps go-ldap's client-side codes, which start at 200, to the
// client-side result codes.
func localCode(le *goldap.Error) (ldap.ResultCode, bool) {
	switch le.ResultCode {
	case goldap.ErrorNetwork:
		if le.Err != nil && strings.Contains(le.Err.Error(), "timed out") {
			return ldap.ResultTimeout, true
		}
		return ldap.ResultServerDown, true
	case goldap.ErrorFilterCompile, goldap.ErrorFilterDecompile:
		return ldap.ResultFilterError, true
	case goldap.ErrorDebugging:
		return ldap.ResultLocalError, true
	case goldap.ErrorUnexpectedMessage, goldap.ErrorUnexpectedResponse:
		return ldap.ResultDecodingError, true
	case goldap.ErrorEmptyPassword:
		return ldap.ResultParamError, true
	}
	if le.ResultCode >= 200 {
		return ldap.ResultLocalError, true
	}
	return 0, false
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
