package winconn

import (
	"strings"

	"github.com/oba-ldap/winsync/internal/ldap"
)

// State is the connection state.
type State int

const (
	// StateDisconnected means no transport is open.
	StateDisconnected State = iota
	// StateConnected means the transport is open and bound.
	StateConnected
)

// String returns the state name.
func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "disconnected"
}

// OpKind identifies the last operation attempted on a connection.
type OpKind int

const (
	OpNone OpKind = iota
	OpAdd
	OpDelete
	OpModify
	OpRename
	OpExtended
	OpBind
	OpInit
	OpSearch
)

var opNames = map[OpKind]string{
	OpNone:     "none",
	OpAdd:      "add",
	OpDelete:   "delete",
	OpModify:   "modify",
	OpRename:   "rename",
	OpExtended: "extended",
	OpBind:     "bind",
	OpInit:     "init",
	OpSearch:   "search",
}

// String returns the operation name used in log messages.
func (o OpKind) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "unknown"
}

// Status labels reported by Connection.Status.
const (
	StatusDisconnected     = "disconnected"
	StatusConnected        = "connected"
	StatusProcessingAdd    = "processing add operation"
	StatusProcessingDelete = "processing delete operation"
	StatusProcessingModify = "processing modify operation"
	StatusProcessingRename = "processing rename operation"
	StatusProcessingExtOp  = "processing extended operation"
	StatusLingering        = "lingering"
	StatusShuttingDown     = "shutting down"
	StatusBinding          = "connecting and binding"
	StatusSearching        = "processing search operation"
)

func statusFor(op OpKind) string {
	switch op {
	case OpAdd:
		return StatusProcessingAdd
	case OpDelete:
		return StatusProcessingDelete
	case OpModify:
		return StatusProcessingModify
	case OpRename:
		return StatusProcessingRename
	case OpExtended:
		return StatusProcessingExtOp
	case OpSearch:
		return StatusSearching
	case OpBind, OpInit:
		return StatusBinding
	default:
		return StatusConnected
	}
}

// Capability is the cached answer of a capability probe.
type Capability int

const (
	CapabilityUnknown Capability = iota
	CapabilitySupported
	CapabilityUnsupported
)

// String returns the capability name.
func (c Capability) String() string {
	switch c {
	case CapabilitySupported:
		return "supported"
	case CapabilityUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// BindMethod selects how the connection authenticates.
type BindMethod int

const (
	BindSimple BindMethod = iota
	BindSSLClientAuth
	BindGSSAPI
	BindDigestMD5
)

// ParseBindMethod maps a configuration value to a BindMethod. Unknown
// values select simple bind.
func ParseBindMethod(s string) BindMethod {
	switch strings.ToLower(s) {
	case "sslclientauth", "external":
		return BindSSLClientAuth
	case "gssapi", "sasl/gssapi":
		return BindGSSAPI
	case "digest-md5", "sasl/digest-md5":
		return BindDigestMD5
	default:
		return BindSimple
	}
}

// Mechanism returns the SASL mechanism name, or SIMPLE.
func (m BindMethod) Mechanism() string {
	switch m {
	case BindSSLClientAuth:
		return ldap.MechanismExternal
	case BindGSSAPI:
		return ldap.MechanismGSSAPI
	case BindDigestMD5:
		return ldap.MechanismDigestMD5
	default:
		return ldap.MechanismSimple
	}
}

// Transport selects the channel security.
type Transport int

const (
	TransportPlain Transport = iota
	TransportStartTLS
	TransportLDAPS
)

// ParseTransport maps a configuration value to a Transport. Unknown values
// select plain.
func ParseTransport(s string) Transport {
	switch strings.ToLower(s) {
	case "starttls", "tls":
		return TransportStartTLS
	case "ldaps", "ssl":
		return TransportLDAPS
	default:
		return TransportPlain
	}
}

// Secure reports whether the transport needs TLS.
func (t Transport) Secure() bool {
	return t == TransportStartTLS || t == TransportLDAPS
}

// String returns the transport name.
func (t Transport) String() string {
	switch t {
	case TransportStartTLS:
		return "starttls"
	case TransportLDAPS:
		return "ldaps"
	default:
		return "plain"
	}
}
