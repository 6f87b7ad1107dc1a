package ldap

// AuthMethod represents the authentication method used in a BindRequest
type AuthMethod int

const (
	// AuthMethodSimple indicates simple (password) authentication
	AuthMethodSimple AuthMethod = iota
	// AuthMethodSASL indicates SASL authentication
	AuthMethodSASL
)

// String returns the string representation of the authentication method
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimple:
		return "Simple"
	case AuthMethodSASL:
		return "SASL"
	default:
		return "Unknown"
	}
}

// SASL mechanism names understood by the transport.
const (
	MechanismSimple    = "SIMPLE"
	MechanismExternal  = "EXTERNAL"
	MechanismGSSAPI    = "GSSAPI"
	MechanismDigestMD5 = "DIGEST-MD5"
)

// BindRequest represents an LDAP Bind Request
// BindRequest ::= [APPLICATION 0] SEQUENCE {
//
//	version                 INTEGER (1 .. 127),
//	name                    LDAPDN,
//	authentication          AuthenticationChoice
//
// }
type BindRequest struct {
	// Name is the DN to bind as
	Name string
	// Password is the simple or DIGEST-MD5 password
	Password string
	// Mechanism is one of the Mechanism constants
	Mechanism string
	// Controls are sent with the request
	Controls []Control
}

// AuthMethod returns the authentication choice implied by the mechanism.
func (r *BindRequest) AuthMethod() AuthMethod {
	if r.Mechanism == "" || r.Mechanism == MechanismSimple {
		return AuthMethodSimple
	}
	return AuthMethodSASL
}

// IsAnonymous returns true if the bind is anonymous.
func (r *BindRequest) IsAnonymous() bool {
	return r.AuthMethod() == AuthMethodSimple && r.Name == "" && r.Password == ""
}

// BindResponse represents an LDAP Bind Response
type BindResponse struct {
	LDAPResult
	// Controls are the response controls (password policy and similar)
	Controls []Control
}
