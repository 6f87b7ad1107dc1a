package ldap

// ExtendedRequest represents an LDAP Extended Request
// ExtendedRequest ::= [APPLICATION 23] SEQUENCE {
//
//	requestName      [0] LDAPOID,
//	requestValue     [1] OCTET STRING OPTIONAL
//
// }
type ExtendedRequest struct {
	// Name is the OID of the extended operation
	Name string
	// Value is the optional request payload
	Value []byte
	// Controls are sent with the request
	Controls []Control
}

// ExtendedResponse represents an LDAP Extended Response
// ExtendedResponse ::= [APPLICATION 24] SEQUENCE {
//
//	COMPONENTS OF LDAPResult,
//	responseName     [10] LDAPOID OPTIONAL,
//	responseValue    [11] OCTET STRING OPTIONAL
//
// }
type ExtendedResponse struct {
	LDAPResult
	// Name is the optional response OID
	Name string
	// Value is the optional response payload
	Value []byte
	// Controls are the response controls
	Controls []Control
}
