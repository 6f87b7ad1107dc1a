package ldap

// LDAPResult is the outcome a peer reports for one request. Client-side
// failures never produce an LDAPResult; they are returned as a LocalError.
type LDAPResult struct {
	ResultCode ResultCode
	MatchedDN  string
	// DiagnosticMessage is the peer's text. Active Directory puts its own
	// error number and extended reason here, e.g. "0000052D: ...".
	DiagnosticMessage string
}

// Response is the result of a write request together with the controls
// returned with it.
type Response struct {
	LDAPResult
	Controls []Control
}

// NewSuccessResult returns a success result.
func NewSuccessResult() LDAPResult {
	return LDAPResult{ResultCode: ResultSuccess}
}

// NewErrorResult returns a result with code and message.
func NewErrorResult(code ResultCode, message string) LDAPResult {
	return LDAPResult{ResultCode: code, DiagnosticMessage: message}
}
