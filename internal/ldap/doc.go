// Package ldap defines the protocol-level vocabulary shared by the
// replication connection and its transport.
//
// The types here describe LDAP requests and responses (RFC 4511) from the
// client's point of view. They carry no wire encoding; a transport built on
// a protocol library translates them to and from BER.
//
// # Requests
//
// Each operation the connection can send has a request type:
//
//	req := &ldap.AddRequest{
//	    Entry: "cn=alice,cn=users,dc=example,dc=com",
//	}
//	req.AddStringAttribute("objectClass", "top", "person", "user")
//
//	mod := &ldap.ModifyRequest{Object: "cn=alice,cn=users,dc=example,dc=com"}
//	mod.AddStringModification(ldap.ModifyOperationReplace, "description", "sync")
//
// # Results
//
// A server response is reported as an LDAPResult. Failures detected by the
// client itself (broken connection, bind method not available) are reported
// as a *LocalError carrying one of the client-side result codes:
//
//	result := ldap.ResultSuccess      // Operation succeeded
//	result := ldap.ResultServerDown   // Connection to the server was lost
//	result := ldap.ResultConnectError // Transport could not be opened
//
// # Search Results
//
// A SearchResultEntry keeps the attributes in the order the server sent
// them, including attribute descriptions with options such as
// "member;range=0-1499" and attributes that arrived with no values.
//
// # References
//
//   - RFC 4511: LDAP Protocol
//   - RFC 4512: LDAP Directory Information Models
//   - RFC 4513: LDAP Authentication Methods
package ldap
