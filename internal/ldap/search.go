package ldap

import (
	"strings"
)

// SearchScope represents the scope of an LDAP search operation
type SearchScope int

const (
	// ScopeBaseObject searches only the base object
	ScopeBaseObject SearchScope = 0
	// ScopeSingleLevel searches one level below the base object
	ScopeSingleLevel SearchScope = 1
	// ScopeWholeSubtree searches the entire subtree
	ScopeWholeSubtree SearchScope = 2
)

// String returns the string representation of the search scope
func (s SearchScope) String() string {
	switch s {
	case ScopeBaseObject:
		return "BaseObject"
	case ScopeSingleLevel:
		return "SingleLevel"
	case ScopeWholeSubtree:
		return "WholeSubtree"
	default:
		return "Unknown"
	}
}

// DerefAliases represents how aliases should be dereferenced during search
type DerefAliases int

const (
	// DerefNever never dereferences aliases
	DerefNever DerefAliases = 0
	// DerefInSearching dereferences aliases when searching subordinates
	DerefInSearching DerefAliases = 1
	// DerefFindingBaseObj dereferences aliases when finding the base object
	DerefFindingBaseObj DerefAliases = 2
	// DerefAlways always dereferences aliases
	DerefAlways DerefAliases = 3
)

// String returns the string representation of the deref aliases setting
func (d DerefAliases) String() string {
	switch d {
	case DerefNever:
		return "NeverDerefAliases"
	case DerefInSearching:
		return "DerefInSearching"
	case DerefFindingBaseObj:
		return "DerefFindingBaseObj"
	case DerefAlways:
		return "DerefAlways"
	default:
		return "Unknown"
	}
}

// FilterAnyObject matches every entry.
const FilterAnyObject = "(objectclass=*)"

// SearchRequest represents an LDAP Search Request
// SearchRequest ::= [APPLICATION 3] SEQUENCE {
//
//	baseObject      LDAPDN,
//	scope           ENUMERATED { baseObject(0), singleLevel(1), wholeSubtree(2) },
//	derefAliases    ENUMERATED { neverDerefAliases(0), derefInSearching(1),
//	                             derefFindingBaseObj(2), derefAlways(3) },
//	sizeLimit       INTEGER (0 .. maxInt),
//	timeLimit       INTEGER (0 .. maxInt),
//	typesOnly       BOOLEAN,
//	filter          Filter,
//	attributes      AttributeSelection
//
// }
type SearchRequest struct {
	// BaseObject is the base DN for the search
	BaseObject string
	// Scope is the search scope
	Scope SearchScope
	// DerefAliases specifies how aliases should be dereferenced
	DerefAliases DerefAliases
	// SizeLimit is the maximum number of entries to return (0 = no limit)
	SizeLimit int
	// TimeLimit is the maximum time in seconds (0 = no limit)
	TimeLimit int
	// TypesOnly if true, only attribute types are returned (no values)
	TypesOnly bool
	// Filter is the search filter in RFC 4515 string form
	Filter string
	// Attributes is the list of attributes to return (empty = all user attributes)
	Attributes []string
	// Controls are sent with the request
	Controls []Control
}

// PartialAttribute is an attribute as it arrived in a search result.
// PartialAttribute ::= SEQUENCE {
//
//	type       AttributeDescription,
//	vals       SET OF value AttributeValue
//
// }
//
// Vals may be empty; directories use that to report a deleted attribute.
type PartialAttribute struct {
	// Type is the attribute description (name or OID, with options)
	Type string
	// Values contains the attribute values
	Values [][]byte
}

// SearchResultEntry represents a search result entry.
// SearchResultEntry ::= [APPLICATION 4] SEQUENCE {
//
//	objectName      LDAPDN,
//	attributes      PartialAttributeList
//
// }
type SearchResultEntry struct {
	// ObjectName is the DN of the entry
	ObjectName string
	// Attributes contains the entry's attributes in wire order
	Attributes []PartialAttribute
}

// GetAttributeValues returns the values of the first attribute whose
// description equals attrType (case-insensitive), or nil.
func (e *SearchResultEntry) GetAttributeValues(attrType string) [][]byte {
	for _, attr := range e.Attributes {
		if strings.EqualFold(attr.Type, attrType) {
			return attr.Values
		}
	}
	return nil
}

// HasAttributeValue reports whether attrType carries exactly value.
func (e *SearchResultEntry) HasAttributeValue(attrType, value string) bool {
	for _, attr := range e.Attributes {
		if !strings.EqualFold(attr.Type, attrType) {
			continue
		}
		for _, v := range attr.Values {
			if string(v) == value {
				return true
			}
		}
	}
	return false
}

// SearchResult collects every message returned for one search request.
type SearchResult struct {
	// Entries are the returned entries in arrival order
	Entries []*SearchResultEntry
	// Referrals are the continuation references returned
	Referrals []string
	// Controls are the controls attached to SearchResultDone
	Controls []Control
	// Result is the SearchResultDone result
	Result LDAPResult
}
