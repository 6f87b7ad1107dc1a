package ldap

import (
	"errors"
	"strings"
)

// Errors for request validation
var (
	// ErrEmptyEntry is returned when the entry DN is empty
	ErrEmptyEntry = errors.New("ldap: entry DN cannot be empty")
	// ErrInvalidAttribute is returned when an attribute is malformed
	ErrInvalidAttribute = errors.New("ldap: invalid attribute")
	// ErrEmptyAttributeValues is returned when an attribute has no values
	ErrEmptyAttributeValues = errors.New("ldap: attribute must have at least one value")
)

// AddRequest represents an LDAP Add Request
// AddRequest ::= [APPLICATION 8] SEQUENCE {
//
//	entry           LDAPDN,
//	attributes      AttributeList
//
// }
type AddRequest struct {
	// Entry is the DN of the entry to add
	Entry string
	// Attributes contains the attributes for the new entry
	Attributes []Attribute
	// Controls are sent with the request
	Controls []Control
}

// AddAttribute appends an attribute to the request.
func (r *AddRequest) AddAttribute(attrType string, values ...[]byte) {
	r.Attributes = append(r.Attributes, Attribute{Type: attrType, Values: values})
}

// AddStringAttribute appends an attribute with string values to the request.
func (r *AddRequest) AddStringAttribute(attrType string, values ...string) {
	r.AddAttribute(attrType, StringsToValues(values...)...)
}

// GetAttribute returns the attribute with the given type (case-insensitive).
func (r *AddRequest) GetAttribute(attrType string) *Attribute {
	for i := range r.Attributes {
		if strings.EqualFold(r.Attributes[i].Type, attrType) {
			return &r.Attributes[i]
		}
	}
	return nil
}

// Validate checks the request before it is sent.
func (r *AddRequest) Validate() error {
	if r.Entry == "" {
		return ErrEmptyEntry
	}
	for _, attr := range r.Attributes {
		if attr.Type == "" {
			return ErrInvalidAttribute
		}
		if len(attr.Values) == 0 {
			return ErrEmptyAttributeValues
		}
	}
	return nil
}
