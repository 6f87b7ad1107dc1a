// Package entry turns search responses from a replication peer into
// structured directory entries.
package entry

import (
	"strings"
)

// Attribute is a named, ordered list of values.
type Attribute struct {
	Name   string
	Values [][]byte
}

// StringValues returns the values as strings.
func (a *Attribute) StringValues() []string {
	out := make([]string, len(a.Values))
	for i, v := range a.Values {
		out[i] = string(v)
	}
	return out
}

// Entry is a materialized directory entry. Attribute names compare
// case-insensitively and keep the order in which they were first added.
//
// Besides its attributes an entry records the names of attributes the peer
// reported as deleted, so callers can tell "never had this attribute" apart
// from "the peer removed it".
type Entry struct {
	DN string

	attrs   []*Attribute
	index   map[string]int
	deleted []string
}

// New creates an empty entry.
func New(dn string) *Entry {
	return &Entry{
		DN:    dn,
		index: make(map[string]int),
	}
}

func normalize(name string) string {
	return strings.ToLower(name)
}

// Attribute returns the named attribute, or nil if the entry does not
// carry it.
func (e *Entry) Attribute(name string) *Attribute {
	if i, ok := e.index[normalize(name)]; ok {
		return e.attrs[i]
	}
	return nil
}

// Has reports whether the attribute is present, with or without values.
func (e *Entry) Has(name string) bool {
	_, ok := e.index[normalize(name)]
	return ok
}

// HasValues reports whether the attribute is present with at least one value.
func (e *Entry) HasValues(name string) bool {
	a := e.Attribute(name)
	return a != nil && len(a.Values) > 0
}

// Values returns the values of the named attribute.
func (e *Entry) Values(name string) [][]byte {
	if a := e.Attribute(name); a != nil {
		return a.Values
	}
	return nil
}

// StringValues returns the values of the named attribute as strings.
func (e *Entry) StringValues(name string) []string {
	if a := e.Attribute(name); a != nil {
		return a.StringValues()
	}
	return nil
}

// AddValues appends values to the named attribute, creating it if needed.
// Calling it with no values creates an attribute with no values.
func (e *Entry) AddValues(name string, values ...[]byte) {
	key := normalize(name)
	if i, ok := e.index[key]; ok {
		e.attrs[i].Values = append(e.attrs[i].Values, values...)
		return
	}
	a := &Attribute{Name: name}
	a.Values = append(a.Values, values...)
	e.index[key] = len(e.attrs)
	e.attrs = append(e.attrs, a)
}

// AddStringValues appends string values to the named attribute.
func (e *Entry) AddStringValues(name string, values ...string) {
	bv := make([][]byte, len(values))
	for i, v := range values {
		bv[i] = []byte(v)
	}
	e.AddValues(name, bv...)
}

// AttributeNames returns the attribute names in insertion order.
func (e *Entry) AttributeNames() []string {
	names := make([]string, len(e.attrs))
	for i, a := range e.attrs {
		names[i] = a.Name
	}
	return names
}

// Attributes returns the attributes in insertion order.
func (e *Entry) Attributes() []*Attribute {
	out := make([]*Attribute, len(e.attrs))
	copy(out, e.attrs)
	return out
}

// Len returns the number of attributes.
func (e *Entry) Len() int {
	return len(e.attrs)
}

// MarkDeleted records that the peer deleted the named attribute.
func (e *Entry) MarkDeleted(name string) {
	if !containsFold(e.deleted, name) {
		e.deleted = append(e.deleted, name)
	}
}

// IsDeleted reports whether the attribute was recorded as deleted.
func (e *Entry) IsDeleted(name string) bool {
	return containsFold(e.deleted, name)
}

// DeletedAttributes returns the names of attributes the peer deleted.
func (e *Entry) DeletedAttributes() []string {
	out := make([]string, len(e.deleted))
	copy(out, e.deleted)
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
