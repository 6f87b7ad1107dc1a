package ldap

import "errors"

var (
	ErrEmptyModifyObject      = errors.New("ldap: modify object DN cannot be empty")
	ErrEmptyModifications     = errors.New("ldap: modify request must have at least one modification")
	ErrInvalidModifyOperation = errors.New("ldap: invalid modify operation")
	ErrEmptyModifyDNEntry     = errors.New("ldap: modifydn entry DN cannot be empty")
	ErrEmptyNewRDN            = errors.New("ldap: modifydn new RDN cannot be empty")
)

// ModifyOperation is the kind of one change in a modify request. The
// values are the protocol enumeration.
type ModifyOperation int

const (
	ModifyOperationAdd     ModifyOperation = 0
	ModifyOperationDelete  ModifyOperation = 1
	ModifyOperationReplace ModifyOperation = 2
)

var modifyOperationNames = map[ModifyOperation]string{
	ModifyOperationAdd:     "Add",
	ModifyOperationDelete:  "Delete",
	ModifyOperationReplace: "Replace",
}

func (m ModifyOperation) String() string {
	if name, ok := modifyOperationNames[m]; ok {
		return name
	}
	return "Unknown"
}

func (m ModifyOperation) valid() bool {
	_, ok := modifyOperationNames[m]
	return ok
}

// Modification is one change of a modify request. A delete with no
// values removes the whole attribute.
type Modification struct {
	Operation ModifyOperation
	Attribute Attribute
}

// ModifyRequest changes the attributes of Object. Active Directory
// applies the changes atomically, in order.
type ModifyRequest struct {
	Object   string
	Changes  []Modification
	Controls []Control
}

// Validate checks the request before it is sent.
func (r *ModifyRequest) Validate() error {
	switch {
	case r.Object == "":
		return ErrEmptyModifyObject
	case len(r.Changes) == 0:
		return ErrEmptyModifications
	}
	for _, c := range r.Changes {
		if !c.Operation.valid() {
			return ErrInvalidModifyOperation
		}
		if c.Attribute.Type == "" {
			return ErrInvalidAttribute
		}
	}
	return nil
}

// AddModification appends a change.
func (r *ModifyRequest) AddModification(op ModifyOperation, attrType string, values ...[]byte) {
	r.Changes = append(r.Changes, Modification{
		Operation: op,
		Attribute: Attribute{Type: attrType, Values: values},
	})
}

// AddStringModification appends a change with string values.
func (r *ModifyRequest) AddStringModification(op ModifyOperation, attrType string, values ...string) {
	r.AddModification(op, attrType, StringsToValues(values...)...)
}

// ModifyDNRequest renames Entry to NewRDN and, when NewSuperior is set,
// moves it under a new parent.
type ModifyDNRequest struct {
	Entry        string
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string
	Controls     []Control
}

// Validate checks the request before it is sent.
func (r *ModifyDNRequest) Validate() error {
	if r.Entry == "" {
		return ErrEmptyModifyDNEntry
	}
	if r.NewRDN == "" {
		return ErrEmptyNewRDN
	}
	return nil
}

// HasNewSuperior reports whether the request moves the entry.
func (r *ModifyDNRequest) HasNewSuperior() bool {
	return r.NewSuperior != ""
}

// DeleteRequest removes the leaf entry DN.
type DeleteRequest struct {
	DN       string
	Controls []Control
}

// Validate checks the request before it is sent.
func (r *DeleteRequest) Validate() error {
	if r.DN == "" {
		return ErrEmptyEntry
	}
	return nil
}
