// Package dirsync keeps the change token of Active Directory incremental
// searches and encodes the control that carries it.
//
// The request control value is
//
//	SEQUENCE {
//	    flags        INTEGER,
//	    maxAttrCount INTEGER,
//	    cookie       OCTET STRING
//	}
//
// and the peer answers on the search result with
//
//	SEQUENCE {
//	    moreResults  INTEGER,
//	    unused       INTEGER,
//	    cookie       OCTET STRING
//	}
package dirsync

import (
	"errors"
	"fmt"

	ber "github.com/go-asn1-ber/asn1-ber"

	"github.com/oba-ldap/winsync/internal/ldap"
)

// Request flags understood by Active Directory.
const (
	FlagObjectSecurity       int64 = 0x00000001
	FlagAncestorsFirstOrder  int64 = 0x00000800
	FlagPublicDataOnly       int64 = 0x00002000
	FlagIncrementalValues    int64 = 0x80000000
	DefaultFlags             int64 = 0
	DefaultMaxAttributeCount int64 = -1
)

var (
	// ErrMalformedControl is returned when a response control value is not
	// a dirsync sequence.
	ErrMalformedControl = errors.New("dirsync: malformed control value")
)

// Request is the value of a dirsync request control.
type Request struct {
	Flags        int64
	MaxAttrCount int64
	Cookie       []byte
}

// Encode returns the BER encoding of the request value.
func (r Request) Encode() []byte {
	seq := ber.Encode(ber.ClassUniversal, ber.TypeConstructed, ber.TagSequence, nil, "DirSync Request")
	seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, r.Flags, "Flags"))
	seq.AppendChild(ber.NewInteger(ber.ClassUniversal, ber.TypePrimitive, ber.TagInteger, r.MaxAttrCount, "Max Attribute Count"))
	seq.AppendChild(ber.NewString(ber.ClassUniversal, ber.TypePrimitive, ber.TagOctetString, string(r.Cookie), "Cookie"))
	return seq.Bytes()
}

// Control wraps the request in a critical dirsync control.
func (r Request) Control() ldap.Control {
	return ldap.Control{
		OID:         ldap.OIDDirSync,
		Criticality: true,
		Value:       r.Encode(),
	}
}

// Response is the decoded value of a dirsync response control.
type Response struct {
	MoreResults bool
	Cookie      []byte
}

// DecodeResponse parses a response control value.
func DecodeResponse(value []byte) (*Response, error) {
	if len(value) == 0 {
		return nil, ErrMalformedControl
	}
	pkt, err := ber.DecodePacketErr(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedControl, err)
	}
	if pkt.Tag != ber.TagSequence || len(pkt.Children) < 3 {
		return nil, ErrMalformedControl
	}

	more, ok := pkt.Children[0].Value.(int64)
	if !ok {
		return nil, fmt.Errorf("%w: moreResults is not an integer", ErrMalformedControl)
	}
	cookie := pkt.Children[2]
	if cookie.Tag != ber.TagOctetString {
		return nil, fmt.Errorf("%w: cookie is not an octet string", ErrMalformedControl)
	}

	resp := &Response{MoreResults: more != 0}
	if cookie.Data != nil && cookie.Data.Len() > 0 {
		resp.Cookie = append([]byte(nil), cookie.Data.Bytes()...)
	}
	return resp, nil
}
