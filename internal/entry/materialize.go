package entry

import (
	"strconv"
	"strings"

	"github.com/oba-ldap/winsync/internal/ldap"
)

// FakeStreetAttrName is the local name used in place of "streetAddress".
// The local server aliases street and streetAddress while Active Directory
// treats them as distinct attributes, so the peer's streetAddress is kept
// under a name that cannot collide with the alias.
const FakeStreetAttrName = "in#place#of#streetaddress"

const rangeOption = "range="

// skippedAttributes are copied to the raw entry only. Active Directory
// returns them with binary values and duplicate system values that the
// entry code cannot represent.
var skippedAttributes = []string{
	"dnsRecord",
	"dnsProperty",
	"dSCorePropagationData",
}

// Options control how a response is materialized.
type Options struct {
	// AttrsOnly records attribute names without values.
	AttrsOnly bool
	// Continuation requests the attribute descriptions to fetch in the
	// next round when a ranged attribute was truncated.
	Continuation bool
}

// Result is the output of Materialize.
type Result struct {
	// Entry is the materialized entry (the one passed in, when not nil).
	Entry *Entry
	// Raw holds every attribute exactly as it arrived.
	Raw *Entry
	// Continuation lists descriptions such as "member;range=1500-*" that
	// must be requested to complete the entry. Empty when nothing is left
	// or when continuation was not requested.
	Continuation []string
}

// Materialize merges one search result entry into dst. When dst is nil a
// new entry named after the response is created. It returns nil when msg
// is nil.
//
// Ranged descriptions ("member;range=0-1499") are stored under their base
// name plus any other options. An attribute that arrives with no values is
// a deletion on the peer; it is recorded on the entry only when the entry
// ends up carrying no such attribute, since a multi-valued attribute may
// lose some values and keep others.
func Materialize(dst *Entry, msg *ldap.SearchResultEntry, opts Options) *Result {
	if msg == nil {
		return nil
	}
	if dst == nil {
		dst = New(msg.ObjectName)
	}

	res := &Result{
		Entry: dst,
		Raw:   New(dst.DN),
	}

	var deleted []string
	for _, attr := range msg.Attributes {
		res.Raw.AddValues(attr.Type, attr.Values...)

		if isSkipped(attr.Type) {
			continue
		}
		if opts.AttrsOnly {
			dst.AddValues(attr.Type)
			continue
		}

		target, next := SplitRange(attr.Type)
		if strings.EqualFold(target, "streetaddress") {
			target = FakeStreetAttrName
		}

		if len(attr.Values) == 0 {
			if !dst.HasValues(target) && !containsFold(deleted, target) {
				deleted = append(deleted, target)
			}
		} else {
			dst.AddValues(target, attr.Values...)
		}

		if opts.Continuation && next > 0 {
			res.Continuation = append(res.Continuation, NextRange(target, next))
		}
	}

	for _, name := range deleted {
		if !dst.Has(name) {
			dst.MarkDeleted(name)
		}
	}

	return res
}

// SplitRange removes a "range=<low>-<high>" option from an attribute
// description. It returns the description without the range option and the
// low bound of the next slice to request, which is zero when the range was
// absent, open-ended ("<low>-*") or ended at zero.
func SplitRange(desc string) (string, int) {
	parts := strings.Split(desc, ";")
	if len(parts) == 1 {
		return desc, 0
	}

	kept := parts[:1:1]
	ranged := false
	next := 0
	for _, opt := range parts[1:] {
		if len(opt) < len(rangeOption) || !strings.EqualFold(opt[:len(rangeOption)], rangeOption) {
			kept = append(kept, opt)
			continue
		}
		ranged = true
		next = 0
		bounds := opt[len(rangeOption):]
		dash := strings.IndexByte(bounds, '-')
		if dash < 0 {
			continue
		}
		upper := bounds[dash+1:]
		if strings.HasPrefix(upper, "*") {
			continue
		}
		if high := leadingInt(upper); high > 0 {
			next = high + 1
		}
	}

	if !ranged {
		return desc, 0
	}
	return strings.Join(kept, ";"), next
}

// NextRange builds the description that requests values from low onward.
func NextRange(name string, low int) string {
	return name + ";" + rangeOption + strconv.Itoa(low) + "-*"
}

// leadingInt parses the decimal digits at the start of s.
func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

func isSkipped(name string) bool {
	return containsFold(skippedAttributes, name)
}
