package winconn

import (
	"context"
	"strings"

	"github.com/oba-ldap/winsync/internal/entry"
	"github.com/oba-ldap/winsync/internal/ldap"
)

// EntrySearch reads one entry from the peer. Active Directory returns
// large multi-valued attributes in ranges; each call to Next fetches one
// more fragment until the entry is complete.
//
//	s := conn.NewEntrySearch(base, filter, ldap.ScopeWholeSubtree, nil)
//	for s.Next(ctx) {
//	}
//	if err := s.Err(); err != nil {
//		...
//	}
//	e := s.Entry()
type EntrySearch struct {
	c      *Connection
	params SearchParams
	attrs  []string
	rounds int

	entry *entry.Entry
	raw   *entry.Entry
	frag  *entry.Result
	done  bool
	err   error
}

// NewEntrySearch prepares a search for one entry. The search hooks, if
// any, see the parameters before the first round is sent.
func (c *Connection) NewEntrySearch(base, filter string, scope ldap.SearchScope, controls []ldap.Control) *EntrySearch {
	params := SearchParams{
		Base:     base,
		Scope:    scope,
		Filter:   filter,
		Controls: controls,
	}
	if c.opts.Hooks != nil {
		c.log.Debug("calling entry search hook")
		c.opts.Hooks.PreADSearch(c.agreement, &params)
	}
	return &EntrySearch{c: c, params: params, attrs: params.Attributes}
}

// Next sends the next round. It returns false when the entry is complete,
// when no entry matched or on error.
func (s *EntrySearch) Next(ctx context.Context) bool {
	if s.done {
		return false
	}

	res, err := s.c.search(ctx, &ldap.SearchRequest{
		BaseObject: s.params.Base,
		Scope:      s.params.Scope,
		Filter:     s.params.Filter,
		Attributes: s.attrs,
		TypesOnly:  s.params.AttrsOnly,
		Controls:   s.params.Controls,
	})
	s.rounds++
	if err != nil {
		s.c.log.Debug("could not retrieve entry",
			"base", s.params.Base, "scope", s.params.Scope.String(), "filter", s.params.Filter, "error", err)
		s.err = err
		s.done = true
		return false
	}

	s.c.log.Debug("search returned",
		"entries", len(res.Entries), "references", len(res.Referrals), "round", s.rounds)
	if len(res.Entries) == 0 {
		s.done = true
		return false
	}
	// Only the first entry is used; the rest were read off the wire already.

	frag := entry.Materialize(s.entry, res.Entries[0], entry.Options{
		AttrsOnly:    s.params.AttrsOnly,
		Continuation: !s.params.AttrsOnly,
	})
	s.entry = frag.Entry
	if s.raw == nil {
		s.raw = frag.Raw
	} else {
		for _, a := range frag.Raw.Attributes() {
			s.raw.AddValues(a.Name, a.Values...)
		}
	}
	s.c.agreement.SetRawEntry(s.raw)
	s.frag = frag

	if len(frag.Continuation) == 0 {
		s.done = true
	} else {
		s.attrs = frag.Continuation
	}
	return true
}

// SetAttrsOnly asks for attribute names only. It must be called before the
// first round.
func (s *EntrySearch) SetAttrsOnly(v bool) {
	s.params.AttrsOnly = v
}

// Fragment returns the result of the last round.
func (s *EntrySearch) Fragment() *entry.Result {
	return s.frag
}

// Entry returns the entry accumulated so far, or nil when nothing matched.
func (s *EntrySearch) Entry() *entry.Entry {
	return s.entry
}

// Raw returns every attribute received so far in its wire form.
func (s *EntrySearch) Raw() *entry.Entry {
	return s.raw
}

// Rounds returns the number of searches sent.
func (s *EntrySearch) Rounds() int {
	return s.rounds
}

// Err returns the error that stopped the search.
func (s *EntrySearch) Err() error {
	return s.err
}

// SearchEntry reads one complete entry. It returns a nil entry and a nil
// error when nothing matched.
func (c *Connection) SearchEntry(ctx context.Context, base, filter string, scope ldap.SearchScope, controls []ldap.Control) (*entry.Entry, error) {
	s := c.NewEntrySearch(base, filter, scope, controls)
	for s.Next(ctx) {
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return s.Entry(), nil
}

// ReadEntryAttribute returns the values of one attribute of the entry at
// dn. It returns nil when the entry or the attribute is absent.
func (c *Connection) ReadEntryAttribute(ctx context.Context, dn, attr string) ([][]byte, error) {
	res, err := c.search(ctx, &ldap.SearchRequest{
		BaseObject: dn,
		Scope:      ldap.ScopeBaseObject,
		Filter:     ldap.FilterAnyObject,
		Attributes: []string{attr},
		Controls:   []ldap.Control{{OID: ldap.OIDManageDsaIT}},
	})
	if err != nil {
		return nil, err
	}
	if len(res.Entries) == 0 {
		return nil, nil
	}
	return res.Entries[0].GetAttributeValues(attr), nil
}

// DirSyncResult is the outcome of one incremental search round.
type DirSyncResult struct {
	// Entries are the changed entries. Ranged attributes are not followed.
	Entries []*entry.Result
	// HasMore reports that the peer holds further changes.
	HasMore bool
}

// DirSync asks the peer for the entries changed since the agreement's
// last token and stores the token returned with them.
func (c *Connection) DirSync(ctx context.Context) (*DirSyncResult, error) {
	c.mu.Lock()
	if err := c.checkLocked(OpSearch); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	supported := c.supportsDirSync
	c.mu.Unlock()

	subtree := c.agreement.WindowsSubtree()
	state := c.agreement.DirSync()

	params := SearchParams{
		Base:   namingContext(subtree),
		Scope:  ldap.ScopeWholeSubtree,
		Filter: c.agreement.WindowsUserFilter(),
	}
	if params.Filter == "" {
		params.Filter = ldap.FilterAnyObject
	}
	if supported == CapabilitySupported && state != nil {
		params.Controls = append(params.Controls, state.Control())
	}
	if c.opts.Hooks != nil {
		c.log.Debug("calling dirsync search hook")
		c.opts.Hooks.DirSyncSearchParams(c.agreement, subtree, &params)
	}

	c.log.Debug("sending dirsync search", "base", params.Base, "filter", params.Filter)
	res, err := c.search(ctx, &ldap.SearchRequest{
		BaseObject: params.Base,
		Scope:      params.Scope,
		Filter:     params.Filter,
		Attributes: params.Attributes,
		Controls:   params.Controls,
	})
	if err != nil {
		c.log.Error("dirsync search failed", "error", err)
		return nil, err
	}

	out := &DirSyncResult{Entries: make([]*entry.Result, 0, len(res.Entries))}
	for _, e := range res.Entries {
		c.log.Debug("received entry from dirsync", "dn", e.ObjectName)
		out.Entries = append(out.Entries, entry.Materialize(nil, e, entry.Options{}))
	}

	if state != nil {
		if _, err := state.Update(res.Controls); err != nil {
			c.log.Warn("could not read dirsync response control", "error", err)
		}
		out.HasMore = state.HasMore()
	}
	if out.HasMore {
		c.log.Debug("received hasmore from dirsync")
	}
	return out, nil
}

// namingContext returns the part of dn from its first domain component.
// The incremental search control requires a naming context as its base.
func namingContext(dn string) string {
	i := strings.Index(strings.ToLower(dn), "dc=")
	if i < 0 {
		return ""
	}
	return dn[i:]
}
