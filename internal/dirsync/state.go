package dirsync

import (
	"sync"

	"github.com/oba-ldap/winsync/internal/ldap"
)

// State is the change token of one replication agreement. It is safe for
// concurrent use.
type State struct {
	mu           sync.Mutex
	flags        int64
	maxAttrCount int64
	cookie       []byte
	hasMore      bool
}

// NewState creates a state with no cookie, so the first search returns the
// whole subtree.
func NewState(flags, maxAttrCount int64) *State {
	return &State{flags: flags, maxAttrCount: maxAttrCount}
}

// NewDefaultState creates a state with the default flags and no attribute
// count limit.
func NewDefaultState() *State {
	return NewState(DefaultFlags, DefaultMaxAttributeCount)
}

// Control returns the request control for the next search.
func (s *State) Control() ldap.Control {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Request{
		Flags:        s.flags,
		MaxAttrCount: s.maxAttrCount,
		Cookie:       s.cookie,
	}.Control()
}

// Update records the token returned with a finished search. A response
// without a readable dirsync control keeps the cookie but clears the
// has-more flag, so callers looping on HasMore stop. It reports whether a
// new token was recorded.
func (s *State) Update(controls []ldap.Control) (bool, error) {
	c := ldap.FindControl(controls, ldap.OIDDirSync)
	if c == nil {
		s.clearMore()
		return false, nil
	}
	resp, err := DecodeResponse(c.Value)
	if err != nil {
		s.clearMore()
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookie = resp.Cookie
	s.hasMore = resp.MoreResults
	return true, nil
}

func (s *State) clearMore() {
	s.mu.Lock()
	s.hasMore = false
	s.mu.Unlock()
}

// HasMore reports whether the peer holds more changes than it returned in
// the last round.
func (s *State) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Cookie returns a copy of the current token.
func (s *State) Cookie() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.cookie...)
}

// SetCookie restores a token saved from an earlier session.
func (s *State) SetCookie(cookie []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookie = append([]byte(nil), cookie...)
	s.hasMore = false
}

// Reset forgets the token so the next search starts a full resync.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookie = nil
	s.hasMore = false
}
