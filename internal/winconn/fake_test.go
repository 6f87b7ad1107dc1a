package winconn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oba-ldap/winsync/internal/dirsync"
	"github.com/oba-ldap/winsync/internal/entry"
	"github.com/oba-ldap/winsync/internal/ldap"
)

// fakeAgreement is an in-memory Agreement.
type fakeAgreement struct {
	mu          sync.Mutex
	host        string
	port        int
	bindDN      string
	bindMethod  BindMethod
	transport   Transport
	credentials string
	timeout     time.Duration
	subtree     string
	userFilter  string
	dirsync     *dirsync.State

	isNT4    *bool
	isWin2k3 *bool
	raw      *entry.Entry
}

func newFakeAgreement() *fakeAgreement {
	return &fakeAgreement{
		host:        "ad.example.com",
		port:        389,
		bindDN:      "cn=sync,cn=users,dc=example,dc=com",
		credentials: "secret",
		timeout:     time.Second,
		subtree:     "ou=People,dc=example,dc=com",
		dirsync:     dirsync.NewDefaultState(),
	}
}

func (a *fakeAgreement) LongName() string { return "agmt=\"cn=test\" (ad:389)" }
func (a *fakeAgreement) Hostname() string { return a.host }
func (a *fakeAgreement) Port() int { return a.port }

func (a *fakeAgreement) BindDN() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bindDN
}

func (a *fakeAgreement) BindMethod() BindMethod { return a.bindMethod }
func (a *fakeAgreement) Transport() Transport { return a.transport }
func (a *fakeAgreement) Credentials() string { return a.credentials }
func (a *fakeAgreement) Timeout() time.Duration { return a.timeout }
func (a *fakeAgreement) WindowsSubtree() string { return a.subtree }
func (a *fakeAgreement) WindowsUserFilter() string { return a.userFilter }
func (a *fakeAgreement) DirSync() *dirsync.State { return a.dirsync }
func (a *fakeAgreement) SetRawEntry(e *entry.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raw = e
}

func (a *fakeAgreement) SetIsNT4(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.isNT4 = &v
}

func (a *fakeAgreement) SetIsWin2k3(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.isWin2k3 = &v
}

func (a *fakeAgreement) setBindDN(dn string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bindDN = dn
}

// fakeSession scripts the peer. Unset hooks answer with success.
type fakeSession struct {
	mu sync.Mutex

	rootDSE  *ldap.SearchResultEntry
	bindFn   func(req *ldap.BindRequest) (*ldap.BindResponse, error)
	searchFn func(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	writeFn  func(ctx context.Context, op OpKind, dn string) (*ldap.Response, error)
	extFn    func(req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error)

	binds    []*ldap.BindRequest
	searches []*ldap.SearchRequest
	writes   int
	closed   int
}

func newRootDSE(controls, extensions, capabilities []string) *ldap.SearchResultEntry {
	return &ldap.SearchResultEntry{
		ObjectName: "",
		Attributes: []ldap.PartialAttribute{
			{Type: ldap.AttrSupportedControl, Values: ldap.StringsToValues(controls...)},
			{Type: ldap.AttrSupportedExtension, Values: ldap.StringsToValues(extensions...)},
			{Type: ldap.AttrSupportedCapabilities, Values: ldap.StringsToValues(capabilities...)},
		},
	}
}

func modernRootDSE() *ldap.SearchResultEntry {
	return newRootDSE(
		[]string{ldap.OIDDirSync, ldap.OIDReplUpdateInfoControl},
		[]string{
			ldap.OIDStartReplicationRequest, ldap.OIDEndReplicationRequest,
			ldap.OIDReplicationEntryRequest, ldap.OIDReplicationResponse,
		},
		[]string{ldap.OIDWin2k3Capability},
	)
}

func (s *fakeSession) Bind(ctx context.Context, req *ldap.BindRequest) (*ldap.BindResponse, error) {
	s.mu.Lock()
	s.binds = append(s.binds, req)
	fn := s.bindFn
	s.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &ldap.BindResponse{}, nil
}

func (s *fakeSession) write(ctx context.Context, op OpKind, dn string) (*ldap.Response, error) {
	s.mu.Lock()
	s.writes++
	fn := s.writeFn
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, op, dn)
	}
	return &ldap.Response{}, nil
}

func (s *fakeSession) Add(ctx context.Context, req *ldap.AddRequest) (*ldap.Response, error) {
	return s.write(ctx, OpAdd, req.Entry)
}

func (s *fakeSession) Modify(ctx context.Context, req *ldap.ModifyRequest) (*ldap.Response, error) {
	return s.write(ctx, OpModify, req.Object)
}

func (s *fakeSession) Delete(ctx context.Context, req *ldap.DeleteRequest) (*ldap.Response, error) {
	return s.write(ctx, OpDelete, req.DN)
}

func (s *fakeSession) ModifyDN(ctx context.Context, req *ldap.ModifyDNRequest) (*ldap.Response, error) {
	return s.write(ctx, OpRename, req.Entry)
}

func (s *fakeSession) Extended(ctx context.Context, req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error) {
	s.mu.Lock()
	fn := s.extFn
	s.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &ldap.ExtendedResponse{Name: req.Name}, nil
}

func (s *fakeSession) Search(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	s.mu.Lock()
	s.searches = append(s.searches, req)
	fn := s.searchFn
	root := s.rootDSE
	s.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	if req.BaseObject == "" && req.Scope == ldap.ScopeBaseObject && root != nil {
		return &ldap.SearchResult{Entries: []*ldap.SearchResultEntry{root}}, nil
	}
	return &ldap.SearchResult{}, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeSession) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.searches)
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) bindNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.binds))
	for i, b := range s.binds {
		names[i] = b.Name
	}
	return names
}

// fakeDialer hands out sessions built by newSession.
type fakeDialer struct {
	mu         sync.Mutex
	newSession func() *fakeSession
	err        error
	dials      []DialOptions
	sessions   []*fakeSession
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{newSession: func() *fakeSession {
		return &fakeSession{rootDSE: modernRootDSE()}
	}}
}

func (d *fakeDialer) Dial(ctx context.Context, opts DialOptions) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials = append(d.dials, opts)
	if d.err != nil {
		return nil, d.err
	}
	s := d.newSession()
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

func (d *fakeDialer) last() *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

type failingDecoder struct{}

func (failingDecoder) Decode(string) ([]byte, error) {
	return nil, errors.New("bad ciphertext")
}

func noEnv(string) (string, bool) { return "", false }

func newTestConnection(t *testing.T, opts Options) (*Connection, *fakeAgreement, *fakeDialer) {
	t.Helper()
	agmt := newFakeAgreement()
	dialer := newFakeDialer()
	if opts.LookupEnv == nil {
		opts.LookupEnv = noEnv
	}
	c := New(agmt, dialer, opts)
	return c, agmt, dialer
}

func connectedTestConnection(t *testing.T, opts Options) (*Connection, *fakeAgreement, *fakeDialer) {
	t.Helper()
	c, agmt, dialer := newTestConnection(t, opts)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return c, agmt, dialer
}

// assertInvariants checks the state and linger invariants.
func assertInvariants(t *testing.T, c *Connection) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, c.state == StateConnected, c.session != nil, "session present iff connected")
	if c.lingerActive {
		assert.Equal(t, StateConnected, c.state, "linger only while connected")
	}
}

func refs(c *Connection) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}
