package winconn

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/oba-ldap/winsync/internal/dirsync"
	"github.com/oba-ldap/winsync/internal/entry"
	"github.com/oba-ldap/winsync/internal/ldap"
)

// Agreement is the replication agreement a connection works for. It
// supplies the peer settings and receives what the connection learns
// about the peer.
type Agreement interface {
	// LongName identifies the agreement in log messages.
	LongName() string
	Hostname() string
	Port() int
	BindDN() string
	BindMethod() BindMethod
	Transport() Transport
	// Credentials returns the stored bind credential, possibly encrypted.
	Credentials() string
	// Timeout bounds each request. Zero or less means no deadline.
	Timeout() time.Duration

	WindowsSubtree() string
	WindowsUserFilter() string
	DirSync() *dirsync.State

	// SetIsNT4 records that the peer lacks incremental search.
	SetIsNT4(bool)
	// SetIsWin2k3 records that the peer is Windows Server 2003 or later.
	SetIsWin2k3(bool)
	// SetRawEntry stores the unmapped form of the last entry read.
	SetRawEntry(*entry.Entry)
}

// CredentialDecoder turns a stored credential into the bind password.
type CredentialDecoder interface {
	Decode(stored string) ([]byte, error)
}

// DialOptions describes the transport to open.
type DialOptions struct {
	Host      string
	Port      int
	Transport Transport
	// TLS is required for the secure transports.
	TLS *tls.Config
	// Timeout bounds the TCP connect and each request. Zero means none.
	Timeout time.Duration
}

// Dialer opens transports to the peer.
type Dialer interface {
	Dial(ctx context.Context, opts DialOptions) (Session, error)
}

// Session is an open transport. Methods return a response carrying the
// server's result code, including non-success codes, with a nil error.
// A non-nil error means no result was obtained; it is a *ldap.LocalError
// or a context error.
//
// Sessions are used by one request at a time.
type Session interface {
	Bind(ctx context.Context, req *ldap.BindRequest) (*ldap.BindResponse, error)
	Add(ctx context.Context, req *ldap.AddRequest) (*ldap.Response, error)
	Modify(ctx context.Context, req *ldap.ModifyRequest) (*ldap.Response, error)
	Delete(ctx context.Context, req *ldap.DeleteRequest) (*ldap.Response, error)
	ModifyDN(ctx context.Context, req *ldap.ModifyDNRequest) (*ldap.Response, error)
	Extended(ctx context.Context, req *ldap.ExtendedRequest) (*ldap.ExtendedResponse, error)
	Search(ctx context.Context, req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// SearchParams are the parts of a search that hooks may rewrite.
type SearchParams struct {
	Base       string
	Scope      ldap.SearchScope
	Filter     string
	Attributes []string
	Controls   []ldap.Control
	// AttrsOnly requests attribute names without values.
	AttrsOnly bool
}

// SearchHooks lets the object-mapping layer adjust searches before they
// are sent. Either method may be a no-op.
type SearchHooks interface {
	// PreADSearch is called before an entry search.
	PreADSearch(agreement Agreement, params *SearchParams)
	// DirSyncSearchParams is called before an incremental search.
	// subtree is the agreement's Windows subtree as configured.
	DirSyncSearchParams(agreement Agreement, subtree string, params *SearchParams)
}
