// Package winconn manages the outbound connection of one replication
// agreement to an Active Directory peer. It connects and binds, keeps an
// idle connection open for a linger period, probes peer capabilities and
// dispatches write, search and incremental-change operations while
// classifying their results.
package winconn

import (
	"crypto/tls"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oba-ldap/winsync/internal/ldap"
	"github.com/oba-ldap/winsync/internal/logging"
	"github.com/oba-ldap/winsync/internal/watchdog"
)

// DefaultLinger is how long an idle connection stays open.
const DefaultLinger = 60 * time.Second

// UseDirSyncEnv forces incremental-search support on when set. It is meant
// for a stand-in peer that speaks the same protocol as the local server.
const UseDirSyncEnv = "WINSYNC_USE_DS"

// Options configures a Connection. The zero value is usable.
type Options struct {
	// TLS is required for the starttls and ldaps transports.
	TLS *tls.Config
	// Credentials decodes the stored bind credential. Nil uses it verbatim.
	Credentials CredentialDecoder
	// Logger receives connection events. Nil discards them.
	Logger logging.Logger
	// Watchdog raises verbosity when an operation hangs. May be nil.
	Watchdog *watchdog.Watchdog
	// Linger is the idle period before StartLinger closes the connection.
	// Zero selects DefaultLinger.
	Linger time.Duration
	// Hooks may rewrite searches before they are sent. May be nil.
	Hooks SearchHooks
	// LookupEnv reads the environment. Nil uses os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Connection is the connection of one agreement to its peer. Its methods
// are safe for concurrent use, but callers are expected to issue one
// request at a time.
type Connection struct {
	agreement Agreement
	dialer    Dialer
	opts      Options
	log       logging.Logger
	id        string

	mu      sync.Mutex
	session Session
	state   State
	status  string
	lastOp  OpKind
	lastErr ldap.ResultCode

	host       string
	port       int
	bindDN     string
	bindMethod BindMethod
	transport  Transport
	timeout    time.Duration
	password   []byte
	// refresh asks the next Connect to re-read the agreement.
	refresh bool

	linger            time.Duration
	lingerTimer       *time.Timer
	lingerActive      bool
	lingerGen         uint64
	deleteAfterLinger bool
	deleted           bool
	refs              int

	supportsDS5     Capability
	supportsDirSync Capability
	isWin2k3        Capability
}

// New creates a disconnected connection for agreement.
func New(agreement Agreement, dialer Dialer, opts Options) *Connection {
	if opts.Linger <= 0 {
		opts.Linger = DefaultLinger
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = os.LookupEnv
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}

	id := uuid.NewString()
	c := &Connection{
		agreement:  agreement,
		dialer:     dialer,
		opts:       opts,
		id:         id,
		log:        log.WithFields("agreement", agreement.LongName(), "connection_id", id),
		state:      StateDisconnected,
		status:     StatusDisconnected,
		host:       agreement.Hostname(),
		port:       agreement.Port(),
		bindDN:     agreement.BindDN(),
		bindMethod: agreement.BindMethod(),
		transport:  agreement.Transport(),
		timeout:    agreement.Timeout(),
		linger:     opts.Linger,
		refs:       1,
	}
	return c
}

// ID returns the identifier carried in this connection's log messages.
func (c *Connection) ID() string {
	return c.id
}

// State returns the connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the connection is open and bound.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Status returns a label describing what the connection is doing.
func (c *Connection) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastError returns the last operation attempted and its result code.
func (c *Connection) LastError() (OpKind, ldap.ResultCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOp, c.lastErr
}

// SetTimeout changes the request timeout. Zero or less removes the deadline.
func (c *Connection) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// Timeout returns the request timeout.
func (c *Connection) Timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

// RequestAgreementRefresh makes the next Connect re-read the bind DN,
// bind method, transport and timeout from the agreement. A connection that
// is already open keeps its settings until it reconnects.
func (c *Connection) RequestAgreementRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh = true
}

// Disconnect closes the transport. It is safe to call when disconnected.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	sess := c.detachLocked()
	c.mu.Unlock()
	c.closeSession(sess)
}

// detachLocked moves the connection to Disconnected and returns the
// session to close once the lock is released.
func (c *Connection) detachLocked() Session {
	c.stopLingerLocked()
	sess := c.session
	c.session = nil
	c.state = StateDisconnected
	c.status = StatusDisconnected
	c.supportsDS5 = CapabilityUnknown
	return sess
}

func (c *Connection) closeSession(sess Session) {
	if sess == nil {
		return
	}
	if err := sess.Close(); err != nil {
		c.log.Debug("error closing transport", "error", err)
	}
}

// checkLocked verifies the connection can carry a request. On failure it
// records op with a server-down code.
func (c *Connection) checkLocked(op OpKind) error {
	if c.goneLocked() {
		return ErrDeleted
	}
	if c.state != StateConnected {
		c.lastOp = op
		c.lastErr = ldap.ResultServerDown
		return &OperationError{Op: op, Code: ldap.ResultServerDown, Err: ErrNotConnected}
	}
	return nil
}
