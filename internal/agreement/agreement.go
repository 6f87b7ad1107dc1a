// Package agreement holds the replication agreement a connection serves:
// the peer settings read from the configuration file and the facts the
// connection learns about the peer.
package agreement

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oba-ldap/winsync/internal/config"
	"github.com/oba-ldap/winsync/internal/dirsync"
	"github.com/oba-ldap/winsync/internal/entry"
	"github.com/oba-ldap/winsync/internal/winconn"
)

// ErrInvalidCookie is returned when the configured dirsync cookie is not
// valid base64.
var ErrInvalidCookie = errors.New("agreement: invalid dirsync cookie")

// Agreement implements winconn.Agreement on top of an AgreementConfig.
// It is safe for concurrent use.
type Agreement struct {
	mu       sync.RWMutex
	cfg      config.AgreementConfig
	dirsync  *dirsync.State
	isNT4    bool
	isWin2k3 bool
	raw      *entry.Entry
}

var _ winconn.Agreement = (*Agreement)(nil)

// New creates an agreement. A cookie saved by an earlier run is restored
// into the dirsync state.
func New(cfg config.AgreementConfig) (*Agreement, error) {
	state, err := newDirSyncState(cfg.DirSync)
	if err != nil {
		return nil, err
	}
	return &Agreement{cfg: cfg, dirsync: state}, nil
}

func newDirSyncState(cfg config.DirSyncConfig) (*dirsync.State, error) {
	state := dirsync.NewState(cfg.Flags, cfg.MaxAttrCount)
	if cfg.Cookie == "" {
		return state, nil
	}
	cookie, err := base64.StdEncoding.DecodeString(cfg.Cookie)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCookie, err)
	}
	state.SetCookie(cookie)
	return state, nil
}

// Update replaces the settings. It reports whether any setting the
// connection reads on connect changed, in which case the caller should
// request an agreement refresh on the connection. The dirsync state is
// replaced only when its flags or attribute limit change.
func (a *Agreement) Update(cfg config.AgreementConfig) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	old := a.cfg
	if old.DirSync.Flags != cfg.DirSync.Flags || old.DirSync.MaxAttrCount != cfg.DirSync.MaxAttrCount {
		state, err := newDirSyncState(cfg.DirSync)
		if err != nil {
			return false, err
		}
		a.dirsync = state
	}
	a.cfg = cfg

	changed := old.BindDN != cfg.BindDN ||
		!strings.EqualFold(old.BindMethod, cfg.BindMethod) ||
		!strings.EqualFold(old.Transport, cfg.Transport) ||
		old.Credentials != cfg.Credentials ||
		old.Timeout != cfg.Timeout
	return changed, nil
}

// Config returns a copy of the current settings.
func (a *Agreement) Config() config.AgreementConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// LongName returns the name used in log messages.
func (a *Agreement) LongName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return fmt.Sprintf("agmt=%q (%s:%d)", a.cfg.Name, shortHost(a.cfg.Host), a.cfg.Port)
}

func shortHost(host string) string {
	if i := strings.IndexByte(host, '.'); i > 0 {
		return host[:i]
	}
	return host
}

func (a *Agreement) Hostname() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Host
}

func (a *Agreement) Port() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Port
}

func (a *Agreement) BindDN() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.BindDN
}

func (a *Agreement) BindMethod() winconn.BindMethod {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return winconn.ParseBindMethod(a.cfg.BindMethod)
}

func (a *Agreement) Transport() winconn.Transport {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return winconn.ParseTransport(a.cfg.Transport)
}

func (a *Agreement) Credentials() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Credentials
}

func (a *Agreement) Timeout() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Timeout
}

func (a *Agreement) WindowsSubtree() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.WindowsSubtree
}

func (a *Agreement) WindowsUserFilter() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.WindowsUserFilter
}

// DirSync returns the incremental search state.
func (a *Agreement) DirSync() *dirsync.State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dirsync
}

// EncodedCookie returns the current dirsync cookie in the form accepted
// by the configuration file.
func (a *Agreement) EncodedCookie() string {
	cookie := a.DirSync().Cookie()
	if len(cookie) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(cookie)
}

func (a *Agreement) SetIsNT4(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.isNT4 = v
}

// IsNT4 reports whether the peer lacks incremental search.
func (a *Agreement) IsNT4() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isNT4
}

func (a *Agreement) SetIsWin2k3(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.isWin2k3 = v
}

// IsWin2k3 reports whether the peer is Windows Server 2003 or later.
func (a *Agreement) IsWin2k3() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isWin2k3
}

func (a *Agreement) SetRawEntry(e *entry.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raw = e
}

// RawEntry returns the unmapped form of the last entry read.
func (a *Agreement) RawEntry() *entry.Entry {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.raw
}
