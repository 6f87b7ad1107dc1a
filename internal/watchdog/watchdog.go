// Package watchdog raises log verbosity when an operation runs longer than
// expected, so a hung replication session leaves a trace behind.
package watchdog

import (
	"sync"
	"time"

	"github.com/oba-ldap/winsync/internal/logging"
)

// LevelSetter is the part of a logger the watchdog adjusts.
type LevelSetter interface {
	SetLevel(level logging.Level)
	GetLevel() logging.Level
}

// Config configures a Watchdog.
type Config struct {
	// Timeout is how long an operation may run before the level is raised.
	// Zero disables the watchdog.
	Timeout time.Duration
	// Level is the level set when the timeout expires.
	Level logging.Level
}

// Watchdog watches operations started with Start. While at least one
// watched operation has outlived the timeout the logger runs at the
// configured level; the previous level is restored once none remain.
type Watchdog struct {
	cfg    Config
	target LevelSetter
	log    logging.Logger

	mu       sync.Mutex
	expired  int
	previous logging.Level
	now      func() time.Time
}

// New creates a watchdog adjusting target. A nil log discards output.
func New(cfg Config, target LevelSetter, log logging.Logger) *Watchdog {
	if log == nil {
		log = logging.NewNop()
	}
	return &Watchdog{cfg: cfg, target: target, log: log, now: time.Now}
}

// Handle tracks one watched operation.
type Handle struct {
	w       *Watchdog
	name    string
	started time.Time
	timer   *time.Timer

	mu      sync.Mutex
	fired   bool
	stopped bool
}

// Start begins watching an operation. The returned handle must be stopped
// when the operation ends. A nil watchdog or a zero timeout returns a
// handle whose Stop does nothing.
func (w *Watchdog) Start(name string) *Handle {
	h := &Handle{w: w, name: name}
	if w == nil || w.cfg.Timeout <= 0 || w.target == nil {
		return h
	}
	h.started = w.now()
	h.timer = time.AfterFunc(w.cfg.Timeout, h.fire)
	return h
}

func (h *Handle) fire() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.fired = true
	h.w.raise(h.name)
}

// Stop ends the watch and restores the log level if this operation raised it.
func (h *Handle) Stop() {
	if h == nil || h.timer == nil {
		return
	}
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	fired := h.fired
	h.mu.Unlock()

	h.timer.Stop()
	if fired {
		h.w.restore(h.name, h.w.now().Sub(h.started))
	}
}

func (w *Watchdog) raise(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.expired == 0 {
		w.previous = w.target.GetLevel()
		w.target.SetLevel(w.cfg.Level)
	}
	w.expired++
	w.log.Warn("operation exceeded watchdog timeout, raising log level",
		"operation", name,
		"timeout", w.cfg.Timeout.String(),
		"level", w.cfg.Level.String(),
	)
}

func (w *Watchdog) restore(name string, elapsed time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.expired--
	w.log.Info("watched operation finished", "operation", name, "elapsed", elapsed.String())
	if w.expired == 0 {
		w.target.SetLevel(w.previous)
	}
}

// Active reports whether the raised level is in effect.
func (w *Watchdog) Active() bool {
	if w == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expired > 0
}
