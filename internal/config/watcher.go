package config

import (
	"os"
	"sync"
	"time"
)

// ConfigWatcher polls a config file and reports valid changes.
type ConfigWatcher struct {
	filePath     string
	pollInterval time.Duration
	debounce     time.Duration
	onChange     func(oldCfg, newCfg *Config)
	onError      func(err error)

	// touched only by the watch loop
	lastModTime time.Time
	lastSize    int64

	mu         sync.Mutex
	lastConfig *Config
	running    bool
	stopCh     chan struct{}
	stoppedCh  chan struct{}
}

// WatcherConfig holds config watcher configuration.
type WatcherConfig struct {
	FilePath     string
	PollInterval time.Duration // Default: 1s
	Debounce     time.Duration // Default: 200ms
	OnChange     func(oldCfg, newCfg *Config)
	// OnError receives load and validation failures. Optional.
	OnError func(err error)
}

// NewConfigWatcher loads the file once and prepares a watcher for it.
func NewConfigWatcher(cfg *WatcherConfig) (*ConfigWatcher, error) {
	if cfg.FilePath == "" {
		return nil, ErrMissingConfigFile
	}
	if cfg.OnChange == nil {
		return nil, ErrMissingOnChange
	}

	info, err := os.Stat(cfg.FilePath)
	if err != nil {
		return nil, err
	}
	initial, err := LoadConfig(cfg.FilePath)
	if err != nil {
		return nil, err
	}

	w := &ConfigWatcher{
		filePath:     cfg.FilePath,
		pollInterval: cfg.PollInterval,
		debounce:     cfg.Debounce,
		onChange:     cfg.OnChange,
		onError:      cfg.OnError,
		lastModTime:  info.ModTime(),
		lastSize:     info.Size(),
		lastConfig:   initial,
	}
	if w.pollInterval <= 0 {
		w.pollInterval = time.Second
	}
	if w.debounce <= 0 {
		w.debounce = 200 * time.Millisecond
	}
	if w.onError == nil {
		w.onError = func(error) {}
	}
	return w, nil
}

// Start begins watching. Calling Start on a running watcher does nothing.
func (w *ConfigWatcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	go w.watchLoop(w.stopCh, w.stoppedCh)
}

// Stop stops watching and waits for the loop to exit.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	stopCh, stoppedCh := w.stopCh, w.stoppedCh
	w.mu.Unlock()

	close(stopCh)
	<-stoppedCh
}

func (w *ConfigWatcher) watchLoop(stopCh <-chan struct{}, stoppedCh chan<- struct{}) {
	defer close(stoppedCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-stopCh:
			return

		case <-ticker.C:
			if !w.fileChanged() {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.debounce)
			fire = debounce.C

		case <-fire:
			debounce, fire = nil, nil
			w.reload()
		}
	}
}

func (w *ConfigWatcher) fileChanged() bool {
	info, err := os.Stat(w.filePath)
	if err != nil {
		return false
	}
	if info.ModTime().Equal(w.lastModTime) && info.Size() == w.lastSize {
		return false
	}
	w.lastModTime = info.ModTime()
	w.lastSize = info.Size()
	return true
}

// reload loads the file and hands a valid result to onChange. An invalid
// file is reported and the previous configuration stays current.
func (w *ConfigWatcher) reload() {
	next, err := LoadConfig(w.filePath)
	if err != nil {
		w.onError(err)
		return
	}
	if errs := ValidateConfig(next); len(errs) > 0 {
		for _, e := range errs {
			w.onError(e)
		}
		return
	}

	w.mu.Lock()
	prev := w.lastConfig
	w.lastConfig = next
	w.mu.Unlock()

	w.onChange(prev, next)
}

// IsRunning returns true if the watcher is running.
func (w *ConfigWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// GetCurrentConfig returns the last loaded config.
func (w *ConfigWatcher) GetCurrentConfig() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastConfig
}
