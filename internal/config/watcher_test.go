package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigWatcherErrors(t *testing.T) {
	_, err := NewConfigWatcher(&WatcherConfig{})
	assert.ErrorIs(t, err, ErrMissingConfigFile)

	_, err = NewConfigWatcher(&WatcherConfig{FilePath: "x"})
	assert.ErrorIs(t, err, ErrMissingOnChange)

	_, err = NewConfigWatcher(&WatcherConfig{FilePath: filepath.Join(t.TempDir(), "none"), OnChange: func(_, _ *Config) {}})
	assert.Error(t, err)
}

func TestConfigWatcherReload(t *testing.T) {
	t.Setenv("WINSYNC_TEST_PASSWORD", "")
	path := filepath.Join(t.TempDir(), "winsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0600))

	var mu sync.Mutex
	var got *Config
	w, err := NewConfigWatcher(&WatcherConfig{
		FilePath:     path,
		PollInterval: 10 * time.Millisecond,
		Debounce:     10 * time.Millisecond,
		OnChange: func(_, newCfg *Config) {
			mu.Lock()
			defer mu.Unlock()
			got = newCfg
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, w.GetCurrentConfig().Agreement.Timeout)

	w.Start()
	w.Start()
	defer w.Stop()
	assert.True(t, w.IsRunning())

	updated := strings.Replace(sampleConfig, "timeout: 30s", "timeout: 45s\n  linger: 5s", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0600))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 45*time.Second, got.Agreement.Timeout)
	assert.Equal(t, 5*time.Second, got.Agreement.Linger)
	mu.Unlock()
	assert.Same(t, got, w.GetCurrentConfig())
}

func TestConfigWatcherRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0600))

	errCh := make(chan error, 16)
	w, err := NewConfigWatcher(&WatcherConfig{
		FilePath:     path,
		PollInterval: 10 * time.Millisecond,
		Debounce:     10 * time.Millisecond,
		OnChange:     func(_, _ *Config) { t.Error("invalid config must not be applied") },
		OnError:      func(err error) { errCh <- err },
	})
	require.NoError(t, err)
	initial := w.GetCurrentConfig()

	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("agreement:\n  port: 99999\n"), 0600))

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("no validation error reported")
	}
	assert.Same(t, initial, w.GetCurrentConfig())
}

func TestConfigWatcherStopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0600))

	w, err := NewConfigWatcher(&WatcherConfig{FilePath: path, OnChange: func(_, _ *Config) {}})
	require.NoError(t, err)

	w.Stop()
	w.Start()
	w.Stop()
	w.Stop()
	assert.False(t, w.IsRunning())
}
