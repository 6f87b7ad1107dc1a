package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/oba-ldap/winsync/internal/agreement"
	"github.com/oba-ldap/winsync/internal/config"
	"github.com/oba-ldap/winsync/internal/crypto"
	"github.com/oba-ldap/winsync/internal/logging"
	"github.com/oba-ldap/winsync/internal/transport"
	"github.com/oba-ldap/winsync/internal/watchdog"
	"github.com/oba-ldap/winsync/internal/winconn"
)

// newDialer builds the transport used by every command. Tests replace it.
var newDialer = func(log logging.Logger) winconn.Dialer {
	return transport.NewDialer(log)
}

// session is everything a command needs to talk to the peer.
type session struct {
	path      string
	cfg       *config.Config
	log       logging.Logger
	agreement *agreement.Agreement
	conn      *winconn.Connection
}

// openSession loads and validates the configuration and builds the
// connection. It does not connect.
func (c *command) openSession() (*session, error) {
	path := c.str("--config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}

	logCfg := logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if level := c.str("--log-level"); level != "" {
		logCfg.Level = level
	}
	log := logging.New(logCfg).WithRequestID(logging.GenerateRequestID())

	tlsCfg, err := cfg.TLS.Build(cfg.Agreement.Host)
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}

	codec := crypto.NewCodec(nil)
	if cfg.Credentials.SecretFile != "" {
		secret, err := crypto.LoadSecretFile(cfg.Credentials.SecretFile)
		if err != nil {
			return nil, fmt.Errorf("load secret: %w", err)
		}
		if codec, err = crypto.NewCodecFromSecret(secret); err != nil {
			return nil, fmt.Errorf("credential key: %w", err)
		}
	}

	agmt, err := agreement.New(cfg.Agreement)
	if err != nil {
		return nil, err
	}

	wd := watchdog.New(watchdog.Config{
		Timeout: cfg.Watchdog.Timeout,
		Level:   cfg.Watchdog.ParsedLevel(),
	}, log, log)

	conn := winconn.New(agmt, newDialer(log), winconn.Options{
		TLS:         tlsCfg,
		Credentials: codec,
		Logger:      log,
		Watchdog:    wd,
		Linger:      cfg.Agreement.Linger,
	})

	return &session{path: path, cfg: cfg, log: log, agreement: agmt, conn: conn}, nil
}

// connect opens a session and connects it. On failure the returned code
// is the exit code.
func (c *command) connect(ctx context.Context) (*session, int) {
	s, err := c.openSession()
	if err != nil {
		return nil, c.fail("%v", err)
	}
	if err := s.conn.Connect(ctx); err != nil {
		s.conn.Delete()
		return nil, c.fail("connect to %s: %s (%v)", s.agreement.LongName(), winconn.OutcomeOf(err), err)
	}
	return s, 0
}

func (s *session) close() {
	s.conn.Delete()
}

// watch applies configuration changes to the agreement while a long
// running command is active. The next reconnect picks them up.
func (s *session) watch() (stop func(), err error) {
	w, err := config.NewConfigWatcher(&config.WatcherConfig{
		FilePath: s.path,
		OnChange: s.reload,
		OnError: func(err error) {
			s.log.Warn("config reload failed", "error", err)
		},
	})
	if err != nil {
		return nil, err
	}
	w.Start()
	s.log.Info("config file watcher started", "file", s.path)
	return w.Stop, nil
}

func (s *session) reload(oldCfg, newCfg *config.Config) {
	s.log.Info("config file changed, applying agreement settings")

	if oldCfg.Logging.Level != newCfg.Logging.Level {
		s.log.SetLevel(logging.ParseLevel(newCfg.Logging.Level))
		s.log.Info("log level changed", "old", oldCfg.Logging.Level, "new", newCfg.Logging.Level)
	}

	changed, err := s.agreement.Update(newCfg.Agreement)
	if err != nil {
		s.log.Warn("agreement update rejected", "error", err)
		return
	}
	if changed {
		s.conn.RequestAgreementRefresh()
		s.conn.Disconnect()
		s.log.Info("agreement changed, connection will rebind")
	}
	if oldCfg.Agreement.Timeout != newCfg.Agreement.Timeout {
		s.conn.SetTimeout(newCfg.Agreement.Timeout)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// readPassword reads a password from path, or from r when path is "-".
// One trailing newline is removed.
func readPassword(path string, r io.Reader) ([]byte, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(r)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	s := strings.TrimSuffix(string(data), "\n")
	s = strings.TrimSuffix(s, "\r")
	return []byte(s), nil
}
