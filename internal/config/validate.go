package config

import (
	"fmt"
	"os"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/oba-ldap/winsync/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	bindMethods = []string{BindMethodSimple, BindMethodSSLClientAuth, BindMethodGSSAPI, BindMethodDigestMD5}
	transports  = []string{TransportPlain, TransportStartTLS, TransportLDAPS}
	logLevels   = []string{"trace", "debug", "info", "warn", "warning", "error"}
	logFormats  = []string{"text", "json"}
)

// ValidateConfig validates the configuration and returns every problem found.
// An empty slice means the configuration is valid.
func ValidateConfig(cfg *Config) []error {
	var errs []error
	errs = append(errs, validateAgreement(&cfg.Agreement)...)
	errs = append(errs, validateTLS(&cfg.TLS, &cfg.Agreement)...)
	errs = append(errs, validateCredentials(&cfg.Credentials)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateWatchdog(&cfg.Watchdog)...)
	return errs
}

func validateAgreement(a *AgreementConfig) []error {
	var errs []error

	if a.Host == "" {
		errs = append(errs, ValidationError{Field: "agreement.host", Message: "host is required"})
	}
	if a.Port < 1 || a.Port > 65535 {
		errs = append(errs, ValidationError{Field: "agreement.port", Message: fmt.Sprintf("port %d is out of range", a.Port)})
	}
	if !oneOf(a.BindMethod, bindMethods) {
		errs = append(errs, ValidationError{
			Field:   "agreement.bindMethod",
			Message: fmt.Sprintf("must be one of %s", strings.Join(bindMethods, ", ")),
		})
	}
	if !oneOf(a.Transport, transports) {
		errs = append(errs, ValidationError{
			Field:   "agreement.transport",
			Message: fmt.Sprintf("must be one of %s", strings.Join(transports, ", ")),
		})
	}
	if strings.EqualFold(a.BindMethod, BindMethodSSLClientAuth) && strings.EqualFold(a.Transport, TransportPlain) {
		errs = append(errs, ValidationError{
			Field:   "agreement.bindMethod",
			Message: "sslclientauth requires starttls or ldaps transport",
		})
	}
	if strings.EqualFold(a.BindMethod, BindMethodSimple) && a.BindDN == "" && a.Credentials != "" {
		errs = append(errs, ValidationError{Field: "agreement.bindDN", Message: "bind DN is required when credentials are set"})
	}
	if a.Linger < 0 {
		errs = append(errs, ValidationError{Field: "agreement.linger", Message: "linger must not be negative"})
	}
	if a.WindowsSubtree == "" {
		errs = append(errs, ValidationError{Field: "agreement.windowsSubtree", Message: "windows subtree is required"})
	} else if !strings.Contains(a.WindowsSubtree, "=") {
		errs = append(errs, ValidationError{Field: "agreement.windowsSubtree", Message: "not a distinguished name"})
	}
	if f := a.WindowsUserFilter; f != "" {
		if _, err := goldap.CompileFilter(f); err != nil {
			errs = append(errs, ValidationError{Field: "agreement.windowsUserFilter", Message: err.Error()})
		}
	}
	return errs
}

func validateTLS(t *TLSConfig, a *AgreementConfig) []error {
	var errs []error

	secure := strings.EqualFold(a.Transport, TransportStartTLS) || strings.EqualFold(a.Transport, TransportLDAPS)
	if secure && !t.Enabled {
		errs = append(errs, ValidationError{
			Field:   "tls.enabled",
			Message: fmt.Sprintf("TLS must be enabled for transport %s", a.Transport),
		})
	}
	if (t.CertFile == "") != (t.KeyFile == "") {
		errs = append(errs, ValidationError{Field: "tls.certFile", Message: "certFile and keyFile must be set together"})
	}
	if strings.EqualFold(a.BindMethod, BindMethodSSLClientAuth) && t.CertFile == "" {
		errs = append(errs, ValidationError{Field: "tls.certFile", Message: "client certificate is required for sslclientauth"})
	}
	files := []struct{ field, path string }{
		{"tls.caFile", t.CAFile},
		{"tls.certFile", t.CertFile},
		{"tls.keyFile", t.KeyFile},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if _, err := os.Stat(f.path); err != nil {
			errs = append(errs, ValidationError{Field: f.field, Message: fmt.Sprintf("cannot read %s: %v", f.path, err)})
		}
	}
	return errs
}

func validateCredentials(c *CredentialsConfig) []error {
	if c.SecretFile == "" {
		return nil
	}
	if _, err := os.Stat(c.SecretFile); err != nil {
		return []error{ValidationError{Field: "credentials.secretFile", Message: fmt.Sprintf("cannot read %s: %v", c.SecretFile, err)}}
	}
	return nil
}

func validateLogging(l *LogConfig) []error {
	var errs []error
	if l.Level != "" && !oneOf(l.Level, logLevels) {
		errs = append(errs, ValidationError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", l.Level)})
	}
	if l.Format != "" && !oneOf(l.Format, logFormats) {
		errs = append(errs, ValidationError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", l.Format)})
	}
	return errs
}

func validateWatchdog(w *WatchdogConfig) []error {
	var errs []error
	if w.Timeout < 0 {
		errs = append(errs, ValidationError{Field: "watchdog.timeout", Message: "timeout must not be negative"})
	}
	if w.Level != "" && !oneOf(w.Level, logLevels) {
		errs = append(errs, ValidationError{Field: "watchdog.level", Message: fmt.Sprintf("unknown level %q", w.Level)})
	}
	return errs
}

// ParsedLevel returns the level the watchdog switches to.
func (w WatchdogConfig) ParsedLevel() logging.Level {
	return logging.ParseLevel(w.Level)
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
