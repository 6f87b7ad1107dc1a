package config

import "time"

// Config holds the complete configuration of one agreement.
type Config struct {
	Agreement   AgreementConfig   `yaml:"agreement"`
	TLS         TLSConfig         `yaml:"tls"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Logging     LogConfig         `yaml:"logging"`
	Watchdog    WatchdogConfig    `yaml:"watchdog"`
}

// Bind methods.
const (
	BindMethodSimple        = "simple"
	BindMethodSSLClientAuth = "sslclientauth"
	BindMethodGSSAPI        = "gssapi"
	BindMethodDigestMD5     = "digest-md5"
)

// Transports.
const (
	TransportPlain    = "plain"
	TransportStartTLS = "starttls"
	TransportLDAPS    = "ldaps"
)

// AgreementConfig describes the peer and how to reach it.
type AgreementConfig struct {
	// Name identifies the agreement in logs.
	Name string `yaml:"name"`
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	BindDN     string `yaml:"bindDN"`
	BindMethod string `yaml:"bindMethod"`
	Transport  string `yaml:"transport"`
	// Credentials is the bind password, in clear text or as an
	// "{AES-GCM}..." blob.
	Credentials string `yaml:"credentials"`

	// Timeout bounds every request. Zero or less means no deadline.
	Timeout time.Duration `yaml:"timeout"`
	// Linger is how long an idle connection stays open.
	Linger time.Duration `yaml:"linger"`

	WindowsSubtree    string `yaml:"windowsSubtree"`
	WindowsUserFilter string `yaml:"windowsUserFilter"`

	DirSync DirSyncConfig `yaml:"dirsync"`
}

// DirSyncConfig tunes the incremental search.
type DirSyncConfig struct {
	Flags        int64 `yaml:"flags"`
	MaxAttrCount int64 `yaml:"maxAttrCount"`
	// Cookie is a base64 token saved by an earlier run.
	Cookie string `yaml:"cookie"`
}

// TLSConfig holds the client TLS settings used by starttls and ldaps.
type TLSConfig struct {
	Enabled            bool   `yaml:"enabled"`
	CAFile             string `yaml:"caFile"`
	CertFile           string `yaml:"certFile"`
	KeyFile            string `yaml:"keyFile"`
	ServerName         string `yaml:"serverName"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

// CredentialsConfig locates the master secret of the credential codec.
type CredentialsConfig struct {
	SecretFile string `yaml:"secretFile"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// WatchdogConfig configures the debug-timeout watchdog.
type WatchdogConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Level   string        `yaml:"level"`
}
