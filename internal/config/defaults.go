package config

import (
	"time"

	"github.com/oba-ldap/winsync/internal/dirsync"
)

// Default values.
const (
	DefaultTimeout = 120 * time.Second
	DefaultLinger  = 60 * time.Second
	DefaultPort    = 389
	DefaultTLSPort = 636
)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Agreement: AgreementConfig{
			BindMethod: BindMethodSimple,
			Transport:  TransportPlain,
			Timeout:    DefaultTimeout,
			Linger:     DefaultLinger,
			DirSync: DirSyncConfig{
				Flags:        dirsync.DefaultFlags,
				MaxAttrCount: dirsync.DefaultMaxAttributeCount,
			},
		},
		Logging: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Watchdog: WatchdogConfig{
			Level: "trace",
		},
	}
}
