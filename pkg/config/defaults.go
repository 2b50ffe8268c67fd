package config

import (
	"strings"
	"time"
)

// Default values applied by ApplyDefaults.
const (
	DefaultHost            = "localhost"
	DefaultProtocol        = "tcp"
	DefaultNFSPort         = 2049
	DefaultPortmapPort     = 111
	DefaultDialTimeout     = 5 * time.Second
	DefaultCallTimeout     = 30 * time.Second
	DefaultUDPTimeout      = time.Second
	DefaultUDPMaxTimeout   = 25 * time.Second
	DefaultUDPRetries      = 5
	DefaultMaxRecordSize   = 1 << 20
	DefaultReadDirCount    = 2000
	DefaultCacheType       = "memory"
	DefaultCacheTTL        = 30 * time.Second
	DefaultCacheMaxEntries = 10000
	DefaultMetricsPort     = 9090
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Server.MountPort stays 0 so the portmapper is asked
//   - Auth fields stay unset and are resolved from the local process
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyTimeoutsDefaults(&cfg.Timeouts)
	applyUDPDefaults(&cfg.UDP)
	applyTCPDefaults(&cfg.TCP)
	applyReadDirDefaults(&cfg.ReadDir)
	applyCacheDefaults(&cfg.Cache)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	// stdout carries command output
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Protocol == "" {
		cfg.Protocol = DefaultProtocol
	}
	cfg.Protocol = strings.ToLower(cfg.Protocol)

	if cfg.NFSPort == 0 {
		cfg.NFSPort = DefaultNFSPort
	}
	if cfg.PortmapPort == 0 {
		cfg.PortmapPort = DefaultPortmapPort
	}
}

func applyTimeoutsDefaults(cfg *TimeoutsConfig) {
	if cfg.Dial == 0 {
		cfg.Dial = DefaultDialTimeout
	}
	if cfg.Call == 0 {
		cfg.Call = DefaultCallTimeout
	}
}

func applyUDPDefaults(cfg *UDPConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultUDPTimeout
	}
	if cfg.MaxTimeout == 0 {
		cfg.MaxTimeout = max(DefaultUDPMaxTimeout, cfg.Timeout)
	}
	if cfg.Retries == nil {
		retries := DefaultUDPRetries
		cfg.Retries = &retries
	}
}

func applyTCPDefaults(cfg *TCPConfig) {
	if cfg.MaxRecordSize == 0 {
		cfg.MaxRecordSize = DefaultMaxRecordSize
	}
}

func applyReadDirDefaults(cfg *ReadDirConfig) {
	if cfg.Count == 0 {
		cfg.Count = DefaultReadDirCount
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Type == "" {
		cfg.Type = DefaultCacheType
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.TTL == 0 {
		cfg.TTL = DefaultCacheTTL
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = DefaultCacheMaxEntries
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
