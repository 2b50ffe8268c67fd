package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marmos91/nfsclient/internal/logger"
)

// Config represents the complete nfsclient configuration.
//
// This structure captures all configurable aspects of a client session:
//   - Logging configuration
//   - Server address, transport and ports
//   - Call timeouts and datagram retransmission
//   - AUTH_UNIX identity
//   - Handle cache backend
//   - Rate limiting and metrics
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (NFSCLIENT_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server identifies the NFS server and how to reach it
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`

	// UDP controls datagram retransmission
	UDP UDPConfig `mapstructure:"udp" yaml:"udp"`

	// TCP controls record marking limits
	TCP TCPConfig `mapstructure:"tcp" yaml:"tcp"`

	// Auth is the identity sent in AUTH_UNIX credentials
	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	ReadDir ReadDirConfig `mapstructure:"readdir" yaml:"readdir"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`

	// Cache selects the path to handle cache backend
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig identifies the server.
//
// A port of 0 is resolved through the server's portmapper at dial time.
type ServerConfig struct {
	// Host is the server host name or address
	Host string `mapstructure:"host" yaml:"host" validate:"required"`

	// Protocol is the transport for both Mount and NFS
	// Valid values: tcp, udp
	Protocol string `mapstructure:"protocol" yaml:"protocol" validate:"required,oneof=tcp udp"`

	// NFSPort is the NFS program port
	NFSPort int `mapstructure:"nfs_port" yaml:"nfs_port" validate:"gte=0,lte=65535"`

	// MountPort is the Mount program port. Usually left at 0.
	MountPort int `mapstructure:"mount_port" yaml:"mount_port" validate:"gte=0,lte=65535"`

	// PortmapPort is the portmapper port used to resolve a 0 port
	PortmapPort int `mapstructure:"portmap_port" yaml:"portmap_port" validate:"gte=1,lte=65535"`
}

// TimeoutsConfig bounds connection setup and individual calls.
type TimeoutsConfig struct {
	// Dial bounds establishing a connection (TCP) or binding a socket (UDP)
	Dial time.Duration `mapstructure:"dial" yaml:"dial" validate:"gte=0"`

	// Call bounds one call including all retransmissions. 0 means no limit.
	Call time.Duration `mapstructure:"call" yaml:"call" validate:"gte=0"`
}

// UDPConfig controls datagram retransmission.
type UDPConfig struct {
	// Timeout is the wait for a reply after the first send
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`

	// MaxTimeout caps the doubling wait between retransmissions
	MaxTimeout time.Duration `mapstructure:"max_timeout" yaml:"max_timeout" validate:"gte=0"`

	// Retries is the number of retransmissions after the first send.
	// Nil means the default; 0 disables retransmission.
	Retries *int `mapstructure:"retries" yaml:"retries,omitempty" validate:"omitempty,gte=0,lte=32"`
}

// TCPConfig controls record marking.
type TCPConfig struct {
	// MaxRecordSize is the largest reply accepted, in bytes
	MaxRecordSize int `mapstructure:"max_record_size" yaml:"max_record_size" validate:"gte=0"`

	// MaxFragmentSize splits outgoing records. 0 sends one fragment.
	MaxFragmentSize int `mapstructure:"max_fragment_size" yaml:"max_fragment_size" validate:"gte=0"`
}

// AuthConfig is the AUTH_UNIX identity. Unset fields are taken from the
// local process when the credential is first needed.
type AuthConfig struct {
	// MachineName defaults to the local host name
	MachineName string `mapstructure:"machine_name" yaml:"machine_name,omitempty" validate:"max=255"`

	UID *uint32 `mapstructure:"uid" yaml:"uid,omitempty"`
	GID *uint32 `mapstructure:"gid" yaml:"gid,omitempty"`

	// GIDs are the supplementary groups
	GIDs []uint32 `mapstructure:"gids" yaml:"gids,omitempty" validate:"max=16"`
}

// ReadDirConfig controls directory listing.
type ReadDirConfig struct {
	// Count is the READDIR reply size requested from the server, in bytes
	Count uint32 `mapstructure:"count" yaml:"count" validate:"gt=0,lte=8192"`
}

// RateLimitConfig throttles outgoing calls. A zero rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             uint `mapstructure:"burst" yaml:"burst"`
}

// CacheConfig specifies the path to handle cache.
//
// The Type field determines which backend is used. Badger options are
// decoded by the badger backend itself.
type CacheConfig struct {
	// Type selects the backend
	// Valid values: memory, badger, none
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger none"`

	// TTL is the entry lifetime. 0 means entries never expire.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gte=0"`

	// MaxEntries bounds the memory backend
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries" validate:"gte=0"`

	// Badger contains badger-specific options (path, in_memory, sync_writes, ...)
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port for the metrics HTTP server
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,gte=1,lte=65535"`
}

// envKeys are bound explicitly so that environment variables apply even
// when the key is absent from the config file.
var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"server.host", "server.protocol", "server.nfs_port", "server.mount_port", "server.portmap_port",
	"timeouts.dial", "timeouts.call",
	"udp.timeout", "udp.max_timeout", "udp.retries",
	"tcp.max_record_size", "tcp.max_fragment_size",
	"auth.machine_name", "auth.uid", "auth.gid",
	"readdir.count",
	"rate_limit.requests_per_second", "rate_limit.burst",
	"cache.type", "cache.ttl", "cache.max_entries",
	"metrics.enabled", "metrics.port",
}

// Load loads configuration from file, environment variables, and defaults.
//
// Configuration file search order:
//  1. Path specified by configPath parameter
//  2. $XDG_CONFIG_HOME/nfsclient/config.yaml
//  3. ~/.config/nfsclient/config.yaml
//
// Environment variables use the NFSCLIENT_ prefix with underscores:
//
//	NFSCLIENT_SERVER_HOST=filer.local
//	NFSCLIENT_UDP_RETRIES=3
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: NFSCLIENT_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("NFSCLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/nfsclient/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// Config file not found is acceptable - use defaults
			logger.Debug("No config file found (%s), using defaults", configPath)
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nfsclient")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "nfsclient")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
