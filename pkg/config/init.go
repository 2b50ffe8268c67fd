package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# nfsclient Configuration File
#
# Values can be overridden with NFSCLIENT_* environment variables, e.g.
#   NFSCLIENT_SERVER_HOST=filer.local
#   NFSCLIENT_UDP_RETRIES=3
# and with nfsctl flags (--host, --protocol, ...).

`

// sectionComments annotates the top-level keys of a generated file.
var sectionComments = map[string]string{
	"logging":    "Logging: level DEBUG|INFO|WARN|ERROR, format text|json, output stdout|stderr|<file>",
	"server":     "Server address. A port of 0 is resolved through the portmapper.",
	"timeouts":   "Dial and per-call timeouts (call includes all UDP retransmissions)",
	"udp":        "UDP retransmission: the wait doubles from timeout up to max_timeout",
	"tcp":        "TCP record marking limits",
	"auth":       "AUTH_UNIX identity. Unset fields come from the local process.",
	"readdir":    "READDIR reply size in bytes",
	"rate_limit": "Outgoing call rate. 0 disables limiting.",
	"cache":      "Path to file handle cache: memory, badger or none",
	"metrics":    "Prometheus endpoint served by 'nfsctl probe'",
}

// InitConfig writes a default configuration file to the default location.
//
// Returns the path of the written file. Fails if the file exists and force
// is false.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveConfig writes cfg to path as YAML.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg with a header and a comment above
// each top-level section.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	// doc is a mapping: Content alternates key, value
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}

	return buf.String(), nil
}
