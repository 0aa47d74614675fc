// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLoginHost is the production login host, used when every configured
// tier comes up empty.
const DefaultLoginHost = "login.stratus.io"

// Config holds the resolved configuration.
type Config struct {
	// OAuth client settings
	ClientID    string   `json:"client_id"`
	RedirectURI string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes,omitempty"`

	// BootLoginHost is the bundled application-manifest default host
	// (bootconfig.yaml), consulted when no host is persisted.
	BootLoginHost string `json:"boot_login_host,omitempty"`

	// DataDir is the root for the account directory tree, the settings
	// store and the keystore.
	DataDir string `json:"data_dir"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceBoot    Source = "boot"
	SourceGlobal  Source = "global"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	ClientID string
	DataDir  string
}

// bootConfig mirrors the bundled bootconfig.yaml manifest.
type bootConfig struct {
	ClientID    string   `yaml:"client_id"`
	RedirectURI string   `yaml:"redirect_uri"`
	Scopes      []string `yaml:"scopes"`
	LoginHost   string   `yaml:"login_host"`
}

// Default returns the default configuration.
func Default() *Config {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}

	return &Config{
		RedirectURI: "stratus://oauth/done",
		Scopes:      []string{"api", "refresh_token"},
		DataDir:     filepath.Join(dataDir, "stratus"),
		Sources:     make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > global file > bootconfig > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadBootConfig(cfg, bootConfigPath())
	loadFromFile(cfg, globalConfigPath())
	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	return cfg, nil
}

// loadBootConfig applies the bundled manifest, if present.
func loadBootConfig(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var boot bootConfig
	if err := yaml.Unmarshal(data, &boot); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed bootconfig at %s: %v\n", path, err)
		return
	}

	if boot.ClientID != "" {
		cfg.ClientID = boot.ClientID
		cfg.Sources["client_id"] = string(SourceBoot)
	}
	if boot.RedirectURI != "" {
		cfg.RedirectURI = boot.RedirectURI
		cfg.Sources["redirect_uri"] = string(SourceBoot)
	}
	if len(boot.Scopes) > 0 {
		cfg.Scopes = boot.Scopes
		cfg.Sources["scopes"] = string(SourceBoot)
	}
	if boot.LoginHost != "" {
		cfg.BootLoginHost = boot.LoginHost
		cfg.Sources["boot_login_host"] = string(SourceBoot)
	}
}

func loadFromFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	if v, ok := fileCfg["client_id"].(string); ok && v != "" {
		cfg.ClientID = v
		cfg.Sources["client_id"] = string(SourceGlobal)
	}
	if v, ok := fileCfg["redirect_uri"].(string); ok && v != "" {
		cfg.RedirectURI = v
		cfg.Sources["redirect_uri"] = string(SourceGlobal)
	}
	if v, ok := fileCfg["scopes"].([]any); ok && len(v) > 0 {
		var scopes []string
		for _, s := range v {
			if str, ok := s.(string); ok && str != "" {
				scopes = append(scopes, str)
			}
		}
		if len(scopes) > 0 {
			cfg.Scopes = scopes
			cfg.Sources["scopes"] = string(SourceGlobal)
		}
	}
	if v, ok := fileCfg["data_dir"].(string); ok && v != "" {
		cfg.DataDir = v
		cfg.Sources["data_dir"] = string(SourceGlobal)
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("STRATUS_CLIENT_ID"); v != "" {
		cfg.ClientID = v
		cfg.Sources["client_id"] = string(SourceEnv)
	}
	if v := os.Getenv("STRATUS_REDIRECT_URI"); v != "" {
		cfg.RedirectURI = v
		cfg.Sources["redirect_uri"] = string(SourceEnv)
	}
	if v := os.Getenv("STRATUS_SCOPES"); v != "" {
		cfg.Scopes = strings.Split(v, ",")
		cfg.Sources["scopes"] = string(SourceEnv)
	}
	if v := os.Getenv("STRATUS_DATA_DIR"); v != "" {
		cfg.DataDir = v
		cfg.Sources["data_dir"] = string(SourceEnv)
	}
	if v := os.Getenv("STRATUS_LOGIN_HOST"); v != "" {
		cfg.BootLoginHost = v
		cfg.Sources["boot_login_host"] = string(SourceEnv)
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.ClientID != "" {
		cfg.ClientID = o.ClientID
		cfg.Sources["client_id"] = string(SourceFlag)
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
		cfg.Sources["data_dir"] = string(SourceFlag)
	}
}

// Path helpers

func bootConfigPath() string {
	// Next to the binary first (bundled manifest), then the global config dir.
	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), "bootconfig.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(GlobalConfigDir(), "bootconfig.yaml")
}

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "stratus")
}
