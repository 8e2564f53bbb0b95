// Package config provides configuration management for the PulseBoard server.
// It handles loading and parsing YAML configuration files and provides
// structured access to application settings including the server port, auth
// directory, logging behavior, proxy configuration, and WHOOP client
// credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PlaceholderClientID is the sentinel shipped in the example config. A client
// id equal to this value is treated the same as an empty one.
const PlaceholderClientID = "whoop-client-id-placeholder"

// WhoopConfig holds the OAuth client settings registered with the WHOOP
// developer portal.
type WhoopConfig struct {
	// ClientID is the application identifier issued by WHOOP.
	ClientID string `yaml:"client-id" json:"client-id"`

	// ClientSecret is the confidential secret issued alongside the client id.
	// It is only ever sent to the WHOOP token endpoint and is never persisted
	// to the credential store.
	ClientSecret string `yaml:"client-secret" json:"-"`

	// RedirectURI must byte-for-byte match the redirect registered with WHOOP.
	// Defaults to http://localhost:<port>/connect.
	RedirectURI string `yaml:"redirect-uri" json:"redirect-uri"`
}

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Port is the port the dashboard API server listens on.
	Port int `yaml:"port" json:"port"`

	// AuthDir is the directory where token sets and pending PKCE material are
	// persisted. Supports a leading ~ for the user home directory.
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// Debug enables verbose logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile switches log output from stdout to rotating files.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// RequestLog enables detailed request logging for dashboard endpoints.
	RequestLog bool `yaml:"request-log" json:"request-log"`

	// ProxyURL is the URL of an optional proxy for outbound WHOOP requests.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// Whoop holds the OAuth client settings.
	Whoop WhoopConfig `yaml:"whoop" json:"whoop"`
}

// LoadConfig reads the configuration file, applies environment overrides and
// fills in defaults. A missing file is not an error; the environment alone can
// carry a complete WHOOP client configuration.
func LoadConfig(configFile string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(configFile)
	switch {
	case err == nil:
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", configFile, errUnmarshal)
		}
	case os.IsNotExist(err):
		// Fall through to env/defaults.
	default:
		return nil, fmt.Errorf("config: failed to read %s: %w", configFile, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnvOverrides lets environment variables take precedence over YAML
// values so secrets can stay out of the config file.
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("WHOOP_CLIENT_ID")); v != "" {
		c.Whoop.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv("WHOOP_CLIENT_SECRET")); v != "" {
		c.Whoop.ClientSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("WHOOP_REDIRECT_URI")); v != "" {
		c.Whoop.RedirectURI = v
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if strings.TrimSpace(c.AuthDir) == "" {
		c.AuthDir = "~/.pulseboard"
	}
	if strings.TrimSpace(c.Whoop.RedirectURI) == "" {
		c.Whoop.RedirectURI = fmt.Sprintf("http://localhost:%d/connect", c.Port)
	}
}

// ClientIDConfigured reports whether a usable WHOOP client id is present.
func (c *Config) ClientIDConfigured() bool {
	id := strings.TrimSpace(c.Whoop.ClientID)
	return id != "" && id != PlaceholderClientID
}

// ResolveAuthDir expands a leading ~ in the auth directory to the user's home
// directory and returns an absolute path.
func ResolveAuthDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", fmt.Errorf("config: auth directory is empty")
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("config: failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(dir, "~"), "/"))
	}
	return filepath.Abs(dir)
}
