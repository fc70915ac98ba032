// ABOUTME: Configuration loading and parsing for ward-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ward-gateway configuration
type Config struct {
	Server       ServerConfig             `yaml:"server"`
	ControlPlane ControlPlaneConfig       `yaml:"control_plane"`
	Database     DatabaseConfig           `yaml:"database"`
	Auth         AuthConfig               `yaml:"auth"`
	Kernel       KernelConfig             `yaml:"kernel"`
	Servers      map[string]BackendConfig `yaml:"servers"`
	Cache        CacheConfig              `yaml:"cache"`
	Process      ProcessConfig            `yaml:"process"`
	Logging      LoggingConfig            `yaml:"logging"`
}

// ServerConfig holds listener address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// ControlPlaneConfig holds the policy control plane endpoint configuration
type ControlPlaneConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// DatabaseConfig holds audit database configuration.
// An empty path keeps the audit log in memory only.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// KernelConfig identifies this gateway deployment to the control plane
type KernelConfig struct {
	KernelID string `yaml:"kernel_id"`
	Version  string `yaml:"version"`
}

// BackendConfig describes one backend MCP tool server process
type BackendConfig struct {
	Command    string            `yaml:"command"`
	Args       []string          `yaml:"args"`
	ToolPrefix string            `yaml:"tool_prefix"`
	Env        map[string]string `yaml:"env"`
}

// CacheConfig holds authorization decision cache configuration
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// ProcessConfig holds backend process timing configuration
type ProcessConfig struct {
	RequestTimeout time.Duration `yaml:"-"`
	StopGrace      time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout"`
	StopGraceRaw      string `yaml:"stop_grace"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.ControlPlane.URL == "" {
		return fmt.Errorf("control_plane.url is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	// Tool prefixes must be unique and non-empty or tool routing is ambiguous.
	seen := make(map[string]string, len(c.Servers))
	for name, backend := range c.Servers {
		if backend.Command == "" {
			return fmt.Errorf("servers.%s.command is required", name)
		}
		if backend.ToolPrefix == "" {
			return fmt.Errorf("servers.%s.tool_prefix is required", name)
		}
		if other, dup := seen[backend.ToolPrefix]; dup {
			return fmt.Errorf("servers.%s.tool_prefix %q duplicates servers.%s", name, backend.ToolPrefix, other)
		}
		seen[backend.ToolPrefix] = name
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.ControlPlane.TimeoutRaw != "" {
		cfg.ControlPlane.Timeout, err = time.ParseDuration(cfg.ControlPlane.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing control_plane.timeout %q: %w", cfg.ControlPlane.TimeoutRaw, err)
		}
	}

	if cfg.Process.RequestTimeoutRaw != "" {
		cfg.Process.RequestTimeout, err = time.ParseDuration(cfg.Process.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing process.request_timeout %q: %w", cfg.Process.RequestTimeoutRaw, err)
		}
	}

	if cfg.Process.StopGraceRaw != "" {
		cfg.Process.StopGrace, err = time.ParseDuration(cfg.Process.StopGraceRaw)
		if err != nil {
			return fmt.Errorf("parsing process.stop_grace %q: %w", cfg.Process.StopGraceRaw, err)
		}
	}

	return nil
}
