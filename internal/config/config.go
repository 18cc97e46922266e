package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverBolt   = "bolt"
	DriverPebble = "pebble"
)

// Config holds the indexstore service configuration.
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Index   IndexConfig   `yaml:"index"`
	Mirror  MirrorConfig  `yaml:"mirror"`
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StorageConfig selects and tunes the embedded engine.
type StorageConfig struct {
	Driver string `yaml:"driver"` // bolt, pebble (default: bolt)
	Path   string `yaml:"path"`
	// InMemory runs pebble on an in-memory filesystem; Path is ignored.
	InMemory bool `yaml:"in_memory"`
	Sync     bool `yaml:"sync"`
	// LockTimeoutSec bounds waiting for the bolt file lock.
	LockTimeoutSec int `yaml:"lock_timeout_sec"`
}

// IndexConfig holds per-index bookkeeping limits.
type IndexConfig struct {
	MaxErrorsPerIndex  int     `yaml:"max_errors_per_index"`
	FailureMinAttempts int64   `yaml:"failure_min_attempts"`
	FailureMaxRate     float64 `yaml:"failure_max_rate"`
}

// MirrorConfig holds the optional Redis/Valkey stats mirror settings.
type MirrorConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML, expanding ${VAR} and ${VAR:-default} first, then
// applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverBolt
	}
	if c.Storage.LockTimeoutSec <= 0 {
		c.Storage.LockTimeoutSec = 1
	}
	if c.Index.MaxErrorsPerIndex <= 0 {
		c.Index.MaxErrorsPerIndex = 50
	}
	if c.Index.FailureMinAttempts <= 0 {
		c.Index.FailureMinAttempts = 100
	}
	if c.Index.FailureMaxRate <= 0 {
		c.Index.FailureMaxRate = 0.15
	}
	if c.Mirror.KeyPrefix == "" {
		c.Mirror.KeyPrefix = "indexstore:"
	}
	if c.Mirror.ReadinessTimeout <= 0 {
		c.Mirror.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Storage.Driver {
	case DriverBolt:
		if c.Storage.InMemory {
			return fmt.Errorf("storage.in_memory is only supported by the %q driver", DriverPebble)
		}
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required")
		}
	case DriverPebble:
		if c.Storage.Path == "" && !c.Storage.InMemory {
			return fmt.Errorf("storage.path is required")
		}
	default:
		return fmt.Errorf("storage.driver must be %q or %q, got %q", DriverBolt, DriverPebble, c.Storage.Driver)
	}
	if c.Index.FailureMaxRate > 1 {
		return fmt.Errorf("index.failure_max_rate must be in (0, 1], got %g", c.Index.FailureMaxRate)
	}
	if c.Mirror.Enabled && len(c.Mirror.Addrs) == 0 {
		return fmt.Errorf("mirror.addrs is required when the mirror is enabled")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
