package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/browsersync/pkg/watcher"
)

// Environment variables read by Load.
const (
	EnvConfig      = "BROWSERSYNC_CONFIG"
	EnvDirectories = "BROWSERSYNC_DIRECTORIES"
	EnvEnabled     = "BROWSERSYNC_ENABLED"
	EnvAddr        = "BROWSERSYNC_ADDR"
	EnvTopic       = "BROWSERSYNC_TOPIC"
	EnvDB          = "BROWSERSYNC_DB"
	EnvLogLevel    = "BROWSERSYNC_LOG_LEVEL"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile loads a file over the defaults, without env overrides
	// or validation.
	LoadFromFile(path string) (*Config, error)

	// Path returns the file Load reads, or "" when none exists.
	Path() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, BROWSERSYNC_CONFIG is used, then the first
// existing file of:
// 1. ./browsersync.yaml (current directory)
// 2. ~/.config/browsersync/config.yaml.
func NewLoader(configPath string) Loader {
	if configPath == "" {
		configPath = os.Getenv(EnvConfig)
	}
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	if configPath := l.Path(); configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// An explicit path must load; a discovered one is best-effort.
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = fileCfg
		}
	}

	cfg, err := l.applyEnvVars(cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
//
// The file is decoded over Default(), so absent keys keep their defaults.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return cfg, nil
}

// Path implements Loader.Path.
func (l *loader) Path() string {
	if l.configPath != "" {
		return l.configPath
	}
	return findConfigFile()
}

// findConfigFile searches for a config file in standard locations.
//
// Returns empty string if no config file is found.
func findConfigFile() string {
	candidates := []string{
		"./browsersync.yaml",
		DefaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - BROWSERSYNC_DIRECTORIES: Comma-separated list of roots
//   - BROWSERSYNC_ENABLED: true/false
//   - BROWSERSYNC_ADDR: Listen address
//   - BROWSERSYNC_TOPIC: Publish topic
//   - BROWSERSYNC_DB: Path to run history database ("off" disables it)
//   - BROWSERSYNC_LOG_LEVEL: Log level
func (l *loader) applyEnvVars(cfg *Config) (*Config, error) {
	result := *cfg

	if envDirs, ok := os.LookupEnv(EnvDirectories); ok {
		result.Watch.Directories = watcher.ParseRoots(envDirs)
	}

	if enabled := os.Getenv(EnvEnabled); enabled != "" {
		v, err := strconv.ParseBool(strings.TrimSpace(enabled))
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidEnv, EnvEnabled, enabled)
		}
		result.Watch.Enabled = v
	}

	if addr := os.Getenv(EnvAddr); addr != "" {
		result.Server.Addr = addr
	}

	if topic := os.Getenv(EnvTopic); topic != "" {
		result.Watch.Topic = topic
	}

	if dbPath := os.Getenv(EnvDB); dbPath != "" {
		if strings.EqualFold(dbPath, "off") {
			dbPath = ""
		}
		result.Storage.DBPath = dbPath
	}

	if logLevel := os.Getenv(EnvLogLevel); logLevel != "" {
		result.Logging.Level = strings.ToLower(logLevel)
	}

	return &result, nil
}

// Load is a convenience function that creates a loader and loads configuration.
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
