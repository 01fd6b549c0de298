// Package config provides configuration management for browsersync.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Watching: %v\n", cfg.Watch.Directories)
package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/0xmhha/browsersync/pkg/watcher"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Watch.Topic starts with "/"
// - Server.Addr is non-empty
// - Server.PingInterval must be > 0
// - Storage.KeepRuns must be >= 0.
type Config struct {
	// Watch settings
	Watch WatchConfig `yaml:"watch"`

	// HTTP server settings
	Server ServerConfig `yaml:"server"`

	// Console output settings
	Display DisplayConfig `yaml:"display"`

	// Run history settings
	Storage StorageConfig `yaml:"storage"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// WatchConfig contains directory watching settings.
type WatchConfig struct {
	// Master switch. When false the watcher stops before its first wait.
	Enabled bool `yaml:"enabled"`

	// Root directories to watch recursively
	Directories DirList `yaml:"directories"`

	// Register directories created after startup
	FollowNewDirs bool `yaml:"follow_new_dirs"`

	// Keep running when a watched directory disappears
	DetachInvalidated bool `yaml:"detach_invalidated"`

	// Publish topic, also the WebSocket route
	Topic string `yaml:"topic"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Listen address
	Addr string `yaml:"addr"`

	// WebSocket origins allowed to connect (empty allows all)
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`

	// Keepalive period for WebSocket and SSE streams
	PingInterval time.Duration `yaml:"ping_interval"`

	// Per-subscriber queue length
	BufferSize int `yaml:"buffer_size"`
}

// DisplayConfig contains console output settings.
type DisplayConfig struct {
	// Output format (auto, table, json, simple)
	Format string `yaml:"format"`

	// Prefix events with the time they were seen
	ShowTimestamps bool `yaml:"show_timestamps"`
}

// StorageConfig contains run history settings.
type StorageConfig struct {
	// Path to BoltDB database file (empty disables persistence)
	DBPath string `yaml:"db_path"`

	// Number of runs kept after each append (0 keeps all)
	KeepRuns int `yaml:"keep_runs"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// DirList is a list of directories. In YAML it may be written either as a
// sequence or as one comma-separated string.
type DirList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *DirList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*d = watcher.ParseRoots(node.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*d = watcher.ParseRoots(strings.Join(items, ","))
		return nil
	default:
		return fmt.Errorf("%w: directories must be a string or a list", ErrInvalidYAML)
	}
}

// String returns the comma-separated form.
func (d DirList) String() string {
	return strings.Join(d, ",")
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Watch.Topic, "/") {
		return ErrInvalidTopic
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		return ErrEmptyAddr
	}
	if c.Server.PingInterval <= 0 {
		return ErrInvalidPingInterval
	}
	if c.Server.BufferSize <= 0 {
		return ErrInvalidBufferSize
	}

	validFormats := map[string]bool{
		"auto":   true,
		"table":  true,
		"json":   true,
		"simple": true,
	}
	if !validFormats[c.Display.Format] {
		return ErrInvalidDisplayFormat
	}

	if c.Storage.KeepRuns < 0 {
		return ErrInvalidKeepRuns
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// WatcherConfig converts the watch section to a watcher.Config.
func (c *Config) WatcherConfig() watcher.Config {
	return watcher.Config{
		Roots:             append([]string(nil), c.Watch.Directories...),
		Enabled:           c.Watch.Enabled,
		Topic:             c.Watch.Topic,
		FollowNewDirs:     c.Watch.FollowNewDirs,
		DetachInvalidated: c.Watch.DetachInvalidated,
	}
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			Enabled: true,
			Topic:   watcher.DefaultTopic,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:3001",
			PingInterval: 30 * time.Second,
			BufferSize:   64,
		},
		Display: DisplayConfig{
			Format: "auto",
		},
		Storage: StorageConfig{
			DBPath:   defaultDBPath(),
			KeepRuns: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
