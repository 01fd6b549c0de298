package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrInvalidTopic is returned when the topic does not start with "/".
	ErrInvalidTopic = errors.New("invalid topic: must start with /")

	// ErrEmptyAddr is returned when no listen address is set.
	ErrEmptyAddr = errors.New("invalid server address: must not be empty")

	// ErrInvalidPingInterval is returned when ping interval is <= 0.
	ErrInvalidPingInterval = errors.New("invalid ping interval: must be > 0")

	// ErrInvalidBufferSize is returned when buffer size is <= 0.
	ErrInvalidBufferSize = errors.New("invalid buffer size: must be > 0")

	// ErrInvalidDisplayFormat is returned when display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be auto, table, json, or simple")

	// ErrInvalidKeepRuns is returned when keep_runs is negative.
	ErrInvalidKeepRuns = errors.New("invalid keep_runs: must be >= 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")

	// ErrInvalidEnv is returned when an environment override cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")
)
