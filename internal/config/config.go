package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration: database location, chunker
// thresholds, oracle invocation settings, and log level. Adapter-scoped
// settings (sources.<type>.*) are out of scope for this struct; each
// adapter takes its own Options struct from its caller.
type Config struct {
	DB      DBConfig      `yaml:"db"`
	Chunker ChunkerConfig `yaml:"chunker"`
	Oracle  OracleConfig  `yaml:"oracle"`
	Log     LogConfig     `yaml:"log"`
}

// DBConfig locates the SQLite database file.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ChunkerConfig mirrors internal/chunker.Config.
type ChunkerConfig struct {
	Min            int `yaml:"min"`
	Max            int `yaml:"max"`
	Target         int `yaml:"target"`
	TimeGapSeconds int `yaml:"time_gap_seconds"`
}

// OracleConfig controls the subprocess summarizer invocation.
type OracleConfig struct {
	Command     []string `yaml:"command"`
	TimeoutSecs int      `yaml:"timeout_seconds"`
	InputWindow int      `yaml:"input_window"` // default 140000; no package in this module reads it, and summarizer input is not truncated
}

// LogConfig sets the slog level.
type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	defaultDBFile        = "larder.db"
	defaultOracleTimeout = 120
	defaultInputWindow   = 140_000
)

// Load reads configuration from an optional YAML file (LARDER_CONFIG_PATH)
// and applies environment variable overrides on top of defaults.
func Load() (Config, error) {
	defaultDBPath := defaultDBFile
	if exePath, err := os.Executable(); err == nil {
		defaultDBPath = filepath.Join(filepath.Dir(exePath), defaultDBFile)
	}

	cfg := Config{
		DB: DBConfig{Path: defaultDBPath},
		Chunker: ChunkerConfig{
			Min:            15_000,
			Max:            80_000,
			Target:         40_000,
			TimeGapSeconds: 300,
		},
		Oracle: OracleConfig{
			TimeoutSecs: defaultOracleTimeout,
			InputWindow: defaultInputWindow,
		},
		Log: LogConfig{Level: "info"},
	}

	if path := os.Getenv("LARDER_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if dbPath := os.Getenv("LARDER_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("LARDER_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if v := os.Getenv("LARDER_CHUNKER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LARDER_CHUNKER_MIN: %w", err)
		}
		cfg.Chunker.Min = n
	}
	if v := os.Getenv("LARDER_CHUNKER_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LARDER_CHUNKER_MAX: %w", err)
		}
		cfg.Chunker.Max = n
	}
	if v := os.Getenv("LARDER_ORACLE_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LARDER_ORACLE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Oracle.TimeoutSecs = n
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
