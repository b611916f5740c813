package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/thisisjab/fuxi/api"
	"github.com/thisisjab/fuxi/notify"
	"github.com/thisisjab/fuxi/querier"
	"github.com/thisisjab/fuxi/storage"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Logger  LoggerConfig  `yaml:"logger"`
	API     api.Config    `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Querier QuerierConfig `yaml:"querier"`
	Notify  NotifyConfig  `yaml:"notify"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Type   string `yaml:"type"`
	Output string `yaml:"output"`
}

type StorageConfig struct {
	Type   string `yaml:"type"`
	Config any    `yaml:"config"`
}

type QuerierConfig struct {
	DefaultTable      string   `yaml:"default_table"`
	IdentifierPattern string   `yaml:"identifier_pattern"`
	AllowedTables     []string `yaml:"allowed_tables"`
	StrictOperators   *bool    `yaml:"strict_operators"`
}

type NotifyConfig struct {
	Pusher *notify.PusherConfig `yaml:"pusher"`
	Feishu *notify.FeishuConfig `yaml:"feishu"`
}

// Load reads the YAML file at path. Variables from an optional .env file next
// to the working directory are loaded first, then ${VAR} references in the
// file are expanded from the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("cannot load .env file: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read config file content: %w", err)
	}

	return Parse(content)
}

// Parse expands environment references in content and decodes it.
func Parse(content []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(content))), &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse config file: %w", err)
	}

	return cfg, nil
}

// NewLogger builds the slog logger described by the logger section.
func (cfg Config) NewLogger() (*slog.Logger, error) {
	return parseLoggerConfig(cfg.Logger)
}

// Compiler builds the statement compiler. Identifiers are checked against
// querier.SafeIdentifier and unknown operators are rejected unless the
// config says otherwise.
func (cfg Config) Compiler() (*querier.Compiler, error) {
	opts := querier.Options{
		DefaultTable:      cfg.Querier.DefaultTable,
		IdentifierPattern: querier.SafeIdentifier,
		AllowedTables:     cfg.Querier.AllowedTables,
		StrictOperators:   true,
	}

	if cfg.Querier.IdentifierPattern != "" {
		re, err := regexp.Compile(cfg.Querier.IdentifierPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid identifier pattern: %w", err)
		}
		opts.IdentifierPattern = re
	}

	if cfg.Querier.StrictOperators != nil {
		opts.StrictOperators = *cfg.Querier.StrictOperators
	}

	return querier.NewCompiler(opts), nil
}

// NewStorage builds the configured store without connecting it.
func (cfg Config) NewStorage(logger *slog.Logger) (storage.Storage, error) {
	return parseStorageConfig(logger, cfg.Storage)
}

func parseLoggerConfig(cfg LoggerConfig) (*slog.Logger, error) {
	var logger *slog.Logger
	var handler slog.Handler

	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var w io.Writer
	switch cfg.Output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		return nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	switch cfg.Type {
	case "", "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	case "colored-text":
		handler = tint.NewHandler(w, &tint.Options{Level: level, AddSource: true})
	default:
		return nil, fmt.Errorf("invalid log type: %s", cfg.Type)
	}

	logger = slog.New(handler)

	return logger, nil
}

func parseStorageConfig(logger *slog.Logger, cfg StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "postgres":
		var postgresConfig storage.PostgresStorageConfig

		if err := remarshal(cfg.Config, &postgresConfig); err != nil {
			return nil, fmt.Errorf("cannot parse postgres storage config: %w", err)
		}

		s, err := storage.NewPostgresStorage(logger, postgresConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create postgres storage: %w", err)
		}

		return s, nil

	case "clickhouse":
		var clickHouseConfig storage.ClickHouseStorageConfig

		if err := remarshal(cfg.Config, &clickHouseConfig); err != nil {
			return nil, fmt.Errorf("cannot parse clickhouse storage config: %w", err)
		}

		s, err := storage.NewClickHouseStorage(logger, clickHouseConfig)
		if err != nil {
			return nil, fmt.Errorf("cannot create clickhouse storage: %w", err)
		}

		return s, nil

	default:
		return nil, fmt.Errorf("invalid storage type: %s", cfg.Type)
	}
}

// remarshal takes an input value, marshals it to YAML, and then unmarshals it into a new value of the same type.
// This is useful for converting generic interfaces (like map[string]any) into concrete struct types.
// The output parameter must be a pointer to the target type.
func remarshal(input any, output any) error {
	// Marshal the input to YAML
	yamlBytes, err := yaml.Marshal(input)
	if err != nil {
		return fmt.Errorf("failed to marshal to YAML: %w", err)
	}

	// Unmarshal the YAML into the output
	if err := yaml.Unmarshal(yamlBytes, output); err != nil {
		return fmt.Errorf("failed to unmarshal from YAML: %w", err)
	}

	return nil
}
