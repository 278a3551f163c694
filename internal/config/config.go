// Package config loads optional analyzer settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cnath12/vpc-flow-log-analyzer/internal/parser"
)

const (
	ProviderCSV     = "csv"
	ProviderMariaDB = "mariadb"
)

// Config mirrors the analyzer's command-line flags. Flags set explicitly on
// the command line take precedence over values loaded here.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Lookup      LookupConfig      `yaml:"lookup"`
	Aggregation AggregationConfig `yaml:"aggregation"`
}

type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (default: INFO)
	Level string `yaml:"level"`
	// File is the log destination (default: stderr)
	File string `yaml:"file"`
}

type LookupConfig struct {
	// Provider is "csv" or "mariadb" (default: csv)
	Provider string `yaml:"provider"`
	// DSN is the MariaDB connection string, required for the mariadb provider
	DSN string `yaml:"dsn"`
	// Table holds the dstport, protocol and tag columns (default: lookup_table)
	Table string `yaml:"table"`
}

type AggregationConfig struct {
	// Workers is the number of flow log scan workers (default: 1)
	Workers int `yaml:"workers"`
	// SkipMalformed drops version 2 records with non-numeric fields
	SkipMalformed bool `yaml:"skip_malformed"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)

func Defaults() Config {
	return Config{
		Logging: LoggingConfig{Level: "INFO"},
		Lookup: LookupConfig{
			Provider: ProviderCSV,
			Table:    parser.DefaultLookupTableName,
		},
		Aggregation: AggregationConfig{Workers: 1},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration, substituting ${VAR} and $VAR references
// from the environment before decoding.
func Parse(data []byte) (*Config, error) {
	data = substituteEnvVars(data)

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		s := string(match)
		var name string
		if strings.HasPrefix(s, "${") {
			name = s[2 : len(s)-1]
		} else {
			name = s[1:]
		}
		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		return match
	})
}

func applyDefaults(cfg *Config) {
	defaults := Defaults()
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Lookup.Provider == "" {
		cfg.Lookup.Provider = defaults.Lookup.Provider
	}
	if cfg.Lookup.Table == "" {
		cfg.Lookup.Table = defaults.Lookup.Table
	}
	if cfg.Aggregation.Workers == 0 {
		cfg.Aggregation.Workers = defaults.Aggregation.Workers
	}
}

func (c *Config) Validate() error {
	c.Lookup.Provider = strings.ToLower(c.Lookup.Provider)
	switch c.Lookup.Provider {
	case ProviderCSV:
	case ProviderMariaDB:
		if c.Lookup.DSN == "" {
			return fmt.Errorf("lookup.dsn must be provided for mariadb provider")
		}
	default:
		return fmt.Errorf("unknown lookup provider: %s", c.Lookup.Provider)
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("unknown log level: %s", c.Logging.Level)
	}

	if c.Aggregation.Workers < 1 {
		return fmt.Errorf("aggregation.workers must be at least 1, got %d", c.Aggregation.Workers)
	}
	return nil
}
