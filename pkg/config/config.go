// Package config loads and validates configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Engine, Search, Suggest, Snapshot, Postgres, Redis, Kafka, ...).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cserrors "github.com/clinilearn/casesearch/pkg/errors"
)

// Config is the top-level configuration for the search engine tooling.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Search   SearchConfig   `yaml:"search"`
	Suggest  SuggestConfig  `yaml:"suggest"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// EngineConfig controls tokenization and which document fields feed the
// inverted and autocomplete indexes.
type EngineConfig struct {
	IndexFields     []string `yaml:"indexFields"`
	SuggestFields   []string `yaml:"suggestFields"`
	MinTermLength   int      `yaml:"minTermLength"`
	ExtraStopWords  []string `yaml:"extraStopWords"`
	DisableStemming bool     `yaml:"disableStemming"`
}

// SearchConfig controls query execution limits.
type SearchConfig struct {
	DefaultLimit    int `yaml:"defaultLimit"`
	MaxResults      int `yaml:"maxResults"`
	FilterOverscan  int `yaml:"filterOverscan"`
	MaxPostingsScan int `yaml:"maxPostingsScan"`
}

// SuggestConfig controls autocomplete and term-completion limits.
type SuggestConfig struct {
	MaxSuggestions int `yaml:"maxSuggestions"`
	MaxCompletions int `yaml:"maxCompletions"`
}

// SnapshotConfig controls where index snapshots are written and how often
// the feeder flushes them.
type SnapshotConfig struct {
	Path          string        `yaml:"path"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// PostgresConfig holds PostgreSQL connection parameters for the document
// store the index is built from.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings for the document
// change feed.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentChanges string `yaml:"documentChanges"`
	IndexRebuilt    string `yaml:"indexRebuilt"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus scrape endpoint exposed by the
// feeder daemon.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment
// variable overrides. Missing values fall back to defaults suitable for
// local development.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Engine.IndexFields) == 0 {
		return fmt.Errorf("%w: engine.indexFields must not be empty", cserrors.ErrInvalidInput)
	}
	if c.Engine.MinTermLength < 0 {
		return fmt.Errorf("%w: engine.minTermLength must not be negative", cserrors.ErrInvalidInput)
	}
	if c.Search.MaxResults < 0 || c.Search.DefaultLimit < 0 {
		return fmt.Errorf("%w: search limits must not be negative", cserrors.ErrInvalidInput)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			IndexFields:   []string{"title", "description", "content"},
			SuggestFields: []string{"title", "tags", "specialty"},
			MinTermLength: 3,
		},
		Search: SearchConfig{
			DefaultLimit:   10,
			MaxResults:     100,
			FilterOverscan: 3,
		},
		Suggest: SuggestConfig{
			MaxSuggestions: 10,
			MaxCompletions: 5,
		},
		Snapshot: SnapshotConfig{
			Path:          "data/casesearch.snap",
			FlushInterval: 30 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "casesearch",
			User:            "casesearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "casesearch-feeder",
			Topics: KafkaTopics{
				DocumentChanges: "document-changes",
				IndexRebuilt:    "index.rebuilt",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads CS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CS_SNAPSHOT_PATH"); v != "" {
		cfg.Snapshot.Path = v
	}
	if v := os.Getenv("CS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("CS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("CS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("CS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CS_KAFKA_GROUP"); v != "" {
		cfg.Kafka.ConsumerGroup = v
	}
	if v := os.Getenv("CS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
