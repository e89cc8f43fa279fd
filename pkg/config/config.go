// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Search, Corpus, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Search   SearchConfig   `yaml:"search"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP and RPC server settings. RPCPort 0 disables the
// RPC listener and RateLimit 0 disables per-client limiting. RateLimit counts
// API requests per client per minute.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	RPCPort         int           `yaml:"rpcPort"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RateLimit       int           `yaml:"rateLimit"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	DocumentEvents string `yaml:"documentEvents"`
	QueryEvents    string `yaml:"queryEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SearchConfig controls query defaults and limits.
type SearchConfig struct {
	DefaultLimit int           `yaml:"defaultLimit"`
	MaxResults   int           `yaml:"maxResults"`
	DefaultField string        `yaml:"defaultField"`
	Sources      []string      `yaml:"sources"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
}

// CorpusConfig says where documents are loaded from at startup. File is a
// YAML document list; Table is read when Postgres is enabled.
type CorpusConfig struct {
	File  string `yaml:"file"`
	Table string `yaml:"table"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls request tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	SampleRate float64 `yaml:"sampleRate"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
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
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("search.defaultLimit must be positive, got %d", c.Search.DefaultLimit)
	}
	if c.Search.MaxResults < c.Search.DefaultLimit {
		return fmt.Errorf("search.maxResults (%d) must not be below search.defaultLimit (%d)",
			c.Search.MaxResults, c.Search.DefaultLimit)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rateLimit must not be negative, got %d", c.Server.RateLimit)
	}
	if c.Postgres.Enabled && c.Corpus.Table == "" {
		return fmt.Errorf("corpus.table is required when postgres is enabled")
	}
	return nil
}

// defaultConfig returns a Config with defaults for local development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			RPCPort:         9100,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "ftsquery",
			User:            "ftsquery",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "ftsquery-group",
			Topics: KafkaTopics{
				DocumentEvents: "document-events",
				QueryEvents:    "query-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxResults:   100,
			DefaultField: "text",
			QueryTimeout: 5 * time.Second,
		},
		Corpus: CorpusConfig{
			Table: "documents",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			SampleRate: 0.1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("SP_SERVER_PORT", &cfg.Server.Port)
	setInt("SP_SERVER_RPC_PORT", &cfg.Server.RPCPort)
	setInt("SP_SERVER_RATE_LIMIT", &cfg.Server.RateLimit)
	if v := os.Getenv("SP_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	setBool("SP_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setString("SP_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("SP_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("SP_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("SP_POSTGRES_USER", &cfg.Postgres.User)
	setString("SP_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("SP_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setBool("SP_KAFKA_ENABLED", &cfg.Kafka.Enabled)
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setBool("SP_REDIS_ENABLED", &cfg.Redis.Enabled)
	setString("SP_REDIS_ADDR", &cfg.Redis.Addr)
	setString("SP_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("SP_SEARCH_DEFAULT_LIMIT", &cfg.Search.DefaultLimit)
	setInt("SP_SEARCH_MAX_RESULTS", &cfg.Search.MaxResults)
	setString("SP_SEARCH_DEFAULT_FIELD", &cfg.Search.DefaultField)
	if v := os.Getenv("SP_SEARCH_SOURCES"); v != "" {
		cfg.Search.Sources = strings.Split(v, ",")
	}
	setString("SP_CORPUS_FILE", &cfg.Corpus.File)
	setString("SP_CORPUS_TABLE", &cfg.Corpus.Table)
	setString("SP_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("SP_LOGGING_FORMAT", &cfg.Logging.Format)
	setBool("SP_TRACING_ENABLED", &cfg.Tracing.Enabled)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
