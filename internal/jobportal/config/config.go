// Package config loads the service configuration from a YAML file and
// lets JOBPORTAL_* environment variables override any of its keys.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every override, e.g. JOBPORTAL_DB_HOST.
const EnvPrefix = "JOBPORTAL"

// DefaultPath is read when no path is given.
const DefaultPath = "internal/jobportal/config/config.yaml"

type Config struct {
	GRPCPort int `yaml:"GRPC_PORT" envconfig:"GRPC_PORT"`
	HTTPPort int `yaml:"HTTP_PORT" envconfig:"HTTP_PORT"`

	DBDriver     string `yaml:"DB_DRIVER" envconfig:"DB_DRIVER"`
	DBHost       string `yaml:"DB_HOST" envconfig:"DB_HOST"`
	DBPort       int    `yaml:"DB_PORT" envconfig:"DB_PORT"`
	DBUser       string `yaml:"DB_USER" envconfig:"DB_USER"`
	DBPassword   string `yaml:"DB_PASSWORD" envconfig:"DB_PASSWORD"`
	DBName       string `yaml:"DB_NAME" envconfig:"DB_NAME"`
	DBSSLMode    string `yaml:"DB_SSLMODE" envconfig:"DB_SSLMODE"`
	SQLitePath   string `yaml:"SQLITE_PATH" envconfig:"SQLITE_PATH"`
	DBLogQueries bool   `yaml:"DB_LOG_QUERIES" envconfig:"DB_LOG_QUERIES"`
	// DBConnectTimeout bounds the startup retries, in seconds.
	DBConnectTimeout int `yaml:"DB_CONNECT_TIMEOUT" envconfig:"DB_CONNECT_TIMEOUT"`

	KafkaBrokers  []string `yaml:"KAFKA_BROKERS" envconfig:"KAFKA_BROKERS"`
	Topic         string   `yaml:"TOPIC" envconfig:"TOPIC"`
	IngestTopic   string   `yaml:"INGEST_TOPIC" envconfig:"INGEST_TOPIC"`
	ConsumerGroup string   `yaml:"CONSUMER_GROUP" envconfig:"CONSUMER_GROUP"`

	CORSOrigins []string `yaml:"CORS_ORIGINS" envconfig:"CORS_ORIGINS"`

	APIKeyAdmin      string `yaml:"API_KEY_ADMIN" envconfig:"API_KEY_ADMIN"`
	APIKeyWebscraper string `yaml:"API_KEY_WEBSCRAPER" envconfig:"API_KEY_WEBSCRAPER"`
	APIKeyFullread   string `yaml:"API_KEY_FULLREAD" envconfig:"API_KEY_FULLREAD"`
	APIKeyFrontend   string `yaml:"API_KEY_FRONTEND" envconfig:"API_KEY_FRONTEND"`

	LogLevel string `yaml:"LOG_LEVEL" envconfig:"LOG_LEVEL"`
}

// Load reads path (a missing file is not an error), applies environment
// overrides and fills defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset value.
func (c *Config) ApplyDefaults() {
	if c.GRPCPort == 0 {
		c.GRPCPort = 9090
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = 8000
	}
	if c.DBDriver == "" {
		c.DBDriver = "postgres"
	}
	if c.DBHost == "" {
		c.DBHost = "localhost"
	}
	if c.DBPort == 0 {
		c.DBPort = 5432
	}
	if c.DBName == "" {
		c.DBName = "jobportal"
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	if c.DBConnectTimeout == 0 {
		c.DBConnectTimeout = 60
	}
	if c.Topic == "" {
		c.Topic = "jobportal.events"
	}
	if c.IngestTopic == "" {
		c.IngestTopic = "jobportal.observations"
	}
	if c.ConsumerGroup == "" {
		c.ConsumerGroup = "jobportal-ingest"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 || c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("ports must be between 1 and 65535")
	}
	return nil
}

// KafkaEnabled reports whether event publishing and ingestion can run.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func (c *Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
