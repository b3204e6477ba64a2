package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
// Covers the object store, metadata store, search index, queue broker,
// the external ASR service and the worker runtime.
// Supports environment variables with sensible defaults.
//
// Environment Variables:
// S3 Configuration:
// - S3_ENDPOINT: S3-compatible server endpoint (required)
// - S3_ACCESS_KEY: access key (required)
// - S3_SECRET_KEY: secret key (required)
// - S3_BUCKET: bucket name (default: debates)
// - S3_USE_SSL: use TLS when talking to the endpoint (default: false)
// - S3_PUBLIC_BASE_URL: hostname substituted into presigned URLs handed to browsers
//
// Mongo Configuration:
// - MONGO_URL: connection string (default: mongodb://localhost:27017)
// - MONGO_DB: database name (default: debates)
//
// Solr Configuration:
// - SOLR_URL: core URL, e.g. http://localhost:8983/solr/debates (required)
// - SOLR_TIMEOUT: request timeout in seconds (default: 10)
//
// Redis / Queue Configuration:
// - REDIS_ADDR: redis host:port (default: localhost:6379)
// - QUEUE_NAME: broker queue name (default: default)
// - QUEUE_MAX_RETRY: broker-owned retry count per task (default: 3)
//
// ASR Configuration:
// - ASR_URL: base URL of the transcription service (required by the worker)
// - ASR_MODEL: model identifier passed through to the service
// - ASR_TOKEN: bearer token, optional
// - ASR_TIMEOUT: request timeout in seconds (default: 3600; transcription
//   can run for minutes, so keep this generous)
//
// Worker Configuration:
// - WORK_DIR: base directory for scoped task workspaces (default: /tmp/processing)
// - WORKSPACE_SWEEP_CRON: cron expression for the stale workspace sweep (default: 0 * * * *)
// - LOG_LEVEL: debug|info|warn|error (default: info)
//
// Server Configuration:
// - HTTP_ADDR: listen address for the API (default: :8000)

type Config struct {
	S3     S3Config     `json:"s3"`
	Mongo  MongoConfig  `json:"mongo"`
	Solr   SolrConfig   `json:"solr"`
	Queue  QueueConfig  `json:"queue"`
	ASR    ASRConfig    `json:"asr"`
	Worker WorkerConfig `json:"worker"`
	Server ServerConfig `json:"server"`
}

// S3Config holds the configuration for the object store client
type S3Config struct {
	Endpoint      string `json:"endpoint"`
	AccessKey     string `json:"access_key"`
	SecretKey     string `json:"secret_key"`
	Bucket        string `json:"bucket"`
	UseSSL        bool   `json:"use_ssl"`
	PublicBaseURL string `json:"public_base_url"`
}

// MongoConfig holds the configuration for the metadata store
type MongoConfig struct {
	URL      string `json:"url"`
	Database string `json:"database"`
}

// SolrConfig holds the configuration for the search index
type SolrConfig struct {
	URL     string `json:"url"`
	Timeout int    `json:"timeout"`
}

// QueueConfig holds the configuration for the queue broker
type QueueConfig struct {
	RedisAddr string `json:"redis_addr"`
	Queue     string `json:"queue"`
	MaxRetry  int    `json:"max_retry"`
}

// ASRConfig holds the configuration for the external transcription service
type ASRConfig struct {
	URL     string `json:"url"`
	Model   string `json:"model"`
	Token   string `json:"token"`
	Timeout int    `json:"timeout"`
}

// WorkerConfig holds the worker runtime configuration
type WorkerConfig struct {
	WorkDir       string `json:"work_dir"`
	SweepCronExpr string `json:"sweep_cron_expr"`
	LogLevel      string `json:"log_level"`
}

// ServerConfig holds the API server configuration
type ServerConfig struct {
	HTTPAddr string `json:"http_addr"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// New loads .env if present and builds the configuration from the
// environment.
func New(opts ...Option) (*Config, error) {
	_ = godotenv.Load()
	return NewFromEnv(opts...)
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		S3: S3Config{
			Endpoint:      getEnvString("S3_ENDPOINT", ""),
			AccessKey:     getEnvString("S3_ACCESS_KEY", ""),
			SecretKey:     getEnvString("S3_SECRET_KEY", ""),
			Bucket:        getEnvString("S3_BUCKET", "debates"),
			UseSSL:        getEnvBool("S3_USE_SSL", false),
			PublicBaseURL: getEnvString("S3_PUBLIC_BASE_URL", ""),
		},
		Mongo: MongoConfig{
			URL:      getEnvString("MONGO_URL", "mongodb://localhost:27017"),
			Database: getEnvString("MONGO_DB", "debates"),
		},
		Solr: SolrConfig{
			URL:     getEnvString("SOLR_URL", ""),
			Timeout: getEnvInt("SOLR_TIMEOUT", 10),
		},
		Queue: QueueConfig{
			RedisAddr: getEnvString("REDIS_ADDR", "localhost:6379"),
			Queue:     getEnvString("QUEUE_NAME", "default"),
			MaxRetry:  getEnvInt("QUEUE_MAX_RETRY", 3),
		},
		ASR: ASRConfig{
			URL:     getEnvString("ASR_URL", ""),
			Model:   getEnvString("ASR_MODEL", ""),
			Token:   getEnvString("ASR_TOKEN", ""),
			Timeout: getEnvInt("ASR_TIMEOUT", 3600),
		},
		Worker: WorkerConfig{
			WorkDir:       getEnvString("WORK_DIR", "/tmp/processing"),
			SweepCronExpr: getEnvString("WORKSPACE_SWEEP_CRON", "0 * * * *"),
			LogLevel:      getEnvString("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			HTTPAddr: getEnvString("HTTP_ADDR", ":8000"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.S3.Endpoint == "" {
		return fmt.Errorf("S3_ENDPOINT is required")
	}
	if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
		return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required")
	}
	if c.Solr.URL == "" {
		return fmt.Errorf("SOLR_URL is required")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
