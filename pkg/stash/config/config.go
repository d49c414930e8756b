// Package config loads server settings and assembles the stash service from
// them: catalog store, blob gateway, repository and logger.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tendant/stash/pkg/stash/api"
	"github.com/tendant/stash/pkg/stash/blob"
)

// Database types derived from DatabaseURL
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

// Blob backends
const (
	BlobMemory = "memory"
	BlobS3     = "s3"
	BlobRedis  = "redis"
	BlobHTTP   = "http"
	BlobFS     = "fs"
)

// ServerConfig represents server-level configuration. Defaults live in
// defaults() rather than env-default tags so a file can switch booleans off.
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORT"`
	Environment string `yaml:"environment" env:"ENVIRONMENT"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL"`

	// DatabaseURL is "memory", a postgres:// URL or sqlite://<path>
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	DBSchema    string `yaml:"db_schema" env:"DB_SCHEMA"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE"`

	BlobBackend string        `yaml:"blob_backend" env:"BLOB_BACKEND"`
	BlobTimeout time.Duration `yaml:"blob_timeout" env:"BLOB_TIMEOUT"`

	S3    S3Config    `yaml:"s3"`
	Redis RedisConfig `yaml:"redis"`

	BlobFSDir     string `yaml:"blob_fs_dir" env:"BLOB_FS_DIR"`
	BlobHTTPURL   string `yaml:"blob_http_url" env:"BLOB_HTTP_URL"`
	BlobHTTPToken string `yaml:"blob_http_token" env:"BLOB_HTTP_TOKEN"`

	JWTSecret          string   `yaml:"jwt_secret" env:"JWT_SECRET"`
	AuthDevHeader      bool     `yaml:"auth_dev_header" env:"AUTH_DEV_HEADER"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:","`
	MaxUploadBytes     int64    `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	EnableMetrics      bool     `yaml:"enable_metrics" env:"ENABLE_METRICS"`
}

// S3Config configures the S3 blob backend
type S3Config struct {
	Region                 string `yaml:"region" env:"S3_REGION"`
	Bucket                 string `yaml:"bucket" env:"S3_BUCKET"`
	AccessKeyID            string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey        string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY"`
	Endpoint               string `yaml:"endpoint" env:"S3_ENDPOINT"`
	UsePathStyle           bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE"`
	EnableSSE              bool   `yaml:"enable_sse" env:"S3_ENABLE_SSE"`
	SSEAlgorithm           string `yaml:"sse_algorithm" env:"S3_SSE_ALGORITHM"`
	SSEKMSKeyID            string `yaml:"sse_kms_key_id" env:"S3_SSE_KMS_KEY_ID"`
	CreateBucketIfNotExist bool   `yaml:"create_bucket_if_not_exist" env:"S3_CREATE_BUCKET_IF_NOT_EXIST"`
}

// RedisConfig configures the Redis blob backend
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Prefix   string `yaml:"prefix" env:"REDIS_PREFIX"`
}

// Option configures ServerConfig
type Option func(*ServerConfig) error

// Load builds a ServerConfig from defaults and the given options, then validates it.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *ServerConfig {
	return &ServerConfig{
		Port:           "8080",
		Environment:    "development",
		LogLevel:       "info",
		DatabaseURL:    DatabaseMemory,
		BlobBackend:    BlobMemory,
		BlobTimeout:    blob.DefaultTimeout,
		BlobFSDir:      "./data/blobs",
		AuthDevHeader:  true,
		MaxUploadBytes: api.DefaultMaxUploadBytes,
		EnableMetrics:  true,
		S3: S3Config{
			Region: "us-east-1",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "stash:blob:",
		},
	}
}

// DatabaseType reports which catalog store DatabaseURL selects, or "" when
// the URL is not recognized.
func (c *ServerConfig) DatabaseType() string {
	url := strings.TrimSpace(c.DatabaseURL)
	switch {
	case url == "" || strings.EqualFold(url, DatabaseMemory):
		return DatabaseMemory
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DatabasePostgres
	case strings.HasPrefix(url, "sqlite://"):
		return DatabaseSQLite
	}
	return ""
}

// SQLitePath is the file path of a sqlite:// DatabaseURL
func (c *ServerConfig) SQLitePath() string {
	return strings.TrimPrefix(strings.TrimSpace(c.DatabaseURL), "sqlite://")
}

// IsProduction reports whether the server runs in production mode
func (c *ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate validates the configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.DatabaseType() {
	case DatabaseMemory, DatabasePostgres:
	case DatabaseSQLite:
		if c.SQLitePath() == "" {
			return errors.New("sqlite database URL requires a path")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_URL %q: expected memory, postgres:// or sqlite://", c.DatabaseURL)
	}

	switch c.BlobBackend {
	case BlobMemory:
	case BlobS3:
		if c.S3.Bucket == "" {
			return errors.New("S3_BUCKET is required for the s3 blob backend")
		}
	case BlobRedis:
		if c.Redis.Addr == "" {
			return errors.New("REDIS_ADDR is required for the redis blob backend")
		}
	case BlobHTTP:
		if c.BlobHTTPURL == "" {
			return errors.New("BLOB_HTTP_URL is required for the http blob backend")
		}
	case BlobFS:
		if c.BlobFSDir == "" {
			return errors.New("BLOB_FS_DIR is required for the fs blob backend")
		}
	default:
		return fmt.Errorf("unsupported blob backend %q", c.BlobBackend)
	}

	if c.BlobTimeout <= 0 {
		return fmt.Errorf("blob timeout must be positive, got: %s", c.BlobTimeout)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got: %d", c.MaxUploadBytes)
	}

	if c.IsProduction() && c.AuthDevHeader {
		return errors.New("AUTH_DEV_HEADER must be disabled in production")
	}
	if c.JWTSecret == "" && !c.AuthDevHeader {
		return errors.New("either JWT_SECRET or AUTH_DEV_HEADER is required")
	}

	return nil
}
