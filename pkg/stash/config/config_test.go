package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/stash/pkg/stash"
	"github.com/tendant/stash/pkg/stash/api"
	"github.com/tendant/stash/pkg/stash/blob"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, DatabaseMemory, cfg.DatabaseType())
	assert.Equal(t, BlobMemory, cfg.BlobBackend)
	assert.Equal(t, blob.DefaultTimeout, cfg.BlobTimeout)
	assert.Equal(t, int64(api.DefaultMaxUploadBytes), cfg.MaxUploadBytes)
	assert.True(t, cfg.AuthDevHeader)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.Equal(t, "stash:blob:", cfg.Redis.Prefix)
}

func TestDatabaseType(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"", DatabaseMemory},
		{"memory", DatabaseMemory},
		{"MEMORY", DatabaseMemory},
		{"postgres://localhost/stash", DatabasePostgres},
		{"postgresql://user:pw@db:5432/stash?sslmode=disable", DatabasePostgres},
		{"sqlite://./stash.db", DatabaseSQLite},
		{"mysql://localhost/stash", ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			cfg := &ServerConfig{DatabaseURL: tt.url}
			assert.Equal(t, tt.want, cfg.DatabaseType())
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr string
	}{
		{"unsupported database", []Option{WithDatabaseURL("mysql://x")}, "unsupported DATABASE_URL"},
		{"sqlite without path", []Option{WithDatabaseURL("sqlite://")}, "requires a path"},
		{"unknown blob backend", []Option{WithBlobBackend("ftp")}, "unsupported blob backend"},
		{"s3 without bucket", []Option{WithBlobBackend(BlobS3)}, "S3_BUCKET"},
		{"http without url", []Option{WithBlobBackend(BlobHTTP)}, "BLOB_HTTP_URL"},
		{"zero timeout", []Option{WithBlobTimeout(0)}, "blob timeout"},
		{"dev header in production", []Option{WithEnvironment("production")}, "AUTH_DEV_HEADER"},
		{"no authentication", []Option{WithDevOwnerHeader(false)}, "JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProductionWithJWT(t *testing.T) {
	cfg, err := Load(
		WithEnvironment("production"),
		WithDevOwnerHeader(false),
		WithJWTSecret("s3cret"),
	)
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}

func TestOptionErrors(t *testing.T) {
	_, err := Load(WithPort(""))
	assert.Error(t, err)

	_, err = Load(WithEnvironment(""))
	assert.Error(t, err)
}

func TestWithEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENVIRONMENT", "testing")
	t.Setenv("DATABASE_URL", "postgres://localhost/stash")
	t.Setenv("DB_SCHEMA", "stash")
	t.Setenv("BLOB_BACKEND", "s3")
	t.Setenv("BLOB_TIMEOUT", "3s")
	t.Setenv("S3_BUCKET", "items")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_USE_PATH_STYLE", "true")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("AUTH_DEV_HEADER", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://stash.example.com")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")

	cfg, err := Load(WithEnv())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "testing", cfg.Environment)
	assert.Equal(t, DatabasePostgres, cfg.DatabaseType())
	assert.Equal(t, "stash", cfg.DBSchema)
	assert.Equal(t, BlobS3, cfg.BlobBackend)
	assert.Equal(t, 3*time.Second, cfg.BlobTimeout)
	assert.Equal(t, "items", cfg.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.S3.Region)
	assert.True(t, cfg.S3.UsePathStyle)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.False(t, cfg.AuthDevHeader)
	assert.Equal(t, []string{"http://localhost:3000", "https://stash.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
}

func TestWithEnvRedis(t *testing.T) {
	t.Setenv("BLOB_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load(WithEnv())
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "stash:blob:", cfg.Redis.Prefix)
}

func TestWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stash.yaml")
	content := []byte(`port: "7070"
database_url: sqlite://` + filepath.Join(t.TempDir(), "stash.db") + `
blob_backend: http
blob_http_url: http://blobs.internal:8081
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(WithFile(path))
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, DatabaseSQLite, cfg.DatabaseType())
	assert.Equal(t, BlobHTTP, cfg.BlobBackend)
	assert.Equal(t, "http://blobs.internal:8081", cfg.BlobHTTPURL)
}

func TestWithFileDisablesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stash.yaml")
	content := []byte(`environment: production
jwt_secret: s3cret
auth_dev_header: false
enable_metrics: false
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(WithFile(path), WithEnv())
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.AuthDevHeader)
	assert.False(t, cfg.EnableMetrics)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BlobMemory, cfg.BlobBackend)
}

func TestWithFileMissing(t *testing.T) {
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Error(t, err)
}

func TestBuildServiceMemory(t *testing.T) {
	cfg, err := Load(WithJWTSecret("s3cret"))
	require.NoError(t, err)

	svc, err := cfg.BuildService(context.Background(), cfg.NewLogger(&bytes.Buffer{}))
	require.NoError(t, err)
	defer svc.Close()

	require.NotNil(t, svc.Repository)
	require.NotNil(t, svc.Registry)
	require.NotNil(t, svc.Auth)

	ctx := context.Background()
	item, err := svc.Repository.CreateFile(ctx, "alice", stash.FileUpload{
		FileName: "hello.txt",
		Data:     []byte("hello"),
	})
	require.NoError(t, err)

	_, data, err := svc.Repository.ResolveFile(ctx, "alice", item.Details.(stash.FileDetails).Ref.Key())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	assert.NotNil(t, cfg.Router(svc, cfg.NewLogger(&bytes.Buffer{})))
}

func TestBuildStoreSQLite(t *testing.T) {
	cfg, err := Load(WithDatabaseURL("sqlite://" + filepath.Join(t.TempDir(), "stash.db")))
	require.NoError(t, err)

	store, closeStore, err := cfg.BuildStore(context.Background())
	require.NoError(t, err)
	defer closeStore()

	records, err := store.ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, cfg.Migrate(context.Background()))
}

func TestBuildBlobBackendHTTP(t *testing.T) {
	cfg, err := Load(WithBlobBackend(BlobHTTP), func(c *ServerConfig) error {
		c.BlobHTTPURL = "http://blobs.internal:8081"
		return nil
	})
	require.NoError(t, err)

	backend, closeBackend, err := cfg.BuildBlobBackend(context.Background())
	require.NoError(t, err)
	defer closeBackend()
	assert.Equal(t, "http", backend.Name())
}

func TestBuildBlobBackendFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blobs")
	cfg, err := Load(WithBlobBackend(BlobFS), func(c *ServerConfig) error {
		c.BlobFSDir = dir
		return nil
	})
	require.NoError(t, err)

	backend, closeBackend, err := cfg.BuildBlobBackend(context.Background())
	require.NoError(t, err)
	defer closeBackend()
	assert.Equal(t, "fs", backend.Name())
	assert.DirExists(t, dir)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &ServerConfig{Environment: "production", LogLevel: "warn"}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "ERROR", parseLevel("ERROR").String())
	assert.Equal(t, "INFO", parseLevel("loud").String())
}
