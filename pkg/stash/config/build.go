package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tendant/stash/pkg/stash"
	"github.com/tendant/stash/pkg/stash/api"
	"github.com/tendant/stash/pkg/stash/blob"
	blobfs "github.com/tendant/stash/pkg/stash/blob/fs"
	"github.com/tendant/stash/pkg/stash/blob/httpstore"
	blobmemory "github.com/tendant/stash/pkg/stash/blob/memory"
	blobredis "github.com/tendant/stash/pkg/stash/blob/redis"
	blobs3 "github.com/tendant/stash/pkg/stash/blob/s3"
	storememory "github.com/tendant/stash/pkg/stash/store/memory"
	storepg "github.com/tendant/stash/pkg/stash/store/postgres"
	storesqlite "github.com/tendant/stash/pkg/stash/store/sqlite"
)

// Service is the assembled application: repository plus the resources it
// holds open.
type Service struct {
	Repository *stash.Repository
	Registry   *prometheus.Registry
	Auth       *jwtauth.JWTAuth

	closers []func() error
}

// Close releases the store and backend connections
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Router builds the HTTP handler for the service
func (c *ServerConfig) Router(svc *Service, logger *slog.Logger) http.Handler {
	cfg := api.RouterConfig{
		Repository:     svc.Repository,
		Logger:         logger,
		Auth:           svc.Auth,
		DevOwnerHeader: c.AuthDevHeader,
		AllowedOrigins: c.CORSAllowedOrigins,
		MaxUploadBytes: c.MaxUploadBytes,
	}
	if svc.Registry != nil {
		cfg.Gatherer = svc.Registry
	}
	return api.NewRouter(cfg)
}

// BuildService constructs the catalog store, blob gateway and repository.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger) (*Service, error) {
	svc := &Service{}

	var reg prometheus.Registerer
	if c.EnableMetrics {
		svc.Registry = prometheus.NewRegistry()
		svc.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		reg = svc.Registry
	}

	store, closeStore, err := c.BuildStore(ctx)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, closeStore)

	backend, closeBackend, err := c.BuildBlobBackend(ctx)
	if err != nil {
		_ = svc.Close()
		return nil, err
	}
	svc.closers = append(svc.closers, closeBackend)

	gwOpts := []blob.Option{blob.WithTimeout(c.BlobTimeout), blob.WithLogger(logger)}
	if reg != nil {
		gwOpts = append(gwOpts, blob.WithMetrics(reg))
	}
	gateway := blob.NewGateway(backend, gwOpts...)

	repo, err := stash.NewRepository(
		stash.WithStore(store),
		stash.WithBlobGateway(gateway),
		stash.WithLogger(logger),
	)
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}
	svc.Repository = repo

	if c.JWTSecret != "" {
		svc.Auth = jwtauth.New("HS256", []byte(c.JWTSecret), nil)
	}

	logger.Info("service assembled",
		"database", c.DatabaseType(),
		"blob_backend", backend.Name(),
		"jwt", svc.Auth != nil,
		"dev_owner_header", c.AuthDevHeader)
	return svc, nil
}

// BuildStore opens the catalog store selected by DatabaseURL. The returned
// func closes it. SQLite is always migrated; Postgres only with AutoMigrate.
func (c *ServerConfig) BuildStore(ctx context.Context) (stash.Store, func() error, error) {
	noop := func() error { return nil }

	switch c.DatabaseType() {
	case DatabaseMemory:
		return storememory.New(), noop, nil

	case DatabasePostgres:
		pool, err := c.openPostgres(ctx)
		if err != nil {
			return nil, nil, err
		}
		store := storepg.NewWithPool(pool)
		if c.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return store, func() error { pool.Close(); return nil }, nil

	case DatabaseSQLite:
		store, err := storesqlite.Open(c.SQLitePath())
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	return nil, nil, fmt.Errorf("unsupported DATABASE_URL %q", c.DatabaseURL)
}

// Migrate applies the catalog schema for SQL stores. Memory needs none.
func (c *ServerConfig) Migrate(ctx context.Context) error {
	switch c.DatabaseType() {
	case DatabasePostgres:
		pool, err := c.openPostgres(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		return storepg.NewWithPool(pool).Migrate(ctx)
	case DatabaseSQLite:
		store, err := storesqlite.Open(c.SQLitePath())
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Migrate(ctx)
	}
	return nil
}

func (c *ServerConfig) openPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(c.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema := c.DBSchema; schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return pool, nil
}

// BuildBlobBackend creates the raw object-store client named by BlobBackend.
func (c *ServerConfig) BuildBlobBackend(ctx context.Context) (blob.Backend, func() error, error) {
	noop := func() error { return nil }

	switch c.BlobBackend {
	case BlobMemory:
		return blobmemory.New(), noop, nil

	case BlobS3:
		backend, err := blobs3.New(ctx, blobs3.Config{
			Region:                 c.S3.Region,
			Bucket:                 c.S3.Bucket,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create s3 backend: %w", err)
		}
		return backend, noop, nil

	case BlobRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		return blobredis.New(client, c.Redis.Prefix), client.Close, nil

	case BlobHTTP:
		var opts []httpstore.ClientOption
		if c.BlobHTTPToken != "" {
			opts = append(opts, httpstore.WithToken(c.BlobHTTPToken))
		}
		client, err := httpstore.NewClient(c.BlobHTTPURL, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create http blob client: %w", err)
		}
		return client, noop, nil

	case BlobFS:
		backend, err := blobfs.New(c.BlobFSDir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create fs blob backend: %w", err)
		}
		return backend, noop, nil
	}

	return nil, nil, fmt.Errorf("unsupported blob backend %q", c.BlobBackend)
}
