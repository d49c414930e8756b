// Package blob is the gateway between the item catalog and the external
// object store. Backends under blob/ speak to a concrete store and hand back
// whatever the store returned; Gateway bounds every call with a timeout and a
// circuit breaker and normalizes downloads into canonical bytes.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/tendant/stash/pkg/stash"
)

// ErrObjectNotFound is returned by backends when a key does not exist
var ErrObjectNotFound = errors.New("object not found")

// DefaultTimeout bounds each round trip to the object store
const DefaultTimeout = 15 * time.Second

// Backend is a raw object-store client.
type Backend interface {
	// Name identifies the backend in logs and errors
	Name() string

	// Put stores data under key
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get returns the stored payload in whatever shape the store produced,
	// or ErrObjectNotFound
	Get(ctx context.Context, key string) (any, error)

	// Delete removes key, returning ErrObjectNotFound if it did not exist
	Delete(ctx context.Context, key string) error
}

// Gateway implements stash.BlobGateway on top of a Backend
type Gateway struct {
	backend Backend
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	ops     *prometheus.CounterVec
	logger  *slog.Logger
}

// Option represents a functional option for configuring the gateway
type Option func(*Gateway)

// WithTimeout overrides DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics registers the operation counter on reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(g *Gateway) {
		ops := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stash",
			Name:      "blob_operations_total",
			Help:      "Blob gateway operations by outcome.",
		}, []string{"op", "outcome"})

		if err := reg.Register(ops); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				ops = already.ExistingCollector.(*prometheus.CounterVec)
			} else {
				return
			}
		}
		g.ops = ops
	}
}

// WithBreaker replaces the default circuit breaker settings
func WithBreaker(settings gobreaker.Settings) Option {
	return func(g *Gateway) {
		if settings.IsSuccessful == nil {
			settings.IsSuccessful = breakerSuccess
		}
		g.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// NewGateway creates a gateway for backend
func NewGateway(backend Backend, options ...Option) *Gateway {
	g := &Gateway{
		backend: backend,
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "blob-" + backend.Name(),
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("blob circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	for _, option := range options {
		option(g)
	}
	return g
}

// A missing key is an answer, not a backend failure.
func breakerSuccess(err error) bool {
	return err == nil || errors.Is(err, ErrObjectNotFound)
}

// UploadBytes stores data under key. It is never retried here: the caller
// owns key uniqueness and a retry under the same key is not idempotent.
func (g *Gateway) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := g.call(ctx, func(ctx context.Context) (any, error) {
		return nil, g.backend.Put(ctx, key, data, contentType)
	})
	if err != nil {
		g.count("upload", "error")
		return g.storageErr("upload", key, backendFailure(err))
	}
	g.count("upload", "ok")
	return nil
}

// DownloadBytes fetches key and normalizes the response.
func (g *Gateway) DownloadBytes(ctx context.Context, key string) ([]byte, error) {
	raw, err := g.call(ctx, func(ctx context.Context) (any, error) {
		return g.backend.Get(ctx, key)
	})
	if errors.Is(err, ErrObjectNotFound) {
		g.count("download", "not_found")
		return nil, g.storageErr("download", key, stash.ErrBlobNotFound)
	}
	if err != nil {
		g.count("download", "error")
		return nil, g.storageErr("download", key, backendFailure(err))
	}

	data, err := Normalize(raw)
	if err != nil {
		var malformedErr *stash.MalformedResponseError
		if errors.As(err, &malformedErr) {
			g.count("download", "malformed")
			g.logger.ErrorContext(ctx, "unrecognized blob response", "storage_key", key,
				"backend", g.backend.Name(), "reason", malformedErr.Reason, "snapshot", malformedErr.Snapshot)
		} else {
			g.count("download", "error")
		}
		return nil, g.storageErr("download", key, err)
	}

	g.count("download", "ok")
	return data, nil
}

// DeleteBytes removes key. Deleting an absent key succeeds.
func (g *Gateway) DeleteBytes(ctx context.Context, key string) error {
	_, err := g.call(ctx, func(ctx context.Context) (any, error) {
		return nil, g.backend.Delete(ctx, key)
	})
	if err != nil && !errors.Is(err, ErrObjectNotFound) {
		g.count("delete", "error")
		return g.storageErr("delete", key, backendFailure(err))
	}
	g.count("delete", "ok")
	return nil
}

func (g *Gateway) call(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
}

func (g *Gateway) storageErr(op, key string, err error) error {
	return &stash.StorageError{Backend: g.backend.Name(), Key: key, Op: op, Err: err}
}

func (g *Gateway) count(op, outcome string) {
	if g.ops != nil {
		g.ops.WithLabelValues(op, outcome).Inc()
	}
}

func backendFailure(err error) error {
	if errors.Is(err, stash.ErrBackend) {
		return err
	}
	return fmt.Errorf("%w: %w", stash.ErrBackend, err)
}
