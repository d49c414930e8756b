package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig wires the HTTP surface
type RouterConfig struct {
	Repository ItemRepository
	Logger     *slog.Logger

	// Auth verifies bearer tokens; nil disables them
	Auth *jwtauth.JWTAuth

	// DevOwnerHeader accepts X-Owner-ID without a token
	DevOwnerHeader bool

	AllowedOrigins []string

	// Gatherer backs /metrics; nil leaves the route out
	Gatherer prometheus.Gatherer

	MaxUploadBytes int64
}

// NewRouter builds the application router
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(chimiddleware.RealIP)
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoveryMiddleware(logger))

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", OwnerHeader},
			ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	items := NewItemsHandler(cfg.Repository, logger, cfg.MaxUploadBytes)
	files := NewFilesHandler(cfg.Repository, logger)

	r.Group(func(r chi.Router) {
		r.Use(OwnerMiddleware(cfg.Auth, cfg.DevOwnerHeader))
		r.Mount("/items", items.Routes())
		r.Mount("/files", files.Routes())
	})

	r.NotFound(notFound)
	return r
}
