package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiesman99/geoslice/internal/api"
	"github.com/kiesman99/geoslice/internal/metrics"
)

// RouterOptions configures NewRouter
type RouterOptions struct {
	Timeout time.Duration

	// Metrics, when set, instruments every route and serves /metrics
	Metrics *metrics.Collector

	// RequestLogging enables chi's request logger
	RequestLogging bool
}

// NewRouter mounts s at /api/v1 behind the standard middleware chain
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	if opts.RequestLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(opts.Timeout))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}

	// CORS middleware for API access
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Raster-Bands, X-Raster-Height, X-Raster-Width, X-Raster-Dtype")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	r.Mount("/api/v1", api.HandlerWithOptions(s, api.ChiServerOptions{
		ErrorHandlerFunc: s.HandleParamError,
	}))

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	// Legacy health endpoint (without /api/v1 prefix)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/v1/health", http.StatusMovedPermanently)
	})

	return r
}
