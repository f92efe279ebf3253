// Package metrics exposes Prometheus metrics for window extraction, flight
// simulation, the window cache and the HTTP API.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kiesman99/geoslice/pkg/raster"
)

// Collector bundles geoslice metrics
type Collector struct {
	gatherer prometheus.Gatherer

	WindowsExtracted   prometheus.Counter
	WindowsNoData      prometheus.Counter
	WindowBytes        prometheus.Counter
	SimulationDuration prometheus.Histogram

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec
}

// New registers geoslice metrics against reg, defaulting to the global
// registry when nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.WindowsExtracted, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoslice_windows_extracted_total",
		Help: "Waypoint windows extracted from the raster.",
	})); err != nil {
		return nil, err
	}
	if c.WindowsNoData, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoslice_windows_nodata_total",
		Help: "Waypoint windows that fell outside the raster.",
	})); err != nil {
		return nil, err
	}
	if c.WindowBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geoslice_window_bytes_total",
		Help: "Bytes copied out of the raster for waypoint windows.",
	})); err != nil {
		return nil, err
	}
	if c.SimulationDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geoslice_simulation_duration_seconds",
		Help:    "Wall time of complete flight simulations.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	})); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geoslice_http_requests_total",
		Help: "HTTP requests handled, labeled by route pattern, method and status code.",
	}, []string{"route", "method", "code"})); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geoslice_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route", "method"})); err != nil {
		return nil, err
	}

	return c, nil
}

// ObserveFrame implements flight.Recorder
func (c *Collector) ObserveFrame(valid bool, bytes int) {
	if c == nil {
		return
	}
	if !valid {
		c.WindowsNoData.Inc()
		return
	}
	c.WindowsExtracted.Inc()
	c.WindowBytes.Add(float64(bytes))
}

// ObserveRun implements flight.Recorder
func (c *Collector) ObserveRun(d time.Duration, frames int) {
	if c == nil {
		return
	}
	c.SimulationDuration.Observe(d.Seconds())
}

// RegisterCache exposes a window cache's size, capacity and hit/miss counters
func RegisterCache(reg prometheus.Registerer, cache *raster.WindowCache) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "geoslice_cache_bytes",
			Help: "Bytes held by the window cache.",
		}, func() float64 { return float64(cache.Size()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "geoslice_cache_capacity_bytes",
			Help: "Byte capacity of the window cache.",
		}, func() float64 { return float64(cache.Capacity()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "geoslice_cache_hits_total",
			Help: "Window cache hits.",
		}, func() float64 { return float64(cache.Hits()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "geoslice_cache_misses_total",
			Help: "Window cache misses.",
		}, func() float64 { return float64(cache.Misses()) }),
	}
	for _, col := range collectors {
		if _, err := register(reg, col); err != nil {
			return err
		}
	}
	return nil
}

// UnmatchedRoute labels requests that no route pattern matched, keeping
// the route label bounded.
const UnmatchedRoute = "unmatched"

// Middleware records request counts and durations keyed by the matched
// chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := UnmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		c.HTTPDurations.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes a ready-to-use /metrics handler
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// register registers col, reusing an already registered collector of the
// same type when one exists
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return col, nil
}
