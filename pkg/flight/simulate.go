package flight

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kiesman99/geoslice/internal/logging"
	"github.com/kiesman99/geoslice/pkg/geo"
	"github.com/kiesman99/geoslice/pkg/raster"
)

const tracerName = "github.com/kiesman99/geoslice/pkg/flight"

// Observer is called synchronously, in path order, for every waypoint
// whose window was extracted
type Observer func(state DroneState, tile *raster.Tile)

// Recorder receives per-frame and per-run measurements
type Recorder interface {
	ObserveFrame(valid bool, bytes int)
	ObserveRun(d time.Duration, frames int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveFrame(bool, int)        {}
func (noopRecorder) ObserveRun(time.Duration, int) {}

// StateToWindow centers the sensor footprint of s on its pixel position.
// The result is not clamped.
func StateToWindow(s DroneState, t *geo.Transform) WindowParams {
	cx, cy := t.LatLonToPixel(s.Lat, s.Lon)
	w, h := t.FOVToPixels(s.AltitudeM, s.FOVDeg)
	return WindowParams{X: cx - w/2, Y: cy - h/2, Width: w, Height: h}
}

// Windows computes the window of every waypoint in order
func (p Path) Windows(t *geo.Transform) []WindowParams {
	out := make([]WindowParams, len(p.states))
	for i, s := range p.states {
		out[i] = StateToWindow(s, t)
	}
	return out
}

// TransformFor builds the transform for a raster, taking the zone from its
// CRS when it names one and falling back to geo.DefaultZone.
func TransformFor(meta raster.Metadata) *geo.Transform {
	zone, ok := geo.ZoneFromCRS(meta.CRS)
	if !ok {
		zone = geo.DefaultZone
	}
	return geo.New(meta.Transform, zone)
}

// Simulator drives a flight path across a raster
type Simulator struct {
	store     raster.Store
	transform *geo.Transform
	logger    logging.Logger
	recorder  Recorder
	tracer    trace.Tracer
}

// Option configures a Simulator
type Option func(*Simulator)

// WithLogger sets the simulator's logger
func WithLogger(l logging.Logger) Option {
	return func(s *Simulator) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets where frame and run measurements go
func WithRecorder(r Recorder) Option {
	return func(s *Simulator) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithTracerProvider overrides the global tracer provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Simulator) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewSimulator creates a simulator over store using transform t
func NewSimulator(store raster.Store, t *geo.Transform, opts ...Option) *Simulator {
	s := &Simulator{
		store:     store,
		transform: t,
		logger:    logging.Noop(),
		recorder:  noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// Transform returns the simulator's coordinate transform
func (s *Simulator) Transform() *geo.Transform { return s.transform }

// Run visits every waypoint of path in order. Waypoints whose window lies
// strictly inside the raster get a copy of that window; the rest get a
// no-data frame. The result always has one frame per waypoint. ctx only
// carries tracing and logging context; it does not cut the run short.
func (s *Simulator) Run(ctx context.Context, path Path, observer Observer) []Frame {
	ctx, span := s.tracer.Start(ctx, "flight.Simulate",
		trace.WithAttributes(attribute.Int("path.length", path.Len())))
	defer span.End()

	start := time.Now()
	width, height := s.store.Width(), s.store.Height()
	frames := make([]Frame, path.Len())
	valid := 0

	for i, state := range path.All() {
		win := StateToWindow(state, s.transform)
		f := Frame{Index: i, State: state, Window: win}

		if win.IsValid(width, height) {
			f.Tile = s.store.WindowCopy(win.X, win.Y, win.Width, win.Height)
			valid++
			s.recorder.ObserveFrame(true, len(f.Tile.Data))
			if observer != nil {
				observer(state, f.Tile)
			}
		} else {
			s.recorder.ObserveFrame(false, 0)
			s.logger.Debug(ctx, "window outside raster",
				logging.Int("index", i),
				logging.Int("x", win.X),
				logging.Int("y", win.Y),
				logging.Int("width", win.Width),
				logging.Int("height", win.Height),
			)
		}
		frames[i] = f
	}

	elapsed := time.Since(start)
	s.recorder.ObserveRun(elapsed, len(frames))

	nodata := len(frames) - valid
	span.SetAttributes(
		attribute.Int("frames.valid", valid),
		attribute.Int("frames.nodata", nodata),
	)

	s.logger.Info(ctx, "simulation complete",
		logging.Int("waypoints", len(frames)),
		logging.Int("valid", valid),
		logging.Int("nodata", nodata),
		logging.Any("elapsed", elapsed),
	)
	return frames
}

// Simulate runs path over store with the transform derived from the
// store's metadata
func Simulate(store raster.Store, path Path, observer Observer) []Frame {
	return NewSimulator(store, TransformFor(store.Metadata())).Run(context.Background(), path, observer)
}
