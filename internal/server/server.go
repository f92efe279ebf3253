package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kiesman99/geoslice/internal/api"
	"github.com/kiesman99/geoslice/internal/export"
	"github.com/kiesman99/geoslice/internal/logging"
	"github.com/kiesman99/geoslice/internal/metrics"
	"github.com/kiesman99/geoslice/pkg/flight"
	"github.com/kiesman99/geoslice/pkg/geo"
	"github.com/kiesman99/geoslice/pkg/raster"
)

// DefaultMaxWaypoints bounds the path size accepted by /simulate
const DefaultMaxWaypoints = 10000

// Config holds what a Server serves
type Config struct {
	Version   string
	Store     raster.Store
	Transform *geo.Transform
	Backend   string

	// Cache backs window requests made with cached=true. Optional.
	Cache *raster.WindowCache

	Logger       logging.Logger
	Metrics      *metrics.Collector
	MaxWaypoints int
}

// Server implements api.ServerInterface over a single raster
type Server struct {
	startTime time.Time
	version   string

	store     raster.Store
	cached    raster.Store
	transform *geo.Transform
	backend   string

	logger       logging.Logger
	metrics      *metrics.Collector
	maxWaypoints int
}

var _ api.ServerInterface = (*Server)(nil)

// NewServer creates a new server instance
func NewServer(cfg Config) *Server {
	s := &Server{
		startTime:    time.Now(),
		version:      cfg.Version,
		store:        cfg.Store,
		cached:       cfg.Store,
		transform:    cfg.Transform,
		backend:      cfg.Backend,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		maxWaypoints: cfg.MaxWaypoints,
	}
	if cfg.Cache != nil {
		s.cached = raster.NewCachedStore(cfg.Store, cfg.Cache)
	}
	if s.transform == nil {
		s.transform = flight.TransformFor(cfg.Store.Metadata())
	}
	if s.logger == nil {
		s.logger = logging.Noop()
	}
	if s.maxWaypoints <= 0 {
		s.maxWaypoints = DefaultMaxWaypoints
	}
	return s
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	s.writeJSON(w, r, http.StatusOK, response)
}

// GetMetadata describes the served raster
func (s *Server) GetMetadata(w http.ResponseWriter, r *http.Request) {
	meta := s.store.Metadata()

	response := api.MetadataResponse{
		Dtype:           string(meta.DType),
		Count:           meta.Count,
		Height:          meta.Height,
		Width:           meta.Width,
		Transform:       meta.Transform,
		Zone:            s.transform.Zone,
		CentralMeridian: s.transform.CentralMeridian,
		Backend:         s.backend,
		Bytes:           meta.TotalBytes(),
	}
	if meta.CRS != "" {
		crs := meta.CRS
		response.Crs = &crs
	}

	s.writeJSON(w, r, http.StatusOK, response)
}

// GetWindow returns a clamped window, raw or as PNG
func (s *Server) GetWindow(w http.ResponseWriter, r *http.Request, params api.GetWindowParams) {
	requestID := requestIDFrom(r)

	if params.Width <= 0 || params.Height <= 0 {
		s.writeValidationErrorResponse(w, r, "size", "width and height must be positive", &requestID)
		return
	}

	format := api.Raw
	if params.Format != nil {
		format = *params.Format
	}
	if format != api.Raw && format != api.Png {
		s.writeValidationErrorResponse(w, r, "format", fmt.Sprintf("invalid format: %s", format), &requestID)
		return
	}

	store := s.store
	if params.Cached != nil && *params.Cached {
		store = s.cached
	}
	tile := store.WindowCopy(params.X, params.Y, params.Width, params.Height)

	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Raster-Bands", strconv.Itoa(tile.Bands))
	w.Header().Set("X-Raster-Height", strconv.Itoa(tile.Height))
	w.Header().Set("X-Raster-Width", strconv.Itoa(tile.Width))
	w.Header().Set("X-Raster-Dtype", string(tile.Type))

	if tile.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch format {
	case api.Png:
		if !export.CanEncodePNG(tile) {
			s.writeErrorResponse(w, r, http.StatusUnprocessableEntity, "UNSUPPORTED_FORMAT",
				fmt.Sprintf("%s raster with %d bands cannot be rendered as PNG", tile.Type, tile.Bands), &requestID, nil)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		if err := export.EncodePNG(w, tile); err != nil {
			s.logger.Error(r.Context(), "encode png", logging.Err(err))
		}
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(tile.Data)))
		w.WriteHeader(http.StatusOK)
		if err := export.WriteRaw(w, tile); err != nil {
			s.logger.Error(r.Context(), "write window", logging.Err(err))
		}
	}
}

// GetPixel converts a lat/lon to the pixel containing it
func (s *Server) GetPixel(w http.ResponseWriter, r *http.Request, params api.GetPixelParams) {
	if params.Lat < -90 || params.Lat > 90 || params.Lon < -180 || params.Lon > 180 {
		requestID := requestIDFrom(r)
		s.writeValidationErrorResponse(w, r, "lat", "lat must be within [-90, 90] and lon within [-180, 180]", &requestID)
		return
	}

	px, py := s.transform.LatLonToPixel(params.Lat, params.Lon)
	response := api.PixelResponse{
		Px:    px,
		Py:    py,
		Valid: px >= 0 && py >= 0 && px < s.store.Width() && py < s.store.Height(),
	}

	s.writeJSON(w, r, http.StatusOK, response)
}

// GetLatLon converts a pixel to lat/lon
func (s *Server) GetLatLon(w http.ResponseWriter, r *http.Request, params api.GetLatLonParams) {
	lat, lon := s.transform.PixelToLatLon(params.Px, params.Py)
	s.writeJSON(w, r, http.StatusOK, api.LatLonResponse{Lat: lat, Lon: lon})
}

// GetFootprint returns the sensor footprint for an altitude and field of view
func (s *Server) GetFootprint(w http.ResponseWriter, r *http.Request, params api.GetFootprintParams) {
	requestID := requestIDFrom(r)

	fov := flight.DefaultFOVDeg
	if params.Fov != nil {
		fov = *params.Fov
	}
	if params.Altitude <= 0 {
		s.writeValidationErrorResponse(w, r, "altitude", "altitude must be positive", &requestID)
		return
	}
	if fov <= 0 || fov >= 180 {
		s.writeValidationErrorResponse(w, r, "fov", "fov must be between 0 and 180 degrees", &requestID)
		return
	}

	width, height := s.transform.FOVToPixels(params.Altitude, fov)
	s.writeJSON(w, r, http.StatusOK, api.FootprintResponse{
		GroundMeters: geo.FootprintMeters(params.Altitude, fov),
		Width:        width,
		Height:       height,
	})
}

// Simulate generates a path and flies it over the raster
func (s *Server) Simulate(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	var req api.SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "INVALID_JSON",
			"Invalid JSON in request body", &requestID, nil)
		return
	}

	path, field, err := s.buildPath(&req)
	if err != nil {
		s.writeValidationErrorResponse(w, r, field, err.Error(), &requestID)
		return
	}

	runID := uuid.NewString()
	opts := []flight.Option{
		flight.WithLogger(s.logger.With(logging.String("run_id", runID), logging.String("request_id", requestID))),
	}
	if s.metrics != nil {
		opts = append(opts, flight.WithRecorder(s.metrics))
	}

	frames := flight.NewSimulator(s.store, s.transform, opts...).Run(r.Context(), path, nil)

	response := api.SimulateResponse{
		RunId:  runID,
		Frames: make([]api.FrameResponse, len(frames)),
	}
	for i, f := range frames {
		fr := api.FrameResponse{
			Index:     f.Index,
			Lat:       f.State.Lat,
			Lon:       f.State.Lon,
			Altitude:  f.State.AltitudeM,
			Heading:   f.State.HeadingDeg,
			Fov:       f.State.FOVDeg,
			Timestamp: f.State.Timestamp,
			Window:    api.Window(f.Window),
			Valid:     f.Valid(),
		}
		if f.Valid() {
			fr.Bytes = len(f.Tile.Data)
			response.Valid++
		} else {
			response.Nodata++
		}
		response.Frames[i] = fr
	}

	w.Header().Set("X-Request-ID", requestID)
	s.writeJSON(w, r, http.StatusOK, response)
}

// buildPath validates req and generates its path. On failure it also
// returns the offending field.
func (s *Server) buildPath(req *api.SimulateRequest) (flight.Path, string, error) {
	fov := flight.DefaultFOVDeg
	if req.Fov != nil {
		fov = *req.Fov
	}
	if fov <= 0 || fov >= 180 {
		return flight.Path{}, "fov", fmt.Errorf("fov must be between 0 and 180 degrees")
	}
	altitude := flight.DefaultAltitudeM
	if req.Altitude != nil {
		altitude = *req.Altitude
	}
	if altitude <= 0 {
		return flight.Path{}, "altitude", fmt.Errorf("altitude must be positive")
	}

	var path flight.Path

	switch req.Pattern {
	case api.Spiral:
		if req.Center == nil {
			return path, "center", fmt.Errorf("center is required when pattern is 'spiral'")
		}
		n, field, err := s.count("waypoints", req.Waypoints)
		if err != nil {
			return path, field, err
		}
		var altitudes []float64
		if req.Altitudes != nil {
			altitudes = *req.Altitudes
		}
		for _, a := range altitudes {
			if a <= 0 {
				return path, "altitudes", fmt.Errorf("altitudes must be positive")
			}
		}
		step := 0.0001
		if req.RadiusStep != nil {
			step = *req.RadiusStep
		}
		path, err = flight.Spiral(flight.LatLon(*req.Center), n, altitudes, step, fov)
		if err != nil {
			return path, "waypoints", err
		}

	case api.Linear:
		if req.Start == nil || req.End == nil {
			return path, "start", fmt.Errorf("start and end are required when pattern is 'linear'")
		}
		n, field, err := s.count("waypoints", req.Waypoints)
		if err != nil {
			return path, field, err
		}
		path, err = flight.Linear(flight.LatLon(*req.Start), flight.LatLon(*req.End), n, altitude, fov)
		if err != nil {
			return path, "waypoints", err
		}

	case api.Grid:
		if req.Bounds == nil {
			return path, "bounds", fmt.Errorf("bounds is required when pattern is 'grid'")
		}
		if req.Bounds.MinLat >= req.Bounds.MaxLat || req.Bounds.MinLon >= req.Bounds.MaxLon {
			return path, "bounds", fmt.Errorf("min_lat/min_lon must be less than max_lat/max_lon")
		}
		rows, field, err := s.count("rows", req.Rows)
		if err != nil {
			return path, field, err
		}
		cols, field, err := s.count("cols", req.Cols)
		if err != nil {
			return path, field, err
		}
		if rows*cols > s.maxWaypoints {
			return path, "rows", fmt.Errorf("rows*cols must not exceed %d", s.maxWaypoints)
		}
		path, err = flight.Grid(flight.Bounds(*req.Bounds), rows, cols, altitude, fov)
		if err != nil {
			return path, "rows", err
		}

	default:
		return path, "pattern", fmt.Errorf("invalid pattern: %s", req.Pattern)
	}

	return path, "", nil
}

func (s *Server) count(field string, v *int) (int, string, error) {
	if v == nil {
		return 0, field, fmt.Errorf("%s is required", field)
	}
	if *v < 1 || *v > s.maxWaypoints {
		return 0, field, fmt.Errorf("%s must be between 1 and %d", field, s.maxWaypoints)
	}
	return *v, "", nil
}

// HandleParamError answers query binding failures with a validation error
func (s *Server) HandleParamError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestIDFrom(r)
	field := api.ParamName(err)
	if field == "" {
		field = "request"
	}
	s.writeValidationErrorResponse(w, r, field, err.Error(), &requestID)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), "encode response", logging.Err(err))
	}
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	s.writeJSON(w, r, statusCode, response)
}

// writeValidationErrorResponse writes a validation error response
func (s *Server) writeValidationErrorResponse(w http.ResponseWriter, r *http.Request, field, message string, requestID *string) {
	response := api.ValidationErrorResponse{
		Error:     api.VALIDATIONERROR,
		Message:   message,
		RequestId: requestID,
		ValidationErrors: []api.ValidationError{
			{
				Field:   field,
				Message: message,
			},
		},
	}

	s.writeJSON(w, r, http.StatusBadRequest, response)
}

// requestIDFrom returns the id assigned by middleware.RequestID, or a fresh
// one when the middleware is not installed
func requestIDFrom(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return "req_" + uuid.NewString()
}
