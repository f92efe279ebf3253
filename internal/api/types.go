// Package api holds the geoslice HTTP API: request and response types, the
// ServerInterface implemented by internal/server, and a chi router that
// binds query parameters before dispatching to it.
package api

import "time"

// Defines values for HealthResponseStatus.
const (
	Healthy HealthResponseStatus = "healthy"
)

// Defines values for ValidationErrorResponseError.
const (
	VALIDATIONERROR ValidationErrorResponseError = "VALIDATION_ERROR"
)

// Defines values for GetWindowParamsFormat.
const (
	Raw GetWindowParamsFormat = "raw"
	Png GetWindowParamsFormat = "png"
)

// Defines values for SimulateRequestPattern.
const (
	Spiral SimulateRequestPattern = "spiral"
	Linear SimulateRequestPattern = "linear"
	Grid   SimulateRequestPattern = "grid"
)

// HealthResponse defines model for HealthResponse.
type HealthResponse struct {
	Status    HealthResponseStatus `json:"status"`
	Timestamp time.Time            `json:"timestamp"`

	// Uptime Server uptime in seconds
	Uptime  *int    `json:"uptime,omitempty"`
	Version *string `json:"version,omitempty"`
}

// HealthResponseStatus defines model for HealthResponse.Status.
type HealthResponseStatus string

// ErrorResponse defines model for ErrorResponse.
type ErrorResponse struct {
	Details   *map[string]interface{} `json:"details,omitempty"`
	Error     string                  `json:"error"`
	Message   string                  `json:"message"`
	RequestId *string                 `json:"request_id,omitempty"`
}

// ValidationError is a single field failure
type ValidationError struct {
	Code    *string `json:"code,omitempty"`
	Field   string  `json:"field"`
	Message string  `json:"message"`
}

// ValidationErrorResponse defines model for ValidationErrorResponse.
type ValidationErrorResponse struct {
	Error            ValidationErrorResponseError `json:"error"`
	Message          string                       `json:"message"`
	RequestId        *string                      `json:"request_id,omitempty"`
	ValidationErrors []ValidationError            `json:"validation_errors"`
}

// ValidationErrorResponseError defines model for ValidationErrorResponse.Error.
type ValidationErrorResponseError string

// MetadataResponse describes the served raster
type MetadataResponse struct {
	Dtype           string     `json:"dtype"`
	Count           int        `json:"count"`
	Height          int        `json:"height"`
	Width           int        `json:"width"`
	Transform       [6]float64 `json:"transform"`
	Crs             *string    `json:"crs"`
	Zone            int        `json:"zone"`
	CentralMeridian float64    `json:"central_meridian"`
	Backend         string     `json:"backend"`
	Bytes           int64      `json:"bytes"`
}

// PixelResponse is the pixel containing a lat/lon
type PixelResponse struct {
	Px int `json:"px"`
	Py int `json:"py"`

	// Valid is true when the pixel lies inside the raster
	Valid bool `json:"valid"`
}

// LatLonResponse is the position of a pixel's upper-left corner
type LatLonResponse struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FootprintResponse is a sensor footprint in meters and pixels
type FootprintResponse struct {
	GroundMeters float64 `json:"ground_meters"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
}

// LatLon defines model for LatLon.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds defines model for Bounds.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Window defines model for Window.
type Window struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// SimulateRequest generates a path and flies it over the raster.
// Which fields are required depends on Pattern: spiral uses Center,
// Waypoints, Altitudes and RadiusStep; linear uses Start, End, Waypoints
// and Altitude; grid uses Bounds, Rows, Cols and Altitude.
type SimulateRequest struct {
	Pattern SimulateRequestPattern `json:"pattern"`

	Center *LatLon `json:"center,omitempty"`
	Start  *LatLon `json:"start,omitempty"`
	End    *LatLon `json:"end,omitempty"`
	Bounds *Bounds `json:"bounds,omitempty"`

	Waypoints  *int       `json:"waypoints,omitempty"`
	Rows       *int       `json:"rows,omitempty"`
	Cols       *int       `json:"cols,omitempty"`
	Altitude   *float64   `json:"altitude,omitempty"`
	Altitudes  *[]float64 `json:"altitudes,omitempty"`
	RadiusStep *float64   `json:"radius_step,omitempty"`
	Fov        *float64   `json:"fov,omitempty"`
}

// SimulateRequestPattern defines model for SimulateRequest.Pattern.
type SimulateRequestPattern string

// FrameResponse is one simulated waypoint. Imagery is not included.
type FrameResponse struct {
	Index     int     `json:"index"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Altitude  float64 `json:"altitude"`
	Heading   float64 `json:"heading"`
	Fov       float64 `json:"fov"`
	Timestamp float64 `json:"timestamp"`
	Window    Window  `json:"window"`
	Valid     bool    `json:"valid"`
	Bytes     int     `json:"bytes"`
}

// SimulateResponse defines model for SimulateResponse.
type SimulateResponse struct {
	RunId  string          `json:"run_id"`
	Frames []FrameResponse `json:"frames"`
	Valid  int             `json:"valid"`
	Nodata int             `json:"nodata"`
}

// GetWindowParams defines parameters for GetWindow.
type GetWindowParams struct {
	X      int                    `form:"x" json:"x"`
	Y      int                    `form:"y" json:"y"`
	Width  int                    `form:"width" json:"width"`
	Height int                    `form:"height" json:"height"`
	Format *GetWindowParamsFormat `form:"format,omitempty" json:"format,omitempty"`

	// Cached serves the window through the window cache
	Cached *bool `form:"cached,omitempty" json:"cached,omitempty"`
}

// GetWindowParamsFormat defines parameters for GetWindow.
type GetWindowParamsFormat string

// GetPixelParams defines parameters for GetPixel.
type GetPixelParams struct {
	Lat float64 `form:"lat" json:"lat"`
	Lon float64 `form:"lon" json:"lon"`
}

// GetLatLonParams defines parameters for GetLatLon.
type GetLatLonParams struct {
	Px int `form:"px" json:"px"`
	Py int `form:"py" json:"py"`
}

// GetFootprintParams defines parameters for GetFootprint.
type GetFootprintParams struct {
	Altitude float64  `form:"altitude" json:"altitude"`
	Fov      *float64 `form:"fov,omitempty" json:"fov,omitempty"`
}
