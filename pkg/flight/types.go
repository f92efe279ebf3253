// Package flight generates drone flight paths and simulates sensor capture
// along them over a raster.
package flight

import (
	"iter"

	"github.com/kiesman99/geoslice/pkg/raster"
)

// Defaults for waypoints built with NewDroneState
const (
	DefaultFOVDeg    = 60.0
	DefaultAltitudeM = 100.0
)

// DefaultAltitudes is the altitude cycle used by Spiral when none is given
var DefaultAltitudes = []float64{50, 100, 150, 200, 250}

// LatLon is a geodetic position in degrees
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds is a geodetic bounding box in degrees
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// DroneState is one waypoint: pose, sensor parameters and timestamp
type DroneState struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	AltitudeM  float64 `json:"altitude_m"`
	HeadingDeg float64 `json:"heading_deg"`
	FOVDeg     float64 `json:"fov_deg"`
	SpeedMS    float64 `json:"speed_ms"`
	Timestamp  float64 `json:"timestamp"`
}

// NewDroneState returns a waypoint with a 60 degree field of view and zero
// heading, speed and timestamp.
func NewDroneState(lat, lon, altitudeM float64) DroneState {
	return DroneState{
		Lat:       lat,
		Lon:       lon,
		AltitudeM: altitudeM,
		FOVDeg:    DefaultFOVDeg,
	}
}

// WindowParams is the pixel window a waypoint's sensor footprint covers.
// It is not clamped and may fall partly or wholly outside the raster.
type WindowParams struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Window converts to a raster.Window
func (w WindowParams) Window() raster.Window {
	return raster.Window{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height}
}

// IsValid reports whether the window lies strictly inside a map of the
// given size
func (w WindowParams) IsValid(mapWidth, mapHeight int) bool {
	return w.Window().In(mapWidth, mapHeight)
}

// Path is an immutable ordered sequence of waypoints
type Path struct {
	states []DroneState
}

// NewPath copies states into a Path
func NewPath(states []DroneState) Path {
	return Path{states: append([]DroneState(nil), states...)}
}

// Len returns the number of waypoints
func (p Path) Len() int { return len(p.states) }

// At returns waypoint i. Negative indexes count back from the end.
func (p Path) At(i int) DroneState {
	if i < 0 {
		i += len(p.states)
	}
	return p.states[i]
}

// States returns a copy of the waypoints
func (p Path) States() []DroneState {
	return append([]DroneState(nil), p.states...)
}

// All iterates over the waypoints in order
func (p Path) All() iter.Seq2[int, DroneState] {
	return func(yield func(int, DroneState) bool) {
		for i, s := range p.states {
			if !yield(i, s) {
				return
			}
		}
	}
}

// Frame is one simulator output slot. A nil Tile marks a waypoint whose
// window fell outside the raster.
type Frame struct {
	Index  int
	State  DroneState
	Window WindowParams
	Tile   *raster.Tile
}

// Valid reports whether imagery was extracted for the frame
func (f Frame) Valid() bool { return f.Tile != nil }
