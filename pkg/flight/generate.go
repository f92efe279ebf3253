package flight

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrInvalidCount is returned when a generator is asked for fewer than one
// waypoint, row or column
var ErrInvalidCount = errors.New("count must be at least 1")

// Spiral generates n waypoints circling outward from center. Waypoint i is
// radiusStep*(i+1) degrees from the center at bearing i*360/n, flies that
// bearing, and takes its altitude from altitudes in rotation.
func Spiral(center LatLon, n int, altitudes []float64, radiusStep, fovDeg float64) (Path, error) {
	if n < 1 {
		return Path{}, fmt.Errorf("spiral waypoints %d: %w", n, ErrInvalidCount)
	}
	if len(altitudes) == 0 {
		altitudes = DefaultAltitudes
	}

	step := 360 / float64(n)
	states := make([]DroneState, n)
	for i := range states {
		heading := float64(i) * step
		radius := radiusStep * float64(i+1)
		angle := heading * math.Pi / 180

		states[i] = DroneState{
			Lat:        center.Lat + radius*math.Cos(angle),
			Lon:        center.Lon + radius*math.Sin(angle),
			AltitudeM:  altitudes[i%len(altitudes)],
			HeadingDeg: heading,
			FOVDeg:     fovDeg,
			Timestamp:  float64(i),
		}
	}
	return Path{states: states}, nil
}

// Linear generates n waypoints evenly spaced from start to end, both
// included, all flying the start-to-end bearing.
func Linear(start, end LatLon, n int, altitudeM, fovDeg float64) (Path, error) {
	if n < 1 {
		return Path{}, fmt.Errorf("linear waypoints %d: %w", n, ErrInvalidCount)
	}

	lats := linspace(start.Lat, end.Lat, n)
	lons := linspace(start.Lon, end.Lon, n)
	heading := math.Atan2(end.Lon-start.Lon, end.Lat-start.Lat) * 180 / math.Pi

	states := make([]DroneState, n)
	for i := range states {
		states[i] = DroneState{
			Lat:        lats[i],
			Lon:        lons[i],
			AltitudeM:  altitudeM,
			HeadingDeg: heading,
			FOVDeg:     fovDeg,
			Timestamp:  float64(i),
		}
	}
	return Path{states: states}, nil
}

// Grid generates a boustrophedon survey over bounds: rows of evenly spaced
// latitudes from MinLat to MaxLat, each flown east (heading 90) on even
// rows and west (heading 270) on odd rows.
func Grid(bounds Bounds, rows, cols int, altitudeM, fovDeg float64) (Path, error) {
	if rows < 1 {
		return Path{}, fmt.Errorf("grid rows %d: %w", rows, ErrInvalidCount)
	}
	if cols < 1 {
		return Path{}, fmt.Errorf("grid cols %d: %w", cols, ErrInvalidCount)
	}

	lats := linspace(bounds.MinLat, bounds.MaxLat, rows)
	lons := linspace(bounds.MinLon, bounds.MaxLon, cols)

	states := make([]DroneState, 0, rows*cols)
	for r, lat := range lats {
		heading := 90.0
		if r%2 == 1 {
			heading = 270
		}

		for c := range lons {
			lon := lons[c]
			if r%2 == 1 {
				lon = lons[cols-1-c]
			}
			states = append(states, DroneState{
				Lat:        lat,
				Lon:        lon,
				AltitudeM:  altitudeM,
				HeadingDeg: heading,
				FOVDeg:     fovDeg,
				Timestamp:  float64(len(states)),
			})
		}
	}
	return Path{states: states}, nil
}

// linspace returns n evenly spaced values from l to u inclusive. A single
// value is l. The last value is exactly u.
func linspace(l, u float64, n int) []float64 {
	if n == 1 {
		return []float64{l}
	}
	out := floats.Span(make([]float64, n), l, u)
	out[n-1] = u
	return out
}
