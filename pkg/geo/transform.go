// Package geo maps between WGS84 geodetic coordinates and raster pixel
// coordinates through a UTM-style transverse Mercator projection.
package geo

import (
	"math"
	"regexp"
	"strconv"
)

// DefaultZone is used when no zone can be derived from a CRS
const DefaultZone = 36

// Transform converts between lat/lon and pixel coordinates. Only the
// scale and origin terms of the affine transform are used; rotation terms
// are assumed to be zero.
type Transform struct {
	PixelSizeX      float64
	PixelSizeY      float64
	OriginX         float64
	OriginY         float64
	Zone            int
	CentralMeridian float64
}

// New builds a Transform from a six-term affine transform laid out as
// (a, b, c, d, e, f): pixel width, row rotation, origin x, column
// rotation, pixel height, origin y.
func New(gt [6]float64, zone int) *Transform {
	return &Transform{
		PixelSizeX:      gt[0],
		PixelSizeY:      math.Abs(gt[4]),
		OriginX:         gt[2],
		OriginY:         gt[5],
		Zone:            zone,
		CentralMeridian: CentralMeridian(zone),
	}
}

// LatLonToPixel projects lat/lon and truncates to the containing pixel
// column and row. Truncation is toward zero, not flooring.
func (t *Transform) LatLonToPixel(lat, lon float64) (px, py int) {
	x, y := Forward(lat, lon, t.CentralMeridian)
	px = int((x - t.OriginX) / t.PixelSizeX)
	py = int((t.OriginY - y) / t.PixelSizeY)
	return px, py
}

// PixelToLatLon returns the lat/lon of a pixel's upper-left corner
func (t *Transform) PixelToLatLon(px, py int) (lat, lon float64) {
	x := t.OriginX + float64(px)*t.PixelSizeX
	y := t.OriginY - float64(py)*t.PixelSizeY
	return Inverse(x, y, t.CentralMeridian)
}

// FOVToPixels returns the pixel size of the ground footprint seen from
// altitudeM meters with a fovDeg field of view
func (t *Transform) FOVToPixels(altitudeM, fovDeg float64) (width, height int) {
	ground := FootprintMeters(altitudeM, fovDeg)
	return int(ground / t.PixelSizeX), int(ground / t.PixelSizeY)
}

// FootprintMeters returns the ground width covered by a sensor
func FootprintMeters(altitudeM, fovDeg float64) float64 {
	return 2 * altitudeM * math.Tan(radians(fovDeg/2))
}

var utmCRS = regexp.MustCompile(`(?i)^\s*EPSG:32([67])(\d{2})\s*$`)

// ZoneFromCRS extracts the zone from a WGS84 / UTM EPSG code such as
// EPSG:32636 or EPSG:32736.
func ZoneFromCRS(crs string) (int, bool) {
	m := utmCRS.FindStringSubmatch(crs)
	if m == nil {
		return 0, false
	}
	zone, err := strconv.Atoi(m[2])
	if err != nil || zone < 1 || zone > 60 {
		return 0, false
	}
	return zone, true
}

// ZoneForLon returns the standard zone containing a longitude
func ZoneForLon(lon float64) int {
	zone := int(math.Floor((lon+180)/6)) + 1
	switch {
	case zone < 1:
		return 1
	case zone > 60:
		return 60
	}
	return zone
}
