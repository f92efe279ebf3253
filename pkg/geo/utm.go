package geo

import "math"

// WGS84 ellipsoid and UTM constants
const (
	WGS84A       = 6378137.0
	WGS84F       = 1 / 298.257223563
	ScaleFactor  = 0.9996
	FalseEasting = 500000.0
)

var (
	e2      = 2*WGS84F - WGS84F*WGS84F
	ePrime2 = e2 / (1 - e2)
	e1      = (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
)

// CentralMeridian returns the central meridian in degrees of a UTM zone
func CentralMeridian(zone int) float64 {
	return float64((zone-1)*6-180) + 3
}

// Forward projects geodetic degrees to transverse Mercator easting and
// northing around the central meridian cm (degrees). The meridional arc
// uses the series truncated after the e^6 terms.
func Forward(lat, lon, cm float64) (x, y float64) {
	latRad := radians(lat)
	lonRad := radians(lon)
	lon0Rad := radians(cm)

	sinLat := math.Sin(latRad)
	cosLat := math.Cos(latRad)
	tanLat := math.Tan(latRad)

	n := WGS84A / math.Sqrt(1-e2*sinLat*sinLat)
	t := tanLat * tanLat
	c := ePrime2 * cosLat * cosLat
	a := (lonRad - lon0Rad) * cosLat

	e4 := e2 * e2
	e6 := e4 * e2
	m := WGS84A * ((1-e2/4-3*e4/64-5*e6/256)*latRad -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*latRad) +
		(15*e4/256+45*e6/1024)*math.Sin(4*latRad) -
		(35*e6/3072)*math.Sin(6*latRad))

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x = ScaleFactor*n*(a+(1-t+c)*a3/6+(5-18*t+t*t+72*c-58*ePrime2)*a5/120) + FalseEasting
	y = ScaleFactor * (m + n*tanLat*(a2/2+(5-t+9*c+4*c*c)*a4/24+
		(61-58*t+t*t+600*c-330*ePrime2)*a6/720))
	return x, y
}

// Inverse recovers geodetic degrees from easting and northing around the
// central meridian cm (degrees) using the footprint latitude series.
func Inverse(x, y, cm float64) (lat, lon float64) {
	e4 := e2 * e2
	e6 := e4 * e2

	x -= FalseEasting
	m := y / ScaleFactor
	mu := m / (WGS84A * (1 - e2/4 - 3*e4/64 - 5*e6/256))

	phi1 := mu + (3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu)

	sinPhi := math.Sin(phi1)
	cosPhi := math.Cos(phi1)
	tanPhi := math.Tan(phi1)

	n1 := WGS84A / math.Sqrt(1-e2*sinPhi*sinPhi)
	t1 := tanPhi * tanPhi
	c1 := ePrime2 * cosPhi * cosPhi
	r1 := WGS84A * (1 - e2) / math.Pow(1-e2*sinPhi*sinPhi, 1.5)
	d := x / (n1 * ScaleFactor)

	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	latRad := phi1 - (n1*tanPhi/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*ePrime2)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*ePrime2-3*c1*c1)*d6/720)
	lonRad := radians(cm) + (d-(1+2*t1+c1)*d3/6+
		(5-2*c1+28*t1-3*c1*c1+8*ePrime2+24*t1*t1)*d5/120)/cosPhi

	return degrees(latRad), degrees(lonRad)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
