package spatio

import "github.com/sitan2008/spatio/internal/geo"

// Point is an immutable (lat, lon) pair on the WGS-84 sphere. Construct one
// with NewPoint; the zero value is the valid point at (0, 0).
type Point struct {
	lat, lon float64
}

// NewPoint validates and constructs a Point. lat must be in [-90, 90] and
// lon in [-180, 180]; out-of-range values fail with ErrInvalidCoordinate.
func NewPoint(lat, lon float64) (Point, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Point{}, ErrInvalidCoordinate
	}
	return Point{lat: lat, lon: lon}, nil
}

// Lat returns the point's latitude in degrees.
func (p Point) Lat() float64 { return p.lat }

// Lon returns the point's longitude in degrees.
func (p Point) Lon() float64 { return p.lon }

// DistanceTo returns the great-circle distance in meters to other.
func (p Point) DistanceTo(other Point) float64 {
	return geo.Distance(p.lat, p.lon, other.lat, other.lon)
}
