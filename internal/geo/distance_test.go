package geo

import (
	"math"
	"testing"

	"github.com/zeebo/assert"
)

func TestDistanceZeroForSamePoint(t *testing.T) {
	d := Distance(40.0, -73.0, 40.0, -73.0)
	assert.True(t, math.Abs(d) < 1e-6)
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := Distance(51.5074, -0.1278, 48.8566, 2.3522)
	b := Distance(48.8566, 2.3522, 51.5074, -0.1278)
	assert.True(t, math.Abs(a-b) < 1e-9)
}

func TestDistanceKnownValue(t *testing.T) {
	// London to Paris, roughly 343.5 km.
	d := Distance(51.5074, -0.1278, 48.8566, 2.3522)
	assert.True(t, d > 340000 && d < 347000)
}

func TestDistanceEquatorDegree(t *testing.T) {
	d := Distance(0, 0, 0, 1)
	expected := EarthRadiusMeters * math.Pi / 180
	assert.True(t, math.Abs(d-expected) < 1.0)
}

func TestBoundingBoxContainsCenter(t *testing.T) {
	minLat, maxLat, minLon, maxLon := BoundingBox(40.0, -73.0, 5000)
	assert.True(t, minLat < 40.0 && maxLat > 40.0)
	assert.True(t, minLon < -73.0 && maxLon > -73.0)
}

func TestBoundingBoxAtPoleCoversAllLongitudes(t *testing.T) {
	_, _, minLon, maxLon := BoundingBox(89.9999, 0, 1000)
	assert.Equal(t, minLon, -180.0)
	assert.Equal(t, maxLon, 180.0)
}
