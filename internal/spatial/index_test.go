package spatial

import (
	"testing"
	"time"

	"github.com/zeebo/assert"

	"github.com/sitan2008/spatio/internal/store"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	e, err := store.Memory(store.Options{Compression: store.CompressionNone})
	assert.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return New(e, 8)
}

func TestInsertAndFindNearby(t *testing.T) {
	idx := newTestIndex(t)

	nyc := [2]float64{40.7128, -74.0060}
	ldn := [2]float64{51.5074, -0.1278}

	assert.NoError(t, idx.InsertPoint("cities", nyc[0], nyc[1], []byte("NYC"), time.Time{}))
	assert.NoError(t, idx.InsertPoint("cities", ldn[0], ldn[1], []byte("LDN"), time.Time{}))

	results, err := idx.FindNearby("cities", nyc[0], nyc[1], 6_000_000, 10)
	assert.NoError(t, err)
	assert.Equal(t, len(results), 2)

	assert.Equal(t, string(results[0].Payload), "NYC")
	assert.True(t, results[0].Distance < 1.0)

	assert.Equal(t, string(results[1].Payload), "LDN")
	assert.True(t, results[1].Distance > 5_500_000 && results[1].Distance < 5_600_000)
}

func TestFindNearbyRespectsLimit(t *testing.T) {
	idx := newTestIndex(t)
	for i := 0; i < 5; i++ {
		assert.NoError(t, idx.InsertPoint("p", 10.0, 10.0, []byte{byte(i)}, time.Time{}))
	}
	results, err := idx.FindNearby("p", 10.0, 10.0, 1000, 2)
	assert.NoError(t, err)
	assert.Equal(t, len(results), 2)
}

func TestFindNearbyZeroLimitIsEmpty(t *testing.T) {
	idx := newTestIndex(t)
	assert.NoError(t, idx.InsertPoint("p", 1.0, 1.0, []byte("x"), time.Time{}))
	results, err := idx.FindNearby("p", 1.0, 1.0, 1000, 0)
	assert.NoError(t, err)
	assert.Equal(t, len(results), 0)
}

func TestFindNearbyRejectsInvalidCoordinate(t *testing.T) {
	idx := newTestIndex(t)
	_, err := idx.FindNearby("p", 91.0, 0, 10, 1)
	assert.Error(t, err)
}

func TestFindNearbyRejectsNegativeRadius(t *testing.T) {
	idx := newTestIndex(t)
	_, err := idx.FindNearby("p", 0, 0, -1, 1)
	assert.Error(t, err)
}

func TestCountWithinDistance(t *testing.T) {
	idx := newTestIndex(t)
	assert.NoError(t, idx.InsertPoint("p", 10.0, 10.0, []byte("a"), time.Time{}))
	assert.NoError(t, idx.InsertPoint("p", 10.0, 10.0, []byte("b"), time.Time{}))
	assert.NoError(t, idx.InsertPoint("p", 40.0, 40.0, []byte("c"), time.Time{}))

	count, err := idx.CountWithinDistance("p", 10.0, 10.0, 1000)
	assert.NoError(t, err)
	assert.Equal(t, count, 2)
}

func TestContainsPoint(t *testing.T) {
	idx := newTestIndex(t)
	assert.NoError(t, idx.InsertPoint("p", 10.0, 10.0, []byte("a"), time.Time{}))

	found, err := idx.ContainsPoint("p", 10.0, 10.0, 1000)
	assert.NoError(t, err)
	assert.True(t, found)

	found, err = idx.ContainsPoint("p", 40.0, 40.0, 1000)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestFindWithinBounds(t *testing.T) {
	idx := newTestIndex(t)
	assert.NoError(t, idx.InsertPoint("cities", 40.7128, -74.0060, []byte("NYC"), time.Time{}))
	assert.NoError(t, idx.InsertPoint("cities", 51.5074, -0.1278, []byte("LDN"), time.Time{}))

	results, err := idx.FindWithinBounds("cities", 40.0, -10.0, 60.0, 10.0, 10)
	assert.NoError(t, err)
	assert.Equal(t, len(results), 1)
	assert.Equal(t, string(results[0].Payload), "LDN")
}

func TestIntersectsBounds(t *testing.T) {
	idx := newTestIndex(t)
	assert.NoError(t, idx.InsertPoint("cities", 40.7128, -74.0060, []byte("NYC"), time.Time{}))
	assert.NoError(t, idx.InsertPoint("cities", 51.5074, -0.1278, []byte("LDN"), time.Time{}))

	ok, err := idx.IntersectsBounds("cities", 40.0, -10.0, 60.0, 10.0)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = idx.IntersectsBounds("cities", -10.0, -10.0, -5.0, -5.0)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestFindWithinBoundsRejectsInvertedLat(t *testing.T) {
	idx := newTestIndex(t)
	_, err := idx.FindWithinBounds("p", 10, 0, 5, 0, 10)
	assert.Error(t, err)
}

func TestFindWithinBoundsAcrossAntimeridian(t *testing.T) {
	idx := newTestIndex(t)
	assert.NoError(t, idx.InsertPoint("p", 0.0, 179.5, []byte("fiji"), time.Time{}))
	assert.NoError(t, idx.InsertPoint("p", 0.0, -179.5, []byte("tonga"), time.Time{}))
	assert.NoError(t, idx.InsertPoint("p", 0.0, 0.0, []byte("greenwich"), time.Time{}))

	results, err := idx.FindWithinBounds("p", -1.0, 179.0, 1.0, -179.0, 10)
	assert.NoError(t, err)
	assert.Equal(t, len(results), 2)

	names := map[string]bool{}
	for _, r := range results {
		names[string(r.Payload)] = true
	}
	assert.True(t, names["fiji"])
	assert.True(t, names["tonga"])
	assert.False(t, names["greenwich"])
}

func TestReinsertCreatesSecondEntry(t *testing.T) {
	idx := newTestIndex(t)
	assert.NoError(t, idx.InsertPoint("p", 1.0, 1.0, []byte("first"), time.Time{}))
	assert.NoError(t, idx.InsertPoint("p", 1.0, 1.0, []byte("second"), time.Time{}))

	results, err := idx.FindNearby("p", 1.0, 1.0, 10, 10)
	assert.NoError(t, err)
	assert.Equal(t, len(results), 2)
}
