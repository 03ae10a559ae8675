package trajectory

import (
	"testing"

	"github.com/zeebo/assert"

	"github.com/sitan2008/spatio/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	e, err := store.Memory(store.Options{Compression: store.CompressionNone})
	assert.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return New(e)
}

func TestInsertAndQueryChronologicalOrder(t *testing.T) {
	s := newTestStore(t)

	items := []Item{
		{Lat: 40.7172, Lon: -74.0020, Timestamp: 1_640_995_320},
		{Lat: 40.7128, Lon: -74.0060, Timestamp: 1_640_995_200},
		{Lat: 40.7150, Lon: -74.0040, Timestamp: 1_640_995_260},
	}
	assert.NoError(t, s.Insert("v1", items))

	results, err := s.Query("v1", 1_640_995_200, 1_640_995_320)
	assert.NoError(t, err)
	assert.Equal(t, len(results), 3)
	assert.Equal(t, results[0].Timestamp, 1_640_995_200.0)
	assert.Equal(t, results[1].Timestamp, 1_640_995_260.0)
	assert.Equal(t, results[2].Timestamp, 1_640_995_320.0)
}

func TestQueryWindowExcludesOutOfRange(t *testing.T) {
	s := newTestStore(t)
	items := []Item{
		{Lat: 1, Lon: 1, Timestamp: 100},
		{Lat: 2, Lon: 2, Timestamp: 200},
		{Lat: 3, Lon: 3, Timestamp: 300},
	}
	assert.NoError(t, s.Insert("v2", items))

	results, err := s.Query("v2", 150, 250)
	assert.NoError(t, err)
	assert.Equal(t, len(results), 1)
	assert.Equal(t, results[0].Timestamp, 200.0)
}

func TestInsertRejectsMalformedItem(t *testing.T) {
	s := newTestStore(t)
	items := []Item{{Lat: 200, Lon: 0, Timestamp: 1}}
	err := s.Insert("v3", items)
	assert.Error(t, err)

	results, err := s.Query("v3", 0, 1000)
	assert.NoError(t, err)
	assert.Equal(t, len(results), 0)
}

func TestInsertRejectsNegativeTimestamp(t *testing.T) {
	s := newTestStore(t)
	err := s.Insert("v4", []Item{{Lat: 0, Lon: 0, Timestamp: -1}})
	assert.Error(t, err)
}

func TestEmptyItemsIsNoOpButCountsAsOperation(t *testing.T) {
	s := newTestStore(t)
	err := s.Insert("v5", nil)
	assert.NoError(t, err)

	_, ops, _ := s.engine.Stats()
	assert.Equal(t, ops, int64(1))
}

func TestSeparateSeriesAreIsolated(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Insert("a", []Item{{Lat: 1, Lon: 1, Timestamp: 10}}))
	assert.NoError(t, s.Insert("b", []Item{{Lat: 2, Lon: 2, Timestamp: 10}}))

	results, err := s.Query("a", 0, 100)
	assert.NoError(t, err)
	assert.Equal(t, len(results), 1)
	assert.Equal(t, results[0].Lat, 1.0)
}
