// Package trajectory stores ordered (point, timestamp) series under a
// caller-chosen series id, keyed so that a time-window query reduces to a
// bounded key-range scan.
package trajectory

import (
	"fmt"
	"math"

	"github.com/sitan2008/spatio/internal/errs"
	"github.com/sitan2008/spatio/internal/helper"
	"github.com/sitan2008/spatio/internal/store"
)

// tsPadWidth is wide enough for milliseconds since epoch for millennia to
// come; padding to a fixed width makes lexical order equal chronological
// order.
const tsPadWidth = 20

// Item is one (point, timestamp) observation, timestamp in seconds since
// the Unix epoch.
type Item struct {
	Lat, Lon  float64
	Timestamp float64
}

// Store is a trajectory view over a storage engine.
type Store struct {
	engine *store.Engine
}

// New returns a Store backed by engine.
func New(engine *store.Engine) *Store {
	return &Store{engine: engine}
}

func paddedKey(seriesID string, timestamp float64) []byte {
	millis := int64(math.Floor(timestamp * 1000))
	return []byte(fmt.Sprintf("%s:traj:%0*d", seriesID, tsPadWidth, millis))
}

func encodePayload(lat, lon, timestamp float64) []byte {
	buf := make([]byte, 0, 24)
	buf = append(buf, helper.Float64ToBytes(lat)...)
	buf = append(buf, helper.Float64ToBytes(lon)...)
	buf = append(buf, helper.Float64ToBytes(timestamp)...)
	return buf
}

func decodePayload(raw []byte) (lat, lon, timestamp float64, err error) {
	if len(raw) != 24 {
		return 0, 0, 0, fmt.Errorf("spatio: trajectory payload must be 24 bytes, got %d", len(raw))
	}
	lat, err = helper.BytesToFloat64(raw[0:8])
	if err != nil {
		return 0, 0, 0, err
	}
	lon, err = helper.BytesToFloat64(raw[8:16])
	if err != nil {
		return 0, 0, 0, err
	}
	timestamp, err = helper.BytesToFloat64(raw[16:24])
	if err != nil {
		return 0, 0, 0, err
	}
	return lat, lon, timestamp, nil
}

func validateItem(it Item) error {
	if it.Lat < -90 || it.Lat > 90 || it.Lon < -180 || it.Lon > 180 {
		return errs.ErrInvalidCoordinate
	}
	if math.IsNaN(it.Timestamp) || math.IsInf(it.Timestamp, 0) || it.Timestamp < 0 {
		return errs.ErrInvalidTrajectory
	}
	return nil
}

// Insert validates and writes items under seriesID. On any malformed item
// the whole call fails and nothing is written: ErrInvalidCoordinate for an
// out-of-range lat/lon, ErrInvalidTrajectory for a negative or non-finite
// timestamp. An
// empty items slice is accepted as a no-op that still counts as an
// accepted write operation.
func (s *Store) Insert(seriesID string, items []Item) error {
	for _, it := range items {
		if err := validateItem(it); err != nil {
			return err
		}
	}

	if len(items) == 0 {
		s.engine.IncrementOperations()
		return nil
	}

	for _, it := range items {
		key := paddedKey(seriesID, it.Timestamp)
		rec := store.Record{
			Payload: encodePayload(it.Lat, it.Lon, it.Timestamp),
			Kind:    store.KindTrajectory,
		}
		if err := s.engine.Insert(key, rec); err != nil {
			return fmt.Errorf("spatio: insert_trajectory: %w", err)
		}
	}
	return nil
}

// Query returns every item under seriesID with tStart <= timestamp <= tEnd,
// in ascending (chronological) order.
func (s *Store) Query(seriesID string, tStart, tEnd float64) ([]Item, error) {
	prefix := []byte(seriesID + ":traj:")
	entries, err := s.engine.ScanPrefix(prefix)
	if err != nil {
		return nil, fmt.Errorf("spatio: query_trajectory: %w", err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		lat, lon, ts, err := decodePayload(entry.Value)
		if err != nil {
			return nil, err
		}
		if ts < tStart || ts > tEnd {
			continue
		}
		items = append(items, Item{Lat: lat, Lon: lon, Timestamp: ts})
	}
	return items, nil
}
