// Package spatio implements an embedded spatio-temporal database: an
// ordered byte key-value store with optional TTL, layered with a
// geospatial secondary index and a trajectory (point/timestamp series)
// store, all coexisting under a single reader-writer concurrency model.
package spatio

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sitan2008/spatio/internal/logger"
	"github.com/sitan2008/spatio/internal/spatial"
	"github.com/sitan2008/spatio/internal/store"
	"github.com/sitan2008/spatio/internal/trajectory"
)

// Stats is a snapshot of a handle's operation counters.
type Stats struct {
	KeyCount        int64
	OperationsCount int64
	ExpiredCount    int64
}

// Spatio is an open database handle. Exactly one handle owns its storage
// engine, spatial index and trajectory store for its lifetime; closing it
// releases everything and invalidates further use.
type Spatio struct {
	engine     *store.Engine
	spatialIdx *spatial.Index
	trajStore  *trajectory.Store
	instanceID uuid.UUID
	cfg        Config
}

// Memory opens an in-memory handle with the default configuration.
func Memory() (*Spatio, error) {
	return MemoryWithConfig(NewConfig())
}

// MemoryWithConfig opens an in-memory handle with cfg.
func MemoryWithConfig(cfg Config) (*Spatio, error) {
	engine, err := store.Memory(store.Options{Compression: cfg.compressionOrDefault()})
	if err != nil {
		return nil, fmt.Errorf("spatio: %w", err)
	}
	return newHandle(engine, cfg), nil
}

// Open opens a durably-backed handle at path with the default
// configuration.
func Open(path string) (*Spatio, error) {
	return OpenWithConfig(path, NewConfig())
}

// OpenWithConfig opens a durably-backed handle at path with cfg. This
// supplements the literal API surface (which lists only Open and
// MemoryWithConfig) so an on-disk handle can also pick a non-default
// geohash precision.
func OpenWithConfig(path string, cfg Config) (*Spatio, error) {
	engine, err := store.Open(path, store.Options{
		Compression: cfg.compressionOrDefault(),
		SyncWrites:  cfg.SyncOnWrite(),
		Path:        path,
	})
	if err != nil {
		return nil, fmt.Errorf("spatio: %w", ErrIOFailure)
	}
	return newHandle(engine, cfg), nil
}

func newHandle(engine *store.Engine, cfg Config) *Spatio {
	id := uuid.New()
	log := logger.Logger.With().Str("instance", id.String()).Logger()
	log.Debug().Int("geohash_precision", cfg.GeohashPrecision()).Msg("handle opened")

	return &Spatio{
		engine:     engine,
		spatialIdx: spatial.New(engine, cfg.GeohashPrecision()),
		trajStore:  trajectory.New(engine),
		instanceID: id,
		cfg:        cfg,
	}
}

func normalizeBytes(key any) ([]byte, error) {
	switch k := key.(type) {
	case []byte:
		return k, nil
	case string:
		return []byte(k), nil
	default:
		return nil, ErrInvalidArgument
	}
}

// Insert writes value under key, optionally expiring per opts.
func (s *Spatio) Insert(key, value any, opts ...SetOptions) error {
	keyBytes, err := normalizeBytes(key)
	if err != nil {
		return err
	}
	valBytes, err := normalizeBytes(value)
	if err != nil {
		return err
	}

	var resolved SetOptions
	if len(opts) > 0 {
		resolved = opts[0]
	}

	rec := store.Record{
		Payload: valBytes,
		Kind:    store.KindScalar,
		Expiry:  resolved.resolve(time.Now()),
	}
	if err := s.engine.Insert(keyBytes, rec); err != nil {
		return s.wrapEngineErr(err)
	}
	return s.maybeSyncOnWrite()
}

// Get returns the value for key, or (nil, false) if it does not exist or
// has expired.
func (s *Spatio) Get(key any) ([]byte, bool, error) {
	keyBytes, err := normalizeBytes(key)
	if err != nil {
		return nil, false, err
	}
	val, _, found, err := s.engine.Get(keyBytes)
	if err != nil {
		return nil, false, s.wrapEngineErr(err)
	}
	return val, found, nil
}

// Delete removes key and returns its prior value, if any.
func (s *Spatio) Delete(key any) ([]byte, bool, error) {
	keyBytes, err := normalizeBytes(key)
	if err != nil {
		return nil, false, err
	}
	val, found, err := s.engine.Delete(keyBytes)
	if err != nil {
		return nil, false, s.wrapEngineErr(err)
	}
	return val, found, nil
}

// InsertPoint tags payload with point under prefix's namespace.
func (s *Spatio) InsertPoint(prefix string, point Point, payload any, opts ...SetOptions) error {
	payloadBytes, err := normalizeBytes(payload)
	if err != nil {
		return err
	}
	var resolved SetOptions
	if len(opts) > 0 {
		resolved = opts[0]
	}
	if err := s.spatialIdx.InsertPoint(prefix, point.lat, point.lon, payloadBytes, resolved.resolve(time.Now())); err != nil {
		return s.wrapEngineErr(err)
	}
	return s.maybeSyncOnWrite()
}

// NearbyResult is one match from FindNearby.
type NearbyResult struct {
	Point    Point
	Payload  []byte
	Distance float64
}

// FindNearby returns points within radiusM of center, ascending by
// distance, capped at limit.
func (s *Spatio) FindNearby(prefix string, center Point, radiusM float64, limit int) ([]NearbyResult, error) {
	results, err := s.spatialIdx.FindNearby(prefix, center.lat, center.lon, radiusM, limit)
	if err != nil {
		return nil, s.wrapEngineErr(err)
	}
	out := make([]NearbyResult, len(results))
	for i, r := range results {
		out[i] = NearbyResult{Point: Point{lat: r.Point.Lat, lon: r.Point.Lon}, Payload: r.Payload, Distance: r.Distance}
	}
	return out, nil
}

// CountWithinDistance counts points within radiusM of center.
func (s *Spatio) CountWithinDistance(prefix string, center Point, radiusM float64) (int, error) {
	n, err := s.spatialIdx.CountWithinDistance(prefix, center.lat, center.lon, radiusM)
	if err != nil {
		return 0, s.wrapEngineErr(err)
	}
	return n, nil
}

// ContainsPoint reports whether any point lies within radiusM of center.
func (s *Spatio) ContainsPoint(prefix string, center Point, radiusM float64) (bool, error) {
	ok, err := s.spatialIdx.ContainsPoint(prefix, center.lat, center.lon, radiusM)
	if err != nil {
		return false, s.wrapEngineErr(err)
	}
	return ok, nil
}

// BoundsResult is one match from FindWithinBounds.
type BoundsResult struct {
	Point   Point
	Payload []byte
}

// FindWithinBounds returns up to limit points inside the rectangle
// [minLat,maxLat] x [minLon,maxLon] (the longitude range may cross the
// antimeridian if minLon > maxLon).
func (s *Spatio) FindWithinBounds(prefix string, minLat, minLon, maxLat, maxLon float64, limit int) ([]BoundsResult, error) {
	results, err := s.spatialIdx.FindWithinBounds(prefix, minLat, minLon, maxLat, maxLon, limit)
	if err != nil {
		return nil, s.wrapEngineErr(err)
	}
	out := make([]BoundsResult, len(results))
	for i, r := range results {
		out[i] = BoundsResult{Point: Point{lat: r.Point.Lat, lon: r.Point.Lon}, Payload: r.Payload}
	}
	return out, nil
}

// IntersectsBounds is the short-circuiting boolean form of FindWithinBounds.
func (s *Spatio) IntersectsBounds(prefix string, minLat, minLon, maxLat, maxLon float64) (bool, error) {
	ok, err := s.spatialIdx.IntersectsBounds(prefix, minLat, minLon, maxLat, maxLon)
	if err != nil {
		return false, s.wrapEngineErr(err)
	}
	return ok, nil
}

// TrajectoryItem is one (point, timestamp) observation.
type TrajectoryItem struct {
	Point     Point
	Timestamp float64
}

// InsertTrajectory writes items under seriesID. An empty items slice is a
// no-op that still counts as an accepted write.
func (s *Spatio) InsertTrajectory(seriesID string, items []TrajectoryItem) error {
	converted := make([]trajectory.Item, len(items))
	for i, it := range items {
		converted[i] = trajectory.Item{Lat: it.Point.lat, Lon: it.Point.lon, Timestamp: it.Timestamp}
	}
	if err := s.trajStore.Insert(seriesID, converted); err != nil {
		return s.wrapEngineErr(err)
	}
	return s.maybeSyncOnWrite()
}

// QueryTrajectory returns items under seriesID with tStart <= timestamp <=
// tEnd, in chronological order.
func (s *Spatio) QueryTrajectory(seriesID string, tStart, tEnd float64) ([]TrajectoryItem, error) {
	results, err := s.trajStore.Query(seriesID, tStart, tEnd)
	if err != nil {
		return nil, s.wrapEngineErr(err)
	}
	out := make([]TrajectoryItem, len(results))
	for i, r := range results {
		out[i] = TrajectoryItem{Point: Point{lat: r.Lat, lon: r.Lon}, Timestamp: r.Timestamp}
	}
	return out, nil
}

// Stats returns a snapshot of the handle's operation counters.
func (s *Spatio) Stats() Stats {
	keyCount, ops, expired := s.engine.Stats()
	return Stats{KeyCount: keyCount, OperationsCount: ops, ExpiredCount: expired}
}

// Sync flushes any pending durable state; a no-op for in-memory handles.
func (s *Spatio) Sync() error {
	if err := s.engine.Sync(); err != nil {
		return s.wrapEngineErr(err)
	}
	return nil
}

// Close releases all resources held by the handle. Idempotent.
func (s *Spatio) Close() error {
	err := s.engine.Close()
	logger.Logger.Debug().Str("instance", s.instanceID.String()).Msg("handle closed")
	if err != nil {
		return s.wrapEngineErr(err)
	}
	return nil
}

func (s *Spatio) maybeSyncOnWrite() error {
	if !s.cfg.SyncOnWrite() {
		return nil
	}
	return s.Sync()
}

// wrapEngineErr maps an internal error into the public taxonomy, leaving
// our own sentinels untouched (so callers can match with errors.Is) and
// wrapping anything else — a Badger failure surfacing through the engine —
// as ErrIOFailure.
func (s *Spatio) wrapEngineErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDatabaseClosed) || errors.Is(err, ErrInvalidCoordinate) ||
		errors.Is(err, ErrInvalidConfiguration) || errors.Is(err, ErrInvalidTrajectory) ||
		errors.Is(err, ErrInvalidArgument) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrIOFailure, err)
}
