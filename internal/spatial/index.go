// Package spatial implements the geospatial secondary index: geo-tagged
// points are written into the storage engine under composite keys of the
// form "<prefix>:geo:<geohash>:<uid>" so that a prefix scan over a geohash
// cell yields every point stored in it.
package spatial

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sitan2008/spatio/internal/errs"
	"github.com/sitan2008/spatio/internal/geo"
	"github.com/sitan2008/spatio/internal/geohash"
	"github.com/sitan2008/spatio/internal/helper"
	"github.com/sitan2008/spatio/internal/store"
)

// maxRing bounds the neighbour-ring expansion in find_nearby; beyond it the
// search falls back to a coarser geohash prefix instead of widening further.
const maxRing = 8

// maxBoundsCells caps how many geohash cells a bounds query's cover descent
// will subdivide down to. Once the frontier at a given depth would exceed
// it, the remaining intersecting cells at that (coarser) depth are scanned
// as-is instead of being subdivided further: scan_prefix still matches every
// finer key underneath them, so this only affects how many separate scans
// are issued, not correctness.
const maxBoundsCells = 4096

// Point is a lightweight lat/lon pair used at the index boundary; the root
// package's Point value is converted to and from this type.
type Point struct {
	Lat, Lon float64
}

// Result is one match from a proximity or bounds query.
type Result struct {
	Point    Point
	Payload  []byte
	Distance float64 // meters; 0 for bounds queries that don't compute it
	uid      uint64
}

// Index is a named (by prefix) geospatial view over a storage engine.
type Index struct {
	engine    *store.Engine
	precision int
}

// New returns an Index backed by engine, encoding points at the given
// geohash precision.
func New(engine *store.Engine, precision int) *Index {
	return &Index{engine: engine, precision: precision}
}

func validateCoordinate(lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return errs.ErrInvalidCoordinate
	}
	return nil
}

func geoKeyPrefix(prefix, cell string) []byte {
	return []byte(fmt.Sprintf("%s:geo:%s", prefix, cell))
}

func geoKey(prefix, gh string, uid uint64) []byte {
	return []byte(fmt.Sprintf("%s:geo:%s:%020d", prefix, gh, uid))
}

func encodeGeoPayload(lat, lon float64, payload []byte) []byte {
	buf := make([]byte, 0, 16+len(payload))
	buf = append(buf, helper.Float64ToBytes(lat)...)
	buf = append(buf, helper.Float64ToBytes(lon)...)
	buf = append(buf, payload...)
	return buf
}

func decodeGeoPayload(raw []byte) (lat, lon float64, payload []byte, err error) {
	if len(raw) < 16 {
		return 0, 0, nil, fmt.Errorf("spatio: geo payload too short (%d bytes)", len(raw))
	}
	lat, err = helper.BytesToFloat64(raw[0:8])
	if err != nil {
		return 0, 0, nil, err
	}
	lon, err = helper.BytesToFloat64(raw[8:16])
	if err != nil {
		return 0, 0, nil, err
	}
	return lat, lon, raw[16:], nil
}

// parseUID recovers the uid suffix of a geo key, used as the insertion-order
// tiebreak for find_nearby results.
func parseUID(key []byte) uint64 {
	s := string(key)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			var uid uint64
			_, _ = fmt.Sscanf(s[i+1:], "%d", &uid)
			return uid
		}
	}
	return 0
}

// InsertPoint writes payload under point, tagged with a fresh uid. Per the
// spec's resolution of re-insertion semantics: there is no update-in-place,
// a second insert_point call for the "same" caller point creates a second
// index entry.
func (idx *Index) InsertPoint(prefix string, lat, lon float64, payload []byte, expiry time.Time) error {
	if err := validateCoordinate(lat, lon); err != nil {
		return err
	}

	gh, err := geohash.Encode(lat, lon, idx.precision)
	if err != nil {
		return fmt.Errorf("spatio: insert_point: %w", err)
	}

	uid := idx.engine.NextUID()
	key := geoKey(prefix, gh, uid)
	rec := store.Record{
		Payload: encodeGeoPayload(lat, lon, payload),
		Kind:    store.KindGeo,
		Expiry:  expiry,
	}
	return idx.engine.Insert(key, rec)
}

// cellWidthMeters estimates the smaller of a geohash cell's lat/lon extents
// in meters, used to decide how many neighbour rings cover a given radius.
func cellWidthMeters(cell string) float64 {
	c, err := geohash.Decode(cell)
	if err != nil {
		return 1
	}
	metersPerDegree := geo.EarthRadiusMeters * math.Pi / 180
	latWidth := 2 * c.HalfLatErr * metersPerDegree
	lonWidth := 2 * c.HalfLonErr * metersPerDegree * math.Cos(c.CenterLat*math.Pi/180)
	if lonWidth <= 0 || lonWidth > latWidth {
		return latWidth
	}
	return lonWidth
}

// candidateCells returns the set of geohash cell prefixes to scan to cover
// radiusM around (lat, lon): it expands neighbour rings up to maxRing, and
// if that is still insufficient for very large radii, truncates the
// geohash by one character (a coarser, ~32x larger cell) and restarts.
func candidateCells(lat, lon float64, precision int, radiusM float64) ([]string, error) {
	gh, err := geohash.Encode(lat, lon, precision)
	if err != nil {
		return nil, err
	}

	for {
		visited := map[string]bool{gh: true}
		frontier := []string{gh}
		width := cellWidthMeters(gh)

		ring := 0
		for ring < maxRing && float64(ring)*width < radiusM {
			next := make([]string, 0, len(frontier)*8)
			for _, c := range frontier {
				ns, err := geohash.Neighbours(c)
				if err != nil {
					continue
				}
				for _, n := range ns {
					if !visited[n] {
						visited[n] = true
						next = append(next, n)
					}
				}
			}
			if len(next) == 0 {
				break
			}
			frontier = next
			ring++
		}

		if float64(ring)*width >= radiusM || len(gh) <= 1 {
			cells := make([]string, 0, len(visited))
			for c := range visited {
				cells = append(cells, c)
			}
			return cells, nil
		}
		gh = gh[:len(gh)-1]
	}
}

// scanCandidates runs scan_prefix over every candidate cell under prefix and
// decodes each live entry into a Result (distance left unset).
func (idx *Index) scanCandidates(prefix string, cells []string) ([]Result, error) {
	var out []Result
	for _, cell := range cells {
		entries, err := idx.engine.ScanPrefix(geoKeyPrefix(prefix, cell))
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			lat, lon, payload, err := decodeGeoPayload(entry.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, Result{
				Point:   Point{Lat: lat, Lon: lon},
				Payload: payload,
				uid:     parseUID(entry.Key),
			})
		}
	}
	return out, nil
}

// FindNearby returns points within radiusM of center, ordered by ascending
// distance (ties broken by ascending uid / insertion order), capped at
// limit entries.
func (idx *Index) FindNearby(prefix string, centerLat, centerLon, radiusM float64, limit int) ([]Result, error) {
	if err := validateCoordinate(centerLat, centerLon); err != nil {
		return nil, err
	}
	if radiusM < 0 || limit < 0 {
		return nil, errs.ErrInvalidArgument
	}
	if limit == 0 {
		return nil, nil
	}

	cells, err := candidateCells(centerLat, centerLon, idx.precision, radiusM)
	if err != nil {
		return nil, err
	}

	candidates, err := idx.scanCandidates(prefix, cells)
	if err != nil {
		return nil, err
	}

	matches := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		d := geo.Distance(centerLat, centerLon, c.Point.Lat, c.Point.Lon)
		if d <= radiusM {
			c.Distance = d
			matches = append(matches, c)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].uid < matches[j].uid
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// CountWithinDistance counts points within radiusM of center without
// sorting or returning payloads.
func (idx *Index) CountWithinDistance(prefix string, centerLat, centerLon, radiusM float64) (int, error) {
	if err := validateCoordinate(centerLat, centerLon); err != nil {
		return 0, err
	}
	if radiusM < 0 {
		return 0, errs.ErrInvalidArgument
	}

	cells, err := candidateCells(centerLat, centerLon, idx.precision, radiusM)
	if err != nil {
		return 0, err
	}
	candidates, err := idx.scanCandidates(prefix, cells)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range candidates {
		if geo.Distance(centerLat, centerLon, c.Point.Lat, c.Point.Lon) <= radiusM {
			count++
		}
	}
	return count, nil
}

// ContainsPoint reports whether any point lies within radiusM of center,
// short-circuiting on the first match.
func (idx *Index) ContainsPoint(prefix string, centerLat, centerLon, radiusM float64) (bool, error) {
	if err := validateCoordinate(centerLat, centerLon); err != nil {
		return false, err
	}
	if radiusM < 0 {
		return false, errs.ErrInvalidArgument
	}

	cells, err := candidateCells(centerLat, centerLon, idx.precision, radiusM)
	if err != nil {
		return false, err
	}
	for _, cell := range cells {
		entries, err := idx.engine.ScanPrefix(geoKeyPrefix(prefix, cell))
		if err != nil {
			return false, err
		}
		for _, entry := range entries {
			lat, lon, _, err := decodeGeoPayload(entry.Value)
			if err != nil {
				return false, err
			}
			if geo.Distance(centerLat, centerLon, lat, lon) <= radiusM {
				return true, nil
			}
		}
	}
	return false, nil
}

// boundsCells returns the geohash cell prefixes to scan for a bounds query:
// a proper cover of the rectangle built by descending the geohash cell tree
// from its 32 top-level cells, recursing into any cell that intersects the
// rectangle and stopping either at the index's configured precision or once
// maxBoundsCells would be exceeded (whichever comes first). A rectangle
// crossing the antimeridian (minLon > maxLon) is covered by the same single
// descent: cellIntersectsBounds treats its longitude range as
// [minLon,180] U [-180,maxLon], so no cell is returned twice.
func boundsCells(minLat, minLon, maxLat, maxLon float64, precision int) ([]string, error) {
	return boundsCellsRange(minLat, minLon, maxLat, maxLon, precision)
}

// boundsCellsRange performs the cover descent for boundsCells; the
// longitude range may cross the antimeridian (minLon > maxLon).
func boundsCellsRange(minLat, minLon, maxLat, maxLon float64, precision int) ([]string, error) {
	frontier := make([]string, 0, len(geohash.Alphabet))
	for i := 0; i < len(geohash.Alphabet); i++ {
		frontier = append(frontier, string(geohash.Alphabet[i]))
	}

	var cells []string
	for depth := 1; len(frontier) > 0; depth++ {
		atCap := len(cells)+len(frontier) >= maxBoundsCells
		var next []string
		for _, cell := range frontier {
			if !cellIntersectsBounds(cell, minLat, minLon, maxLat, maxLon) {
				continue
			}
			if depth >= precision || atCap {
				cells = append(cells, cell)
				continue
			}
			for i := 0; i < len(geohash.Alphabet); i++ {
				next = append(next, cell+string(geohash.Alphabet[i]))
			}
		}
		frontier = next
	}
	return cells, nil
}

func cellIntersectsBounds(cell string, minLat, minLon, maxLat, maxLon float64) bool {
	c, err := geohash.Decode(cell)
	if err != nil {
		return false
	}
	if c.MaxLat < minLat || c.MinLat > maxLat {
		return false
	}
	if minLon <= maxLon {
		return c.MaxLon >= minLon && c.MinLon <= maxLon
	}
	// antimeridian-crossing query rectangle: [minLon,180] U [-180,maxLon]
	return (c.MaxLon >= minLon || c.MinLon <= maxLon)
}

func pointInBounds(lat, lon, minLat, minLon, maxLat, maxLon float64) bool {
	if lat < minLat || lat > maxLat {
		return false
	}
	if minLon <= maxLon {
		return lon >= minLon && lon <= maxLon
	}
	return lon >= minLon || lon <= maxLon
}

// FindWithinBounds returns up to limit points inside the query rectangle.
// Ordering is deterministic (ascending key order from the underlying
// scans) but otherwise unspecified, per the operation's contract.
func (idx *Index) FindWithinBounds(prefix string, minLat, minLon, maxLat, maxLon float64, limit int) ([]Result, error) {
	if minLat > maxLat {
		return nil, errs.ErrInvalidArgument
	}
	if limit < 0 {
		return nil, errs.ErrInvalidArgument
	}
	if limit == 0 {
		return nil, nil
	}

	cells, err := boundsCells(minLat, minLon, maxLat, maxLon, idx.precision)
	if err != nil {
		return nil, err
	}

	var matches []Result
	for _, cell := range cells {
		if !cellIntersectsBounds(cell, minLat, minLon, maxLat, maxLon) {
			continue
		}
		entries, err := idx.engine.ScanPrefix(geoKeyPrefix(prefix, cell))
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			lat, lon, payload, err := decodeGeoPayload(entry.Value)
			if err != nil {
				return nil, err
			}
			if !pointInBounds(lat, lon, minLat, minLon, maxLat, maxLon) {
				continue
			}
			matches = append(matches, Result{
				Point:   Point{Lat: lat, Lon: lon},
				Payload: payload,
				uid:     parseUID(entry.Key),
			})
			if len(matches) >= limit {
				return matches, nil
			}
		}
	}
	return matches, nil
}

// IntersectsBounds is the short-circuiting boolean form of FindWithinBounds.
func (idx *Index) IntersectsBounds(prefix string, minLat, minLon, maxLat, maxLon float64) (bool, error) {
	if minLat > maxLat {
		return false, errs.ErrInvalidArgument
	}

	cells, err := boundsCells(minLat, minLon, maxLat, maxLon, idx.precision)
	if err != nil {
		return false, err
	}
	for _, cell := range cells {
		if !cellIntersectsBounds(cell, minLat, minLon, maxLat, maxLon) {
			continue
		}
		entries, err := idx.engine.ScanPrefix(geoKeyPrefix(prefix, cell))
		if err != nil {
			return false, err
		}
		for _, entry := range entries {
			lat, lon, _, err := decodeGeoPayload(entry.Value)
			if err != nil {
				return false, err
			}
			if pointInBounds(lat, lon, minLat, minLon, maxLat, maxLon) {
				return true, nil
			}
		}
	}
	return false, nil
}
