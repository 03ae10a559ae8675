package store

import (
	"fmt"
	"time"

	"github.com/sitan2008/spatio/internal/helper"
)

// Kind tags a record with the layer that owns it, so prefix scans can
// distinguish entry types without parsing the key.
type Kind byte

const (
	KindScalar Kind = iota
	KindGeo
	KindTrajectory
)

// Record is the value an engine stores under a key: a payload plus an
// optional absolute expiry and the kind of caller that wrote it.
type Record struct {
	Payload []byte
	Expiry  time.Time // zero value means "never expires"
	Kind    Kind
}

// HasExpiry reports whether r carries an expiry instant.
func (r Record) HasExpiry() bool {
	return !r.Expiry.IsZero()
}

// Expired reports whether r's expiry instant, if any, is at or before now.
func (r Record) Expired(now time.Time) bool {
	return r.HasExpiry() && !r.Expiry.After(now)
}

// encode serializes a Record as [kind][hasExpiry][expiry float64 LE][payload],
// compressing the payload when it is large enough to benefit.
func encodeRecord(r Record, compression CompressionType) ([]byte, error) {
	payload, err := maybeCompress(r.Payload, compression)
	if err != nil {
		return nil, fmt.Errorf("spatio: encode record: %w", err)
	}

	buf := make([]byte, 0, 2+8+len(payload))
	buf = append(buf, byte(r.Kind))

	if r.HasExpiry() {
		buf = append(buf, 1)
		buf = append(buf, helper.Float64ToBytes(float64(r.Expiry.UnixNano())/1e9)...)
	} else {
		buf = append(buf, 0)
		buf = append(buf, helper.Float64ToBytes(0)...)
	}

	buf = append(buf, payload...)
	return buf, nil
}

// decodeRecord inverts encodeRecord.
func decodeRecord(raw []byte) (Record, error) {
	if len(raw) < 10 {
		return Record{}, fmt.Errorf("spatio: record too short (%d bytes)", len(raw))
	}

	kind := Kind(raw[0])
	hasExpiry := raw[1] != 0
	expirySeconds, err := helper.BytesToFloat64(raw[2:10])
	if err != nil {
		return Record{}, fmt.Errorf("spatio: decode record expiry: %w", err)
	}

	payload, err := decompress(raw[10:])
	if err != nil {
		return Record{}, fmt.Errorf("spatio: decode record payload: %w", err)
	}

	rec := Record{Payload: payload, Kind: kind}
	if hasExpiry {
		sec := int64(expirySeconds)
		nsec := int64((expirySeconds - float64(sec)) * 1e9)
		rec.Expiry = time.Unix(sec, nsec).UTC()
	}
	return rec, nil
}
