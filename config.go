package spatio

import "github.com/sitan2008/spatio/internal/store"

// DefaultGeohashPrecision is the geohash precision used when a Config is
// not given an explicit one.
const DefaultGeohashPrecision = 8

// Config is an immutable configuration snapshot taken at open time;
// changing it afterward has no effect on an already-open handle.
type Config struct {
	geohashPrecision int
	compression      store.CompressionType
	syncOnWrite      bool
}

// NewConfig returns the default configuration: geohash precision 8, no
// payload compression, sync-on-write disabled.
func NewConfig() Config {
	return Config{geohashPrecision: DefaultGeohashPrecision, compression: store.CompressionNone}
}

// WithSyncOnWrite returns a copy of c that flushes to durable storage on
// every write when on, instead of only on an explicit Sync call.
func (c Config) WithSyncOnWrite(on bool) Config {
	c.syncOnWrite = on
	return c
}

// SyncOnWrite reports whether c has sync-on-write enabled.
func (c Config) SyncOnWrite() bool {
	return c.syncOnWrite
}

// WithGeohashPrecision returns a copy of c with the geohash precision set
// to p, which must be in [1, 12].
func (c Config) WithGeohashPrecision(p int) (Config, error) {
	if p < 1 || p > 12 {
		return c, ErrInvalidConfiguration
	}
	c.geohashPrecision = p
	return c, nil
}

// GeohashPrecision returns the configured geohash precision.
func (c Config) GeohashPrecision() int {
	if c.geohashPrecision == 0 {
		return DefaultGeohashPrecision
	}
	return c.geohashPrecision
}

// WithCompression returns a copy of c using the given payload compression
// algorithm for records above the compression size threshold.
func (c Config) WithCompression(kind store.CompressionType) Config {
	c.compression = kind
	return c
}

func (c Config) compressionOrDefault() store.CompressionType {
	if c.compression == "" {
		return store.CompressionNone
	}
	return c.compression
}
