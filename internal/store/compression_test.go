package store

import (
	"bytes"
	"strings"
	"testing"

	"github.com/zeebo/assert"
)

func TestMaybeCompressBelowThresholdIsUnchanged(t *testing.T) {
	data := []byte("short")
	out, err := maybeCompress(data, CompressionLZ4)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(out, data))
}

func TestCompressDecompressRoundTripLZ4(t *testing.T) {
	data := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 10))
	compressed, err := maybeCompress(data, CompressionLZ4)
	assert.NoError(t, err)
	assert.True(t, len(compressed) < len(data))

	decoded, err := decompress(compressed)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(decoded, data))
}

func TestCompressDecompressRoundTripZSTD(t *testing.T) {
	data := []byte(strings.Repeat("spatio geohash trajectory point record ", 10))
	compressed, err := maybeCompress(data, CompressionZSTD)
	assert.NoError(t, err)
	assert.True(t, len(compressed) < len(data))

	decoded, err := decompress(compressed)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(decoded, data))
}

func TestDecompressPassesThroughUncompressedData(t *testing.T) {
	data := []byte("not compressed")
	out, err := decompress(data)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(out, data))
}

func TestMaybeCompressNoneAlwaysUnchanged(t *testing.T) {
	data := []byte(strings.Repeat("x", 1000))
	out, err := maybeCompress(data, CompressionNone)
	assert.NoError(t, err)
	assert.True(t, bytes.Equal(out, data))
}
