package store

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
	lz4 "github.com/pierrec/lz4/v4"

	"github.com/sitan2008/spatio/internal/logger"
)

// CompressionType names an algorithm used to shrink record payloads
// before they reach the engine's backing store.
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionLZ4  CompressionType = "lz4"
	CompressionZSTD CompressionType = "zstd"
)

// compressionThreshold is the smallest payload worth compressing;
// below it the frame overhead outweighs any savings.
const compressionThreshold = 64

var (
	compressionMagicLZ4  = []byte{0x4C, 0x5A, 0x34, 0x01}
	compressionMagicZSTD = []byte{0x5A, 0x53, 0x54, 0x44}
)

// maybeCompress compresses data when it is large enough to benefit and the
// compressed form is actually smaller; otherwise it returns data unchanged.
func maybeCompress(data []byte, kind CompressionType) ([]byte, error) {
	if kind == CompressionNone || len(data) < compressionThreshold {
		return data, nil
	}

	var compressed []byte
	var err error
	switch kind {
	case CompressionLZ4:
		compressed, err = compressLZ4(data)
	case CompressionZSTD:
		compressed, err = compressZSTD(data)
	default:
		return nil, fmt.Errorf("spatio: unsupported compression type %q", kind)
	}
	if err != nil {
		return nil, err
	}
	if len(compressed) >= len(data) {
		return data, nil
	}
	return compressed, nil
}

// decompress recognizes the magic prefix of a compressed frame and inverts
// it; payloads with no recognized prefix are returned unchanged, since they
// were stored below the compression threshold.
func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}
	if bytes.HasPrefix(data, compressionMagicLZ4) {
		return decompressLZ4(data[len(compressionMagicLZ4):])
	}
	if bytes.HasPrefix(data, compressionMagicZSTD) {
		return decompressZSTD(data[len(compressionMagicZSTD):])
	}
	return data, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("spatio: lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("spatio: lz4 compress close: %w", err)
	}
	out := make([]byte, len(compressionMagicLZ4)+buf.Len())
	copy(out, compressionMagicLZ4)
	copy(out[len(compressionMagicLZ4):], buf.Bytes())
	return out, nil
}

func decompressLZ4(data []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(data))
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("spatio: lz4 decompress: %w", err)
	}
	return buf.Bytes(), nil
}

func compressZSTD(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("spatio: zstd encoder: %w", err)
	}
	defer func() {
		if cerr := enc.Close(); cerr != nil {
			logger.Logger.Debug().Err(cerr).Msg("failed to close zstd encoder")
		}
	}()
	compressed := enc.EncodeAll(data, nil)
	out := make([]byte, len(compressionMagicZSTD)+len(compressed))
	copy(out, compressionMagicZSTD)
	copy(out[len(compressionMagicZSTD):], compressed)
	return out, nil
}

func decompressZSTD(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("spatio: zstd decoder: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("spatio: zstd decompress: %w", err)
	}
	return out, nil
}
