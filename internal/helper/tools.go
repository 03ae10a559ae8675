// Package helper holds small binary-encoding utilities shared by the
// storage engine, spatial index and trajectory store.
package helper

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Float64ToBytes encodes f as 8 little-endian bytes. Coordinates and
// timestamps embedded in geo/trajectory payloads use this encoding so a
// query result can be reconstructed exactly from the stored record.
func Float64ToBytes(f float64) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, f)
	return buf.Bytes()
}

// BytesToFloat64 decodes 8 little-endian bytes produced by Float64ToBytes.
func BytesToFloat64(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, errors.New("spatio: input must be exactly 8 bytes")
	}
	var f float64
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &f); err != nil {
		return 0, err
	}
	return f, nil
}
