package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Field sizes in bytes.
const (
	ScalarSize    = 32
	DigestSize    = 32
	CoordSize     = 32
	PointSize     = 2 * CoordSize
	SignatureSize = 64
	SaltSize      = 12
	CarIDSize     = 4
	NonceSize     = 4
)

// ErrLengthMismatch indicates a buffer has the wrong size for its field.
var ErrLengthMismatch = errors.New("length mismatch")

// CheckLen returns ErrLengthMismatch if b is not exactly want bytes long.
// The field name is included in the error message.
func CheckLen(field string, b []byte, want int) error {
	if len(b) != want {
		return fmt.Errorf("%w: %s is %d bytes, want %d", ErrLengthMismatch, field, len(b), want)
	}
	return nil
}

// XOR returns a ^ b byte-wise. Both operands must have the same length.
func XOR(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: xor operands are %d and %d bytes", ErrLengthMismatch, len(a), len(b))
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out, nil
}

// PutUint32 returns v as 4 big-endian bytes.
func PutUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// Uint32 decodes 4 big-endian bytes.
func Uint32(b []byte) (uint32, error) {
	if err := CheckLen("uint32", b, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Concat joins parts into a new slice.
func Concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Clone returns a copy of b, or nil if b is nil.
func Clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
