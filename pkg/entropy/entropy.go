// Package entropy supplies the randomness capability passed into every
// provisioning component.
//
// Components never read crypto/rand directly. They take an io.Reader so a
// build can be replayed with a fixed-sequence source in tests.
package entropy

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrEntropySourceUnavailable indicates the source could not supply the
// requested bytes.
var ErrEntropySourceUnavailable = errors.New("entropy source unavailable")

// System returns the operating system's cryptographically secure source.
func System() io.Reader {
	return rand.Reader
}

// Read draws exactly n bytes from src.
func Read(src io.Reader, n int) ([]byte, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: no source configured", ErrEntropySourceUnavailable)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(src, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropySourceUnavailable, err)
	}
	return b, nil
}

// NewDeterministic returns an HKDF-SHA256 stream keyed by seed and info.
// The same seed and info always yield the same byte sequence. The stream is
// limited to 255*32 bytes; reads beyond that fail.
//
// Use only for tests and reproducible fixtures, never for production keys.
func NewDeterministic(seed []byte, info string) io.Reader {
	return hkdf.New(sha256.New, seed, nil, []byte(info))
}

// NewFixed returns a source that yields exactly b and then fails.
func NewFixed(b []byte) io.Reader {
	return bytes.NewReader(append([]byte(nil), b...))
}
