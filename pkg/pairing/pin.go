package pairing

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPIN indicates PIN text that is not valid hex.
var ErrInvalidPIN = errors.New("invalid PIN")

// PIN is the raw byte form of a pairing PIN.
type PIN []byte

// ParsePIN parses PIN text as hex digits, so "123456" becomes 12 34 56.
// An empty string is the empty PIN.
func ParsePIN(s string) (PIN, error) {
	s = strings.TrimSpace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPIN, err)
	}
	return PIN(b), nil
}

// MustParsePIN parses a PIN string and panics on error.
// Use only in tests or when the PIN is known to be valid.
func MustParsePIN(s string) PIN {
	p, err := ParsePIN(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the PIN as lowercase hex.
func (p PIN) String() string {
	return hex.EncodeToString(p)
}
