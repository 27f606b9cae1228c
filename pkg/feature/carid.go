package feature

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/carfob/carfob-go/pkg/wire"
)

// ErrInvalidCarID indicates car ID text that is not 1-8 hex digits.
var ErrInvalidCarID = errors.New("invalid car ID")

// CarID identifies a car. It is stored as 4 big-endian bytes.
type CarID uint32

// ParseCarID parses a car ID written in hex, with or without a 0x prefix.
// Decimal is never accepted: "10" is 0x10.
func ParseCarID(s string) (CarID, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) == 0 || len(s) > 2*wire.CarIDSize {
		return 0, fmt.Errorf("%w: %q must be 1-8 hex digits", ErrInvalidCarID, s)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCarID, err)
	}
	return CarID(n), nil
}

// CarIDFromBytes decodes a 4-byte big-endian car ID.
func CarIDFromBytes(b []byte) (CarID, error) {
	v, err := wire.Uint32(b)
	if err != nil {
		return 0, err
	}
	return CarID(v), nil
}

// Bytes returns the 4-byte big-endian encoding.
func (c CarID) Bytes() []byte {
	return wire.PutUint32(uint32(c))
}

// String returns the car ID as 8 lowercase hex digits.
func (c CarID) String() string {
	return fmt.Sprintf("%08x", uint32(c))
}
