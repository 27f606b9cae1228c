package log

import (
	"fmt"
	"strings"
	"time"
)

// Event is one audit record. CBOR encoding uses integer keys.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// BuildID is the UUID of the build invocation.
	BuildID string `cbor:"2,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"3,keyasint"`

	// Role is the device role ("car", "fob", or empty for secrets).
	Role string `cbor:"4,keyasint,omitempty"`

	// CarID is the hex car ID, when known.
	CarID string `cbor:"5,keyasint,omitempty"`

	// Slot is a layout slot name or a feature slot number.
	Slot string `cbor:"6,keyasint,omitempty"`

	// Digest is a hex SHA-256 of the produced artifact.
	Digest string `cbor:"7,keyasint,omitempty"`

	// Message is a short description.
	Message string `cbor:"8,keyasint,omitempty"`

	// Error is set for CategoryError events.
	Error *ErrorData `cbor:"9,keyasint,omitempty"`
}

// ErrorData describes a failed build step.
type ErrorData struct {
	// Step names the operation that failed.
	Step string `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`
}

// Category classifies an audit event.
type Category uint8

const (
	// CategoryKey covers identity generation and key loading.
	CategoryKey Category = 0
	// CategoryPairing covers pairing material derivation.
	CategoryPairing Category = 1
	// CategoryToken covers feature token issuance and installation.
	CategoryToken Category = 2
	// CategoryImage covers memory image encoding and writing.
	CategoryImage Category = 3
	// CategoryError indicates a failed build.
	CategoryError Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryKey:
		return "KEY"
	case CategoryPairing:
		return "PAIRING"
	case CategoryToken:
		return "TOKEN"
	case CategoryImage:
		return "IMAGE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (Category, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "KEY":
		return CategoryKey, nil
	case "PAIRING":
		return CategoryPairing, nil
	case "TOKEN":
		return CategoryToken, nil
	case "IMAGE":
		return CategoryImage, nil
	case "ERROR":
		return CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category: %q", s)
	}
}
