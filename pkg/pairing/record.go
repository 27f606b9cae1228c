package pairing

import (
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"github.com/carfob/carfob-go/pkg/entropy"
	"github.com/carfob/carfob-go/pkg/wire"
)

// separator sits between the two hashed fields.
const separator = 0x00

// Record holds the pairing material produced from one (fob secret, PIN) pair.
// The three fields are only meaningful together.
type Record struct {
	Salt          [wire.SaltSize]byte
	PINVerifier   [wire.DigestSize]byte
	WrappedSecret [wire.ScalarSize]byte
}

// Derive draws a fresh salt from src and produces the pairing record for
// fobSecret under pin. fobSecret must be exactly 32 bytes.
func Derive(src io.Reader, fobSecret []byte, pin PIN) (*Record, error) {
	if err := wire.CheckLen("fob secret", fobSecret, wire.ScalarSize); err != nil {
		return nil, err
	}

	salt, err := entropy.Read(src, wire.SaltSize)
	if err != nil {
		return nil, err
	}

	rec := &Record{}
	copy(rec.Salt[:], salt)
	rec.PINVerifier = pinVerifier(rec.Salt[:], pin)

	key := wrapKey(pin, rec.Salt[:])
	wrapped, err := wire.XOR(key[:], fobSecret)
	if err != nil {
		return nil, err
	}
	copy(rec.WrappedSecret[:], wrapped)
	return rec, nil
}

// NewRecord assembles a record from stored fields, checking each length.
func NewRecord(salt, verifier, wrapped []byte) (*Record, error) {
	if err := wire.CheckLen("salt", salt, wire.SaltSize); err != nil {
		return nil, err
	}
	if err := wire.CheckLen("pin verifier", verifier, wire.DigestSize); err != nil {
		return nil, err
	}
	if err := wire.CheckLen("wrapped secret", wrapped, wire.ScalarSize); err != nil {
		return nil, err
	}

	rec := &Record{}
	copy(rec.Salt[:], salt)
	copy(rec.PINVerifier[:], verifier)
	copy(rec.WrappedSecret[:], wrapped)
	return rec, nil
}

// Unwrap recovers the fob secret using pin. A wrong PIN yields a wrong
// secret, not an error; call VerifyPIN first when that matters.
func Unwrap(rec *Record, pin PIN) []byte {
	key := wrapKey(pin, rec.Salt[:])
	out := make([]byte, wire.ScalarSize)
	for i := range out {
		out[i] = key[i] ^ rec.WrappedSecret[i]
	}
	return out
}

// VerifyPIN reports whether candidate matches the PIN the record was built
// with. The digest comparison is constant-time.
func VerifyPIN(rec *Record, candidate PIN) bool {
	got := pinVerifier(rec.Salt[:], candidate)
	return subtle.ConstantTimeCompare(got[:], rec.PINVerifier[:]) == 1
}

func pinVerifier(salt []byte, pin PIN) [wire.DigestSize]byte {
	return sha256.Sum256(wire.Concat(salt, []byte{separator}, pin))
}

func wrapKey(pin PIN, salt []byte) [wire.DigestSize]byte {
	return sha256.Sum256(wire.Concat(pin, []byte{separator}, salt))
}
