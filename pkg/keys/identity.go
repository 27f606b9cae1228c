package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/carfob/carfob-go/pkg/entropy"
	"github.com/carfob/carfob-go/pkg/wire"
)

// Key errors.
var (
	ErrInvalidCurveScalar = errors.New("invalid curve scalar")
	ErrInvalidCurvePoint  = errors.New("invalid curve point")
)

// maxScalarAttempts bounds rejection sampling. For P-256 a single draw is
// rejected with probability below 2^-32.
const maxScalarAttempts = 16

// Curve returns the curve all identities use.
func Curve() elliptic.Curve {
	return elliptic.P256()
}

// Identity is an ECDSA P-256 key pair owned by one device or role.
type Identity struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
}

// Generate draws a new identity from src.
func Generate(src io.Reader) (*Identity, error) {
	n := Curve().Params().N
	for range maxScalarAttempts {
		b, err := entropy.Read(src, wire.ScalarSize)
		if err != nil {
			return nil, err
		}
		k := new(big.Int).SetBytes(b)
		if k.Sign() == 0 || k.Cmp(n) >= 0 {
			continue
		}
		return DeserializePrivate(b)
	}
	return nil, fmt.Errorf("%w: no valid scalar after %d draws", entropy.ErrEntropySourceUnavailable, maxScalarAttempts)
}

// DeserializePrivate builds an identity from a 32-byte big-endian scalar.
func DeserializePrivate(b []byte) (*Identity, error) {
	if err := wire.CheckLen("private scalar", b, wire.ScalarSize); err != nil {
		return nil, err
	}
	k := new(big.Int).SetBytes(b)
	if k.Sign() == 0 || k.Cmp(Curve().Params().N) >= 0 {
		return nil, fmt.Errorf("%w: scalar out of range [1, n-1]", ErrInvalidCurveScalar)
	}

	priv, err := ecdsa.ParseRawPrivateKey(Curve(), b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCurveScalar, err)
	}
	return &Identity{PrivateKey: priv, PublicKey: &priv.PublicKey}, nil
}

// SerializePrivate returns the 32-byte big-endian private scalar.
func SerializePrivate(id *Identity) ([]byte, error) {
	if id == nil || id.PrivateKey == nil {
		return nil, fmt.Errorf("%w: no private key", ErrInvalidCurveScalar)
	}
	return id.PrivateKey.Bytes()
}

// SerializePublic returns the 64-byte X || Y encoding of pub.
func SerializePublic(pub *ecdsa.PublicKey) ([]byte, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: no public key", ErrInvalidCurvePoint)
	}
	// Uncompressed SEC1 form is 0x04 || X || Y
	b, err := pub.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCurvePoint, err)
	}
	return b[1:], nil
}

// DeserializePublic decodes a 64-byte X || Y point and checks it lies on the
// curve.
func DeserializePublic(b []byte) (*ecdsa.PublicKey, error) {
	if err := wire.CheckLen("public point", b, wire.PointSize); err != nil {
		return nil, err
	}
	pub, err := ecdsa.ParseUncompressedPublicKey(Curve(), wire.Concat([]byte{0x04}, b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCurvePoint, err)
	}
	return pub, nil
}

// PublicBytes is a convenience for SerializePublic(id.PublicKey).
func (id *Identity) PublicBytes() ([]byte, error) {
	if id == nil {
		return nil, fmt.Errorf("%w: no identity", ErrInvalidCurvePoint)
	}
	return SerializePublic(id.PublicKey)
}

// PrivateBytes is a convenience for SerializePrivate(id).
func (id *Identity) PrivateBytes() ([]byte, error) {
	return SerializePrivate(id)
}
