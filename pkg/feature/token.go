package feature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/carfob/carfob-go/pkg/entropy"
	"github.com/carfob/carfob-go/pkg/keys"
	"github.com/carfob/carfob-go/pkg/wire"
)

// Feature errors.
var (
	ErrInvalidSlot              = errors.New("invalid feature slot")
	ErrInvalidSignatureEncoding = errors.New("invalid signature encoding")
	ErrNoIssuer                 = errors.New("no issuer key")
)

// NumSlots is the number of feature slots per car.
const NumSlots = 3

// Slot is a feature slot number, 1 to NumSlots.
type Slot uint8

// Feature slots.
const (
	Slot1 Slot = 1
	Slot2 Slot = 2
	Slot3 Slot = 3
)

// Valid reports whether s is 1, 2 or 3.
func (s Slot) Valid() bool {
	return s >= Slot1 && s <= NumSlots
}

func (s Slot) index() int {
	return int(s) - 1
}

// Token is a signed feature activation for one slot.
type Token struct {
	Slot      Slot
	Nonce     [wire.NonceSize]byte
	Signature [wire.SignatureSize]byte
}

// Message returns car_id || nonce, the bytes the signature covers.
func Message(carID CarID, nonce []byte) []byte {
	return wire.Concat(carID.Bytes(), nonce)
}

// Issue draws a nonce from src and signs carID || nonce with the issuer's
// private key.
func Issue(src io.Reader, carID CarID, slot Slot, issuer *keys.Identity) (*Token, error) {
	if !slot.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	if issuer == nil || issuer.PrivateKey == nil {
		return nil, ErrNoIssuer
	}

	nonce, err := entropy.Read(src, wire.NonceSize)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(Message(carID, nonce))
	r, s, err := ecdsa.Sign(src, issuer.PrivateKey, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: sign: %v", entropy.ErrEntropySourceUnavailable, err)
	}

	tok := &Token{Slot: slot}
	copy(tok.Nonce[:], nonce)
	r.FillBytes(tok.Signature[:wire.CoordSize])
	s.FillBytes(tok.Signature[wire.CoordSize:])
	return tok, nil
}

// Verify reports whether tok carries a valid issuer signature over
// carID || tok.Nonce. A signature whose r or s is zero or not below the
// curve order yields false together with ErrInvalidSignatureEncoding.
func Verify(issuerPublic *ecdsa.PublicKey, carID CarID, tok *Token) (bool, error) {
	if issuerPublic == nil || tok == nil {
		return false, nil
	}
	r, s, err := decodeSignature(tok.Signature[:])
	if err != nil {
		return false, err
	}
	digest := sha256.Sum256(Message(carID, tok.Nonce[:]))
	return ecdsa.Verify(issuerPublic, digest[:], r, s), nil
}

// VerifyBytes is Verify with the issuer key given as a 64-byte X || Y
// point. The point is validated before use.
func VerifyBytes(issuerPublic []byte, carID CarID, tok *Token) (bool, error) {
	pub, err := keys.DeserializePublic(issuerPublic)
	if err != nil {
		return false, err
	}
	return Verify(pub, carID, tok)
}

func decodeSignature(sig []byte) (*big.Int, *big.Int, error) {
	if err := wire.CheckLen("signature", sig, wire.SignatureSize); err != nil {
		return nil, nil, err
	}
	n := keys.Curve().Params().N
	r := new(big.Int).SetBytes(sig[:wire.CoordSize])
	s := new(big.Int).SetBytes(sig[wire.CoordSize:])
	if r.Sign() == 0 || s.Sign() == 0 || r.Cmp(n) >= 0 || s.Cmp(n) >= 0 {
		return nil, nil, fmt.Errorf("%w: r and s must be in [1, n-1]", ErrInvalidSignatureEncoding)
	}
	return r, s, nil
}

// NewToken assembles a token from stored nonce and signature bytes.
func NewToken(slot Slot, nonce, signature []byte) (*Token, error) {
	if !slot.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	if err := wire.CheckLen("nonce", nonce, wire.NonceSize); err != nil {
		return nil, err
	}
	if err := wire.CheckLen("signature", signature, wire.SignatureSize); err != nil {
		return nil, err
	}
	tok := &Token{Slot: slot}
	copy(tok.Nonce[:], nonce)
	copy(tok.Signature[:], signature)
	return tok, nil
}
