package feature

import (
	"errors"
	"fmt"

	"github.com/carfob/carfob-go/pkg/wire"
)

// PackageSize is the length of a marshaled Package.
const PackageSize = wire.CarIDSize + 1 + wire.NonceSize + wire.SignatureSize

// ErrInvalidPackage indicates malformed packaged-feature bytes.
var ErrInvalidPackage = errors.New("invalid feature package")

// Package is a token together with the car it was issued for, as handed to
// an owner for installation on a fob.
type Package struct {
	CarID CarID
	Token Token
}

// MarshalBinary encodes car_id (4) || slot (1) || nonce (4) || signature (64).
func (p *Package) MarshalBinary() ([]byte, error) {
	if !p.Token.Slot.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlot, p.Token.Slot)
	}
	return wire.Concat(
		p.CarID.Bytes(),
		[]byte{byte(p.Token.Slot)},
		p.Token.Nonce[:],
		p.Token.Signature[:],
	), nil
}

// UnmarshalBinary decodes the MarshalBinary layout.
func (p *Package) UnmarshalBinary(data []byte) error {
	if len(data) != PackageSize {
		return fmt.Errorf("%w: %d bytes, want %d", ErrInvalidPackage, len(data), PackageSize)
	}

	carID, err := CarIDFromBytes(data[:wire.CarIDSize])
	if err != nil {
		return err
	}
	rest := data[wire.CarIDSize:]

	tok, err := NewToken(Slot(rest[0]), rest[1:1+wire.NonceSize], rest[1+wire.NonceSize:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	p.CarID = carID
	p.Token = *tok
	return nil
}
