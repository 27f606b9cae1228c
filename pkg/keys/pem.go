package keys

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
)

// PEM errors.
var (
	ErrInvalidPEM = errors.New("invalid PEM data")
)

const pemTypeECPrivateKey = "EC PRIVATE KEY"

// EncodePrivatePEM encodes an identity's private key as SEC1 PEM.
func EncodePrivatePEM(id *Identity) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(id.PrivateKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeECPrivateKey,
		Bytes: der,
	}), nil
}

// DecodePrivatePEM decodes a SEC1 PEM private key into an identity.
// Keys on curves other than P-256 are rejected.
func DecodePrivatePEM(data []byte) (*Identity, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypeECPrivateKey {
		return nil, ErrInvalidPEM
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return fromECDSA(key)
}

func fromECDSA(key *ecdsa.PrivateKey) (*Identity, error) {
	if key.Curve != Curve() {
		return nil, ErrInvalidCurveScalar
	}
	raw, err := key.Bytes()
	if err != nil {
		return nil, err
	}
	return DeserializePrivate(raw)
}
