package keys

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/carfob/carfob-go/pkg/entropy"
	"github.com/carfob/carfob-go/pkg/wire"
)

func testSource(t *testing.T) *bytes.Reader {
	t.Helper()
	b, err := entropy.Read(entropy.NewDeterministic([]byte(t.Name()), "keys"), 1024)
	if err != nil {
		t.Fatalf("entropy.Read() error = %v", err)
	}
	return bytes.NewReader(b)
}

func TestGenerate(t *testing.T) {
	id, err := Generate(entropy.System())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if id.PrivateKey == nil || id.PublicKey == nil {
		t.Fatal("Generate() returned incomplete identity")
	}
	if id.PrivateKey.Curve.Params().Name != "P-256" {
		t.Errorf("curve = %s, want P-256", id.PrivateKey.Curve.Params().Name)
	}

	// public = private * G
	priv, _ := SerializePrivate(id)
	x, y := Curve().ScalarBaseMult(priv)
	pub, _ := SerializePublic(id.PublicKey)
	if !bytes.Equal(pub[:32], x.FillBytes(make([]byte, 32))) || !bytes.Equal(pub[32:], y.FillBytes(make([]byte, 32))) {
		t.Error("public point does not match private scalar")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(entropy.NewDeterministic([]byte("seed"), "id"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(entropy.NewDeterministic([]byte("seed"), "id"))
	if err != nil {
		t.Fatal(err)
	}

	pa, _ := SerializePrivate(a)
	pb, _ := SerializePrivate(b)
	if !bytes.Equal(pa, pb) {
		t.Error("same source should produce the same identity")
	}
}

func TestGenerateRejectsOutOfRange(t *testing.T) {
	// First draw is zero, second is >= n, third is valid (1)
	one := make([]byte, 32)
	one[31] = 1
	over := bytes.Repeat([]byte{0xFF}, 32)
	src := entropy.NewFixed(wire.Concat(make([]byte, 32), over, one))

	id, err := Generate(src)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	priv, _ := SerializePrivate(id)
	if !bytes.Equal(priv, one) {
		t.Errorf("private = %x, want %x", priv, one)
	}
}

func TestGenerateEntropyUnavailable(t *testing.T) {
	_, err := Generate(entropy.NewFixed([]byte{1, 2, 3}))
	if !errors.Is(err, entropy.ErrEntropySourceUnavailable) {
		t.Errorf("Generate() error = %v, want ErrEntropySourceUnavailable", err)
	}

	_, err = Generate(nil)
	if !errors.Is(err, entropy.ErrEntropySourceUnavailable) {
		t.Errorf("Generate(nil) error = %v, want ErrEntropySourceUnavailable", err)
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	id, err := Generate(testSource(t))
	if err != nil {
		t.Fatal(err)
	}

	priv, err := SerializePrivate(id)
	if err != nil {
		t.Fatalf("SerializePrivate() error = %v", err)
	}
	if len(priv) != 32 {
		t.Errorf("private length = %d, want 32", len(priv))
	}

	pub, err := SerializePublic(id.PublicKey)
	if err != nil {
		t.Fatalf("SerializePublic() error = %v", err)
	}
	if len(pub) != 64 {
		t.Errorf("public length = %d, want 64", len(pub))
	}

	back, err := DeserializePrivate(priv)
	if err != nil {
		t.Fatalf("DeserializePrivate() error = %v", err)
	}
	if !back.PublicKey.Equal(id.PublicKey) {
		t.Error("DeserializePrivate() public key mismatch")
	}

	pk, err := DeserializePublic(pub)
	if err != nil {
		t.Fatalf("DeserializePublic() error = %v", err)
	}
	if !pk.Equal(id.PublicKey) {
		t.Error("DeserializePublic() mismatch")
	}
}

func TestDeserializePrivateInvalid(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"Short", make([]byte, 31), wire.ErrLengthMismatch},
		{"Zero", make([]byte, 32), ErrInvalidCurveScalar},
		{"Order", Curve().Params().N.FillBytes(make([]byte, 32)), ErrInvalidCurveScalar},
		{"AboveOrder", new(big.Int).Add(Curve().Params().N, big.NewInt(5)).FillBytes(make([]byte, 32)), ErrInvalidCurveScalar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeserializePrivate(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("DeserializePrivate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDeserializePublicInvalid(t *testing.T) {
	id, err := Generate(testSource(t))
	if err != nil {
		t.Fatal(err)
	}
	pub, _ := SerializePublic(id.PublicKey)

	offCurve := append([]byte(nil), pub...)
	offCurve[63] ^= 0x01

	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"Short", pub[:63], wire.ErrLengthMismatch},
		{"Long", append(append([]byte(nil), pub...), 0), wire.ErrLengthMismatch},
		{"OffCurve", offCurve, ErrInvalidCurvePoint},
		{"Zero", make([]byte, 64), ErrInvalidCurvePoint},
		{"AllFF", bytes.Repeat([]byte{0xFF}, 64), ErrInvalidCurvePoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeserializePublic(tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("DeserializePublic() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSerializeNil(t *testing.T) {
	if _, err := SerializePrivate(nil); !errors.Is(err, ErrInvalidCurveScalar) {
		t.Errorf("SerializePrivate(nil) error = %v", err)
	}
	if _, err := SerializePublic(nil); !errors.Is(err, ErrInvalidCurvePoint) {
		t.Errorf("SerializePublic(nil) error = %v", err)
	}
}
