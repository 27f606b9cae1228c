package provision

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"

	"github.com/carfob/carfob-go/pkg/feature"
	"github.com/carfob/carfob-go/pkg/layout"
	"github.com/carfob/carfob-go/pkg/wire"
)

// secretSlots are never shown in a Report.
var secretSlots = map[layout.SlotName]bool{
	layout.SlotCarSecret: true,
	layout.SlotFobSecret: true,
}

// SlotReport describes one slot of an inspected image.
type SlotReport struct {
	Name      layout.SlotName `json:"name"`
	Offset    uint16          `json:"offset"`
	Size      uint16          `json:"size"`
	Populated bool            `json:"populated"`
	Hex       string          `json:"hex,omitempty"`
	Redacted  bool            `json:"redacted,omitempty"`
}

// FeatureReport describes an installed feature token.
type FeatureReport struct {
	Slot feature.Slot `json:"slot"`

	// Valid is nil when no issuer key was supplied.
	Valid *bool  `json:"valid,omitempty"`
	Error string `json:"error,omitempty"`
}

// Report is the decoded view of an image.
type Report struct {
	Role          string          `json:"role"`
	LayoutVersion int             `json:"layout_version"`
	FillByte      byte            `json:"fill_byte"`
	SHA256        string          `json:"sha256"`
	CarID         string          `json:"car_id,omitempty"`
	Paired        bool            `json:"paired"`
	Slots         []SlotReport    `json:"slots"`
	Features      []FeatureReport `json:"features,omitempty"`
}

// Inspect decodes every slot of img. Secret scalars are redacted. When
// issuerPublic is set, installed feature tokens of a fob are verified.
func Inspect(img *layout.Image, issuerPublic *ecdsa.PublicKey) (*Report, error) {
	m, err := layout.MapFor(img.Role())
	if err != nil {
		return nil, err
	}

	r := &Report{
		Role:          img.Role().String(),
		LayoutVersion: img.LayoutVersion(),
		FillByte:      img.Fill(),
		SHA256:        img.Digest(),
	}

	values, err := img.Values(m)
	if err != nil {
		return nil, err
	}

	for _, s := range m.Slots() {
		v := values[s.Name]
		sr := SlotReport{Name: s.Name, Offset: s.Offset, Size: s.Size, Populated: v != nil}
		if v != nil {
			if secretSlots[s.Name] {
				sr.Redacted = true
			} else {
				sr.Hex = hex.EncodeToString(v)
			}
		}
		r.Slots = append(r.Slots, sr)
	}

	var (
		carID    feature.CarID
		hasCarID bool
	)
	if raw := values[layout.SlotCarID]; raw != nil {
		if id, err := feature.CarIDFromBytes(raw); err == nil {
			carID, hasCarID = id, true
			r.CarID = id.String()
		}
	}

	if img.Role() != layout.RoleFob {
		return r, nil
	}

	r.Paired = values[layout.SlotFobIsPaired] != nil
	for n := 1; n <= feature.NumSlots; n++ {
		nonceSlot, sigSlot, _ := layout.FeatureSlots(n)
		nonce, sig := values[nonceSlot], values[sigSlot]
		if nonce == nil && sig == nil {
			continue
		}

		fr := FeatureReport{Slot: feature.Slot(n)}
		if issuerPublic != nil && hasCarID {
			fr.Valid = verifyStored(issuerPublic, carID, feature.Slot(n), nonce, sig, img.Fill(), &fr.Error)
		}
		r.Features = append(r.Features, fr)
	}
	return r, nil
}

func verifyStored(pub *ecdsa.PublicKey, carID feature.CarID, slot feature.Slot, nonce, sig []byte, fill byte, errText *string) *bool {
	valid := false
	// A half-written slot pair decodes to nil on one side.
	if nonce == nil {
		nonce = bytes.Repeat([]byte{fill}, wire.NonceSize)
	}
	if sig == nil {
		sig = bytes.Repeat([]byte{fill}, wire.SignatureSize)
	}
	tok, err := feature.NewToken(slot, nonce, sig)
	if err == nil {
		valid, err = feature.Verify(pub, carID, tok)
	}
	if err != nil {
		*errText = err.Error()
	}
	return &valid
}
