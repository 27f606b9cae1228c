package provision

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/carfob/carfob-go/pkg/feature"
	"github.com/carfob/carfob-go/pkg/keys"
	"github.com/carfob/carfob-go/pkg/layout"
	"github.com/carfob/carfob-go/pkg/log"
	"github.com/carfob/carfob-go/pkg/pairing"
)

// BuildFob encodes a Fob image. With in.Pairing set, the fob secret is
// wrapped under the PIN and the returned record holds the pairing material;
// otherwise the record is nil.
func (b *Builder) BuildFob(in FobInputs) (*Result, *pairing.Record, error) {
	buildID := newBuildID()
	role := layout.RoleFob.String()

	if _, err := keys.DeserializePublic(in.CarPublic); err != nil {
		b.fail(buildID, role, "car public", err)
		return nil, nil, err
	}

	values := layout.Values{
		layout.SlotCarPublic: in.CarPublic,
	}

	var (
		rec   *pairing.Record
		carID string
	)
	if p := in.Pairing; p != nil {
		carID = p.CarID.String()
		if _, err := keys.DeserializePrivate(p.FobSecret); err != nil {
			b.fail(buildID, role, "fob secret", err)
			return nil, nil, err
		}
		b.emit(log.Event{BuildID: buildID, Category: log.CategoryKey, Role: role, CarID: carID, Message: "keys validated"})

		var err error
		rec, err = pairing.Derive(b.config.Entropy, p.FobSecret, p.PIN)
		if err != nil {
			b.fail(buildID, role, "pairing", err)
			return nil, nil, err
		}
		b.emit(log.Event{BuildID: buildID, Category: log.CategoryPairing, Role: role, CarID: carID, Message: "pairing material derived"})

		values[layout.SlotFobSecret] = p.FobSecret
		values[layout.SlotFobSecretEnc] = rec.WrappedSecret[:]
		values[layout.SlotFobSalt] = rec.Salt[:]
		values[layout.SlotPINHash] = rec.PINVerifier[:]
		values[layout.SlotCarID] = p.CarID.Bytes()
		values[layout.SlotFobIsPaired] = PairedFlag
	}

	for _, slot := range in.Features.Slots() {
		tok := in.Features.Get(slot)
		nonceSlot, sigSlot, _ := layout.FeatureSlots(int(slot))
		values[nonceSlot] = tok.Nonce[:]
		values[sigSlot] = tok.Signature[:]
		b.emit(log.Event{BuildID: buildID, Category: log.CategoryToken, Role: role, CarID: carID, Slot: string(nonceSlot), Message: "feature installed"})
	}

	img, err := layout.Encode(layout.RoleFob, layout.FobMapV1, values, b.config.FillByte)
	if err != nil {
		b.fail(buildID, role, "encode", err)
		return nil, nil, err
	}

	return b.finish(buildID, carID, rec != nil, img), rec, nil
}

// IssueFeature signs a feature token for carID with the manufacturer
// identity. When a registry is configured the car must be registered; the
// token itself is recorded by CommitFeature once it has been delivered.
func (b *Builder) IssueFeature(carID feature.CarID, slot feature.Slot, issuer *keys.Identity) (*feature.Token, error) {
	buildID := newBuildID()

	if b.config.Registry != nil {
		if err := b.config.Registry.CheckRegistered(carID); err != nil {
			b.fail(buildID, "", "registry", err)
			return nil, err
		}
	}

	tok, err := feature.Issue(b.config.Entropy, carID, slot, issuer)
	if err != nil {
		b.fail(buildID, "", "issue", err)
		return nil, err
	}

	b.emit(log.Event{
		BuildID:  buildID,
		Category: log.CategoryToken,
		CarID:    carID.String(),
		Slot:     fmt.Sprint(int(slot)),
		Message:  "feature issued",
	})
	return tok, nil
}

// CommitFeature records tok as the active token of its slot for carID,
// revoking the previous one. Call it after the token has been written out.
func (b *Builder) CommitFeature(carID feature.CarID, tok *feature.Token) error {
	if b.config.Registry == nil {
		return nil
	}
	if tok == nil {
		return feature.ErrInvalidSlot
	}
	if err := b.config.Registry.RecordToken(carID, tok.Slot, tok.Nonce[:]); err != nil {
		b.fail("", "", "record token", err)
		return err
	}
	b.debug("token recorded", "car_id", carID.String(), "slot", int(tok.Slot))
	return nil
}

// EnableFeature installs tok into an existing paired Fob image. The token
// must verify against the image's CAR_ID and issuerPublic. All other slots
// are carried over unchanged into the new image.
func (b *Builder) EnableFeature(img *layout.Image, issuerPublic *ecdsa.PublicKey, tok *feature.Token) (*Result, error) {
	buildID := newBuildID()
	role := layout.RoleFob.String()

	if img == nil || img.Role() != layout.RoleFob {
		err := fmt.Errorf("%w: feature tokens go into fob images", layout.ErrRoleMismatch)
		b.fail(buildID, role, "enable", err)
		return nil, err
	}
	if tok == nil || !tok.Slot.Valid() {
		b.fail(buildID, role, "enable", feature.ErrInvalidSlot)
		return nil, feature.ErrInvalidSlot
	}

	values, err := img.Values(layout.FobMapV1)
	if err != nil {
		b.fail(buildID, role, "decode", err)
		return nil, err
	}
	rawID := values[layout.SlotCarID]
	if rawID == nil {
		b.fail(buildID, role, "enable", ErrNotPaired)
		return nil, ErrNotPaired
	}
	carID, err := feature.CarIDFromBytes(rawID)
	if err != nil {
		b.fail(buildID, role, "car id", err)
		return nil, err
	}

	ok, err := feature.Verify(issuerPublic, carID, tok)
	if err != nil {
		b.fail(buildID, role, "verify", err)
		return nil, err
	}
	if !ok {
		err := fmt.Errorf("%w: slot %d for car %s", ErrTokenRejected, tok.Slot, carID)
		b.fail(buildID, role, "verify", err)
		return nil, err
	}

	nonceSlot, sigSlot, _ := layout.FeatureSlots(int(tok.Slot))
	values[nonceSlot] = tok.Nonce[:]
	values[sigSlot] = tok.Signature[:]

	out, err := layout.Encode(layout.RoleFob, layout.FobMapV1, values, img.Fill())
	if err != nil {
		b.fail(buildID, role, "encode", err)
		return nil, err
	}
	b.emit(log.Event{BuildID: buildID, Category: log.CategoryToken, Role: role, CarID: carID.String(), Slot: string(nonceSlot), Message: "feature enabled"})

	paired := values[layout.SlotFobIsPaired] != nil
	return b.finish(buildID, carID.String(), paired, out), nil
}
