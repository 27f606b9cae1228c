package provision

import (
	"fmt"

	"github.com/carfob/carfob-go/pkg/keys"
	"github.com/carfob/carfob-go/pkg/layout"
	"github.com/carfob/carfob-go/pkg/log"
)

// messageSlots are the slots CarInputs.Messages may fill.
var messageSlots = map[layout.SlotName]bool{
	layout.SlotMsgFeat1:  true,
	layout.SlotMsgFeat2:  true,
	layout.SlotMsgFeat3:  true,
	layout.SlotMsgUnlock: true,
}

// BuildCar validates the key material in in and encodes the Car image.
// When a registry is configured a car ID that is already registered aborts
// the build, and the returned Result carries a registration that Commit
// stores once the image has been written.
func (b *Builder) BuildCar(in CarInputs) (*Result, error) {
	buildID := newBuildID()
	role := layout.RoleCar.String()
	carID := in.CarID.String()

	car, err := keys.DeserializePrivate(in.CarSecret)
	if err != nil {
		b.fail(buildID, role, "car secret", err)
		return nil, err
	}
	if _, err := keys.DeserializePublic(in.ManufacturerPublic); err != nil {
		b.fail(buildID, role, "manufacturer public", err)
		return nil, err
	}
	if _, err := keys.DeserializePublic(in.FobPublic); err != nil {
		b.fail(buildID, role, "fob public", err)
		return nil, err
	}
	b.emit(log.Event{BuildID: buildID, Category: log.CategoryKey, Role: role, CarID: carID, Message: "keys validated"})

	if b.config.Registry != nil {
		if err := b.config.Registry.CheckUnregistered(in.CarID); err != nil {
			b.fail(buildID, role, "registry", err)
			return nil, err
		}
	}

	values := layout.Values{
		layout.SlotCarSecret: in.CarSecret,
		layout.SlotManPublic: in.ManufacturerPublic,
		layout.SlotFobPublic: in.FobPublic,
		layout.SlotCarID:     in.CarID.Bytes(),
	}
	for name, msg := range in.Messages {
		if !messageSlots[name] {
			err := fmt.Errorf("%w: %s", ErrInvalidMessage, name)
			b.fail(buildID, role, "messages", err)
			return nil, err
		}
		values[name] = msg
	}

	img, err := layout.Encode(layout.RoleCar, layout.CarMapV1, values, b.config.FillByte)
	if err != nil {
		b.fail(buildID, role, "encode", err)
		return nil, err
	}

	var pending *carRegistration
	if b.config.Registry != nil {
		pub, err := car.PublicBytes()
		if err != nil {
			b.fail(buildID, role, "car public", err)
			return nil, err
		}
		pending = &carRegistration{carID: in.CarID, carPublic: pub}
	}

	res := b.finish(buildID, carID, false, img)
	res.pending = pending
	return res, nil
}

// Commit registers the car built into res. Call it after the image has been
// written. A Result with nothing pending commits as a no-op, and a
// successful Commit clears the pending registration.
func (b *Builder) Commit(res *Result) error {
	if res == nil || res.pending == nil || b.config.Registry == nil {
		return nil
	}
	p := res.pending
	role := layout.RoleCar.String()

	if err := b.config.Registry.RegisterCar(p.carID, p.carPublic, res.BuildID); err != nil {
		b.fail(res.BuildID, role, "register", err)
		return err
	}
	res.pending = nil

	b.emit(log.Event{BuildID: res.BuildID, Category: log.CategoryKey, Role: role, CarID: p.carID.String(), Message: "car registered"})
	return nil
}
