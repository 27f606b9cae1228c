package commands

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/carfob/carfob-go/pkg/keys"
	"github.com/carfob/carfob-go/pkg/provision"
)

// RunSecrets generates the car, fob and manufacturer identities into the
// secrets directory and prints their public keys.
func RunSecrets(env *Env, w io.Writer) error {
	s, err := env.Builder.GenerateSecrets()
	if err != nil {
		return err
	}
	if err := provision.SaveSecrets(env.Keys, s); err != nil {
		return err
	}

	fmt.Fprintf(w, "Secrets written to %s\n", env.Keys.Path())
	for _, item := range []struct {
		name string
		id   *keys.Identity
	}{
		{keys.NameCar, s.Car},
		{keys.NameFob, s.Fob},
		{keys.NameManufacturer, s.Manufacturer},
	} {
		pub, err := item.id.PublicBytes()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %-4s %s\n", item.name, hex.EncodeToString(pub))
	}
	return nil
}
