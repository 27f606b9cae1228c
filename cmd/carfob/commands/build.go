package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/carfob/carfob-go/pkg/feature"
	"github.com/carfob/carfob-go/pkg/keys"
	"github.com/carfob/carfob-go/pkg/layout"
	"github.com/carfob/carfob-go/pkg/pairing"
	"github.com/carfob/carfob-go/pkg/provision"
)

// ErrPINRequired is returned when a paired fob is requested without a PIN
// and no prompt is available.
var ErrPINRequired = errors.New("PIN required for a paired fob")

// CarOptions are the inputs of the car command.
type CarOptions struct {
	CarID string
	Out   string

	// Messages maps MSG_* slot names to files holding their contents.
	Messages map[string]string
}

// RunCar builds a Car image from the secrets directory.
func RunCar(env *Env, opts CarOptions, w io.Writer) error {
	carID, err := feature.ParseCarID(opts.CarID)
	if err != nil {
		return err
	}

	in := provision.CarInputs{CarID: carID}
	if in.CarSecret, err = env.Keys.ReadRaw(keys.SecretFile(keys.NameCar)); err != nil {
		return err
	}
	if in.ManufacturerPublic, err = env.Keys.ReadRaw(keys.PublicFile(keys.NameManufacturer)); err != nil {
		return err
	}
	if in.FobPublic, err = env.Keys.ReadRaw(keys.PublicFile(keys.NameFob)); err != nil {
		return err
	}

	if len(opts.Messages) > 0 {
		in.Messages = make(map[layout.SlotName][]byte, len(opts.Messages))
		for name, path := range opts.Messages {
			msg, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("message %s: %w", name, err)
			}
			in.Messages[layout.SlotName(name)] = msg
		}
	}

	res, err := env.Builder.BuildCar(in)
	if err != nil {
		return err
	}
	return writeResult(env, opts.Out, res, w)
}

// FobOptions are the inputs of the fob command.
type FobOptions struct {
	// CarID pairs the fob when set.
	CarID string
	PIN   string
	Out   string

	// Tokens are packaged feature files to install.
	Tokens []string

	// PromptPIN is called when CarID is set and PIN is empty.
	PromptPIN func() (string, error)
}

// RunFob builds a Fob image from the secrets directory.
func RunFob(env *Env, opts FobOptions, w io.Writer) error {
	var (
		in  provision.FobInputs
		err error
	)
	if in.CarPublic, err = env.Keys.ReadRaw(keys.PublicFile(keys.NameCar)); err != nil {
		return err
	}

	var carID *feature.CarID
	if opts.CarID != "" {
		id, err := feature.ParseCarID(opts.CarID)
		if err != nil {
			return err
		}
		carID = &id

		pinText := opts.PIN
		if pinText == "" {
			if opts.PromptPIN == nil {
				return ErrPINRequired
			}
			if pinText, err = opts.PromptPIN(); err != nil {
				return err
			}
		}
		pin, err := pairing.ParsePIN(pinText)
		if err != nil {
			return err
		}

		secret, err := env.Keys.ReadRaw(keys.SecretFile(keys.NameFob))
		if err != nil {
			return err
		}
		in.Pairing = &provision.FobPairing{CarID: id, PIN: pin, FobSecret: secret}
	}

	if len(opts.Tokens) > 0 {
		issuer, err := env.issuerPublic()
		if err != nil {
			return err
		}
		for _, path := range opts.Tokens {
			pkg, err := readPackage(path)
			if err != nil {
				return err
			}
			if carID != nil && pkg.CarID != *carID {
				return fmt.Errorf("%w: %s is for car %s", provision.ErrTokenRejected, path, pkg.CarID)
			}
			if issuer != nil {
				ok, err := feature.Verify(issuer, pkg.CarID, &pkg.Token)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: %s", provision.ErrTokenRejected, path)
				}
			}
			tok := pkg.Token
			if err := in.Features.Put(&tok); err != nil {
				return err
			}
		}
	}

	res, _, err := env.Builder.BuildFob(in)
	if err != nil {
		return err
	}
	return writeResult(env, opts.Out, res, w)
}

func writeResult(env *Env, out string, res *provision.Result, w io.Writer) error {
	if out == "" {
		return errors.New("output path required")
	}
	path := env.Config.OutputPath(out)
	if err := provision.Write(path, res.Image, res.Manifest); err != nil {
		return err
	}
	if err := env.Builder.Commit(res); err != nil {
		if rmErr := provision.Remove(path); rmErr != nil {
			env.Logger.Warn("could not remove uncommitted image", "path", path, "error", rmErr)
		}
		return err
	}

	fmt.Fprintf(w, "Wrote %s image to %s\n", res.Manifest.Role, path)
	fmt.Fprintf(w, "  Build:  %s\n", res.BuildID)
	if res.Manifest.CarID != "" {
		fmt.Fprintf(w, "  Car ID: %s\n", res.Manifest.CarID)
	}
	if res.Manifest.Role == layout.RoleFob.String() {
		fmt.Fprintf(w, "  Paired: %v\n", res.Manifest.Paired)
	}
	fmt.Fprintf(w, "  SHA256: %s\n", res.Manifest.SHA256)
	return nil
}
