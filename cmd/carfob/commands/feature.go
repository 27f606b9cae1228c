package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/carfob/carfob-go/pkg/feature"
	"github.com/carfob/carfob-go/pkg/keys"
	"github.com/carfob/carfob-go/pkg/layout"
	"github.com/carfob/carfob-go/pkg/persistence"
	"github.com/carfob/carfob-go/pkg/provision"
)

// FeatureOptions are the inputs of the feature command.
type FeatureOptions struct {
	CarID string
	Slot  int
	Out   string
}

// RunFeature issues a feature token signed by the manufacturer key and
// writes it as a packaged feature file. The token is recorded in the
// registry only after the file is written.
func RunFeature(env *Env, opts FeatureOptions, w io.Writer) error {
	carID, err := feature.ParseCarID(opts.CarID)
	if err != nil {
		return err
	}
	if opts.Out == "" {
		return errors.New("output path required")
	}

	issuer, err := env.Keys.ReadIdentity(keys.NameManufacturer)
	if err != nil {
		return err
	}

	tok, err := env.Builder.IssueFeature(carID, feature.Slot(opts.Slot), issuer)
	if err != nil {
		return err
	}

	pkg := feature.Package{CarID: carID, Token: *tok}
	data, err := pkg.MarshalBinary()
	if err != nil {
		return err
	}

	path := env.Config.OutputPath(opts.Out)
	if err := persistence.WriteFileAtomic(path, data, 0644); err != nil {
		return err
	}
	if err := env.Builder.CommitFeature(carID, tok); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			env.Logger.Warn("could not remove unrecorded feature", "path", path, "error", rmErr)
		}
		return err
	}

	fmt.Fprintf(w, "Wrote feature %d for car %s to %s\n", tok.Slot, carID, path)
	return nil
}

// EnableOptions are the inputs of the enable command.
type EnableOptions struct {
	Image string
	Token string
	Out   string
}

// RunEnable installs a packaged feature into an existing fob image.
func RunEnable(env *Env, opts EnableOptions, w io.Writer) error {
	if opts.Out == "" {
		return errors.New("output path required")
	}

	img, _, err := provision.ReadImage(opts.Image, layout.RoleFob, env.Config.FillByte.Byte())
	if err != nil {
		return err
	}

	pkg, err := readPackage(opts.Token)
	if err != nil {
		return err
	}

	issuer, err := env.Keys.ReadPublic(keys.NameManufacturer)
	if err != nil {
		return err
	}

	res, err := env.Builder.EnableFeature(img, issuer, &pkg.Token)
	if err != nil {
		return err
	}
	return writeResult(env, opts.Out, res, w)
}

func readPackage(path string) (*feature.Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pkg feature.Package
	if err := pkg.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &pkg, nil
}
