package provision

import (
	"errors"
	"fmt"
	"os"

	"github.com/carfob/carfob-go/pkg/layout"
	"github.com/carfob/carfob-go/pkg/persistence"
)

// ImageFileMode is the permission of written images. Images hold private
// scalars.
const ImageFileMode = 0600

// Write stores img at path and m at path + ".json". Both writes are atomic;
// the image is written first and removed again if the manifest fails.
func Write(path string, img *layout.Image, m *persistence.BuildManifest) error {
	if err := persistence.WriteFileAtomic(path, img.Bytes(), ImageFileMode); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if m == nil {
		return nil
	}
	if err := persistence.NewManifestStore(persistence.ManifestPath(path)).Save(m); err != nil {
		os.Remove(path)
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Remove deletes the image at path and its manifest. Missing files are not
// an error.
func Remove(path string) error {
	var errs []error
	for _, p := range []string{path, persistence.ManifestPath(path)} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadImage loads an image of role from path. The fill byte recorded in the
// image's manifest wins over fill when the manifest exists.
func ReadImage(path string, role layout.Role, fill byte) (*layout.Image, *persistence.BuildManifest, error) {
	m, err := layout.MapFor(role)
	if err != nil {
		return nil, nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	manifest, err := persistence.NewManifestStore(persistence.ManifestPath(path)).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}
	if manifest != nil {
		if manifest.Role != "" && manifest.Role != role.String() {
			return nil, nil, fmt.Errorf("%w: manifest says %s", layout.ErrRoleMismatch, manifest.Role)
		}
		fill = manifest.FillByte
	}

	img, err := layout.Parse(m, data, fill)
	if err != nil {
		return nil, nil, err
	}
	return img, manifest, nil
}
