package keys

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/carfob/carfob-go/pkg/persistence"
)

// Identity names used in a secrets directory.
const (
	NameCar          = "car"
	NameFob          = "fob"
	NameManufacturer = "man"
)

// File suffixes.
const (
	secretSuffix = "_sec"
	publicSuffix = "_pub"
	pemSuffix    = ".pem"
)

// SecretFile returns the raw private scalar file name for name.
func SecretFile(name string) string { return name + secretSuffix }

// PublicFile returns the raw public point file name for name.
func PublicFile(name string) string { return name + publicSuffix }

// ErrKeyNotFound indicates the requested key file does not exist.
var ErrKeyNotFound = errors.New("key not found")

// Dir is a secrets directory holding raw key files.
type Dir struct {
	path string
}

// NewDir returns a Dir rooted at path.
func NewDir(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the directory root.
func (d *Dir) Path() string {
	return d.path
}

// WriteIdentity stores the private scalar (0600), the public point (0644)
// and a PEM copy of the private key (0600).
func (d *Dir) WriteIdentity(name string, id *Identity) error {
	priv, err := SerializePrivate(id)
	if err != nil {
		return err
	}
	pub, err := SerializePublic(id.PublicKey)
	if err != nil {
		return err
	}
	pemData, err := EncodePrivatePEM(id)
	if err != nil {
		return err
	}

	if err := persistence.WriteFileAtomic(d.file(name+secretSuffix), priv, 0600); err != nil {
		return err
	}
	if err := persistence.WriteFileAtomic(d.file(name+publicSuffix), pub, 0644); err != nil {
		return err
	}
	return persistence.WriteFileAtomic(d.file(name+pemSuffix), pemData, 0600)
}

// WritePublic stores only a public point, for peers that must verify but
// never sign.
func (d *Dir) WritePublic(name string, pub *ecdsa.PublicKey) error {
	b, err := SerializePublic(pub)
	if err != nil {
		return err
	}
	return persistence.WriteFileAtomic(d.file(name+publicSuffix), b, 0644)
}

// ReadIdentity loads <name>_sec and rebuilds the identity.
func (d *Dir) ReadIdentity(name string) (*Identity, error) {
	b, err := d.read(name + secretSuffix)
	if err != nil {
		return nil, err
	}
	return DeserializePrivate(b)
}

// ReadPublic loads and validates <name>_pub.
func (d *Dir) ReadPublic(name string) (*ecdsa.PublicKey, error) {
	b, err := d.read(name + publicSuffix)
	if err != nil {
		return nil, err
	}
	return DeserializePublic(b)
}

// ReadRaw returns the raw bytes of <name>_sec or <name>_pub without
// interpretation.
func (d *Dir) ReadRaw(file string) ([]byte, error) {
	return d.read(file)
}

func (d *Dir) read(file string) ([]byte, error) {
	b, err := os.ReadFile(d.file(file))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, file)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (d *Dir) file(name string) string {
	return filepath.Join(d.path, name)
}
