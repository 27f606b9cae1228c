package provision

import (
	"errors"
	"io"
	"log/slog"

	"github.com/carfob/carfob-go/pkg/feature"
	"github.com/carfob/carfob-go/pkg/keys"
	"github.com/carfob/carfob-go/pkg/layout"
	"github.com/carfob/carfob-go/pkg/log"
	"github.com/carfob/carfob-go/pkg/pairing"
	"github.com/carfob/carfob-go/pkg/persistence"
)

// Build errors.
var (
	ErrNotPaired      = errors.New("fob image is not paired")
	ErrTokenRejected  = errors.New("feature token does not verify")
	ErrInvalidMessage = errors.New("not a message slot")
)

// PairedFlag is the FOB_IS_PAIRED value of a paired fob.
var PairedFlag = []byte{0x00, 0x00, 0x00, 0x01}

// Registry records provisioned cars and issued tokens. The Check methods
// run before a build so a doomed build fails before anything is written;
// RegisterCar and RecordToken run only once the output is stored.
type Registry interface {
	// CheckUnregistered fails if carID is already registered.
	CheckUnregistered(carID feature.CarID) error
	// CheckRegistered fails if carID is not registered.
	CheckRegistered(carID feature.CarID) error

	RegisterCar(carID feature.CarID, carPublic []byte, buildID string) error
	RecordToken(carID feature.CarID, slot feature.Slot, nonce []byte) error
}

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	// Entropy is the randomness source for keys, salts and nonces.
	// If nil, the system source is used.
	Entropy io.Reader

	// FillByte is written to every unpopulated image byte.
	FillByte byte

	// Audit receives build events. If nil, auditing is disabled.
	Audit log.Logger

	// Registry records cars and tokens. If nil, nothing is recorded.
	Registry Registry

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultBuilderConfig returns a BuilderConfig with the system entropy
// source and the default fill byte.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Entropy:  nil,
		FillByte: layout.DefaultFillByte,
	}
}

// Secrets is the identity set produced by GenerateSecrets.
type Secrets struct {
	Car          *keys.Identity
	Fob          *keys.Identity
	Manufacturer *keys.Identity
}

// CarInputs are the raw inputs of a Car image.
type CarInputs struct {
	CarID feature.CarID

	// CarSecret is the car's 32-byte private scalar.
	CarSecret []byte

	// ManufacturerPublic and FobPublic are 64-byte X || Y points.
	ManufacturerPublic []byte
	FobPublic          []byte

	// Messages fills MSG_* slots. Keys must be message slot names.
	Messages map[layout.SlotName][]byte
}

// FobPairing binds a fob to a car under a PIN.
type FobPairing struct {
	CarID feature.CarID
	PIN   pairing.PIN

	// FobSecret is the fob's 32-byte private scalar.
	FobSecret []byte
}

// FobInputs are the raw inputs of a Fob image.
type FobInputs struct {
	// CarPublic is the 64-byte X || Y point of the car.
	CarPublic []byte

	// Pairing is nil for an unpaired fob.
	Pairing *FobPairing

	// Features are installed into FEAT_n / FEAT_n_SIG.
	Features feature.Set
}

// Result is one finished build.
type Result struct {
	BuildID  string
	Image    *layout.Image
	Manifest *persistence.BuildManifest

	// pending is registered by Builder.Commit.
	pending *carRegistration
}

// Pending reports whether res still has a registration waiting for Commit.
func (res *Result) Pending() bool {
	return res.pending != nil
}

type carRegistration struct {
	carID     feature.CarID
	carPublic []byte
}
