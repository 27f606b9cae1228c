package provision

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carfob/carfob-go/pkg/entropy"
	"github.com/carfob/carfob-go/pkg/keys"
	"github.com/carfob/carfob-go/pkg/layout"
	"github.com/carfob/carfob-go/pkg/log"
	"github.com/carfob/carfob-go/pkg/persistence"
)

// Builder produces memory images.
type Builder struct {
	config BuilderConfig
	logger *slog.Logger
	audit  log.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(config BuilderConfig) *Builder {
	if config.Entropy == nil {
		config.Entropy = entropy.System()
	}
	b := &Builder{
		config: config,
		logger: config.Logger,
		audit:  config.Audit,
	}
	if b.audit == nil {
		b.audit = log.NoopLogger{}
	}
	return b
}

// FillByte returns the configured fill byte.
func (b *Builder) FillByte() byte {
	return b.config.FillByte
}

// GenerateSecrets draws the car, fob and manufacturer identities.
func (b *Builder) GenerateSecrets() (*Secrets, error) {
	buildID := newBuildID()

	names := []string{keys.NameCar, keys.NameFob, keys.NameManufacturer}
	ids := make([]*keys.Identity, len(names))
	for i, name := range names {
		id, err := keys.Generate(b.config.Entropy)
		if err != nil {
			b.fail(buildID, "", "generate "+name, err)
			return nil, err
		}
		ids[i] = id
		b.emit(log.Event{BuildID: buildID, Category: log.CategoryKey, Slot: name, Message: "identity generated"})
	}

	b.debug("secrets generated", "build_id", buildID)
	return &Secrets{Car: ids[0], Fob: ids[1], Manufacturer: ids[2]}, nil
}

// SaveSecrets writes every identity in s to dir.
func SaveSecrets(dir *keys.Dir, s *Secrets) error {
	for _, item := range []struct {
		name string
		id   *keys.Identity
	}{
		{keys.NameCar, s.Car},
		{keys.NameFob, s.Fob},
		{keys.NameManufacturer, s.Manufacturer},
	} {
		if err := dir.WriteIdentity(item.name, item.id); err != nil {
			return fmt.Errorf("write %s: %w", item.name, err)
		}
	}
	return nil
}

// finish wraps img into a Result with its manifest and emits the image event.
func (b *Builder) finish(buildID, carID string, paired bool, img *layout.Image) *Result {
	m := NewManifest(buildID, img)
	m.CarID = carID
	m.Paired = paired

	b.emit(log.Event{
		BuildID:  buildID,
		Category: log.CategoryImage,
		Role:     img.Role().String(),
		CarID:    carID,
		Digest:   m.SHA256,
		Message:  "image encoded",
	})
	b.debug("image encoded",
		"build_id", buildID,
		"role", img.Role().String(),
		"sha256", m.SHA256,
		"slots", len(m.Slots),
	)
	return &Result{BuildID: buildID, Image: img, Manifest: m}
}

// NewManifest describes img. It carries no secret material.
func NewManifest(buildID string, img *layout.Image) *persistence.BuildManifest {
	m := &persistence.BuildManifest{
		Version:       persistence.ManifestVersion,
		BuildID:       buildID,
		Role:          img.Role().String(),
		LayoutVersion: img.LayoutVersion(),
		FillByte:      img.Fill(),
		SHA256:        img.Digest(),
		Size:          img.Len(),
	}
	if om, err := layout.MapFor(img.Role()); err == nil {
		for _, name := range img.Populated(om) {
			m.Slots = append(m.Slots, string(name))
		}
	}
	return m
}

func (b *Builder) emit(ev log.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.audit.Log(ev)
}

func (b *Builder) fail(buildID, role, step string, err error) {
	b.emit(log.Event{
		BuildID:  buildID,
		Category: log.CategoryError,
		Role:     role,
		Error:    &log.ErrorData{Step: step, Message: err.Error()},
	})
	if b.logger != nil {
		b.logger.Warn("build failed", "build_id", buildID, "step", step, "error", err)
	}
}

func (b *Builder) debug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func newBuildID() string {
	return uuid.New().String()
}
