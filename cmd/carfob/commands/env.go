// Package commands implements the carfob CLI commands.
package commands

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/carfob/carfob-go/pkg/config"
	"github.com/carfob/carfob-go/pkg/keys"
	"github.com/carfob/carfob-go/pkg/log"
	"github.com/carfob/carfob-go/pkg/provision"
	"github.com/carfob/carfob-go/pkg/registry"
)

// Env is the shared state of one command invocation.
type Env struct {
	Config  *config.Config
	Keys    *keys.Dir
	Builder *provision.Builder
	Logger  *slog.Logger

	// Registry is nil unless the config names one.
	Registry *registry.Registry

	closers []io.Closer
}

// NewEnv opens the sinks named in cfg. src is the entropy source; nil
// selects the system source.
func NewEnv(cfg *config.Config, logger *slog.Logger, src io.Reader) (*Env, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	env := &Env{
		Config: cfg,
		Keys:   keys.NewDir(cfg.SecretsDir),
		Logger: logger,
	}

	bc := provision.DefaultBuilderConfig()
	bc.Entropy = src
	bc.FillByte = cfg.FillByte.Byte()
	bc.Logger = logger

	sinks := []log.Logger{log.NewSlogAdapter(logger)}
	if cfg.AuditLog != "" {
		fl, err := log.NewFileLogger(cfg.AuditLog)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		env.closers = append(env.closers, fl)
		sinks = append(sinks, fl)
	}
	bc.Audit = log.NewMultiLogger(sinks...)

	if cfg.Registry != "" {
		reg, err := registry.Open(cfg.Registry)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("open registry: %w", err)
		}
		env.closers = append(env.closers, reg)
		env.Registry = reg
		bc.Registry = reg
	}

	env.Builder = provision.NewBuilder(bc)
	return env, nil
}

// Close releases the audit log and registry.
func (e *Env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// issuerPublic loads the manufacturer public key. It returns nil, nil when
// the secrets directory has none.
func (e *Env) issuerPublic() (*ecdsa.PublicKey, error) {
	pub, err := e.Keys.ReadPublic(keys.NameManufacturer)
	if errors.Is(err, keys.ErrKeyNotFound) {
		return nil, nil
	}
	return pub, err
}
