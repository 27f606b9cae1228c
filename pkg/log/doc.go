// Package log records a structured audit trail of provisioning builds.
//
// This package defines the Logger interface and the Event type emitted while
// keys are generated, pairing material is derived, feature tokens are issued
// and images are encoded. It is separate from operational logging (slog):
// the audit trail is a complete, machine-readable record of what each build
// produced.
//
// Events never carry secret bytes. Images are identified by their SHA-256
// digest.
//
// # Basic Usage
//
//	// Console only
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// Append to a binary audit file
//	fl, _ := log.NewFileLogger("/var/lib/carfob/audit.plog")
//
//	// Both
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # File Format
//
// Audit files are a stream of CBOR-encoded events with integer keys,
// conventionally named *.plog. Reader streams them back with optional
// filtering.
package log
