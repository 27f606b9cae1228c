// Package provision builds Car and Fob memory images.
//
// A Builder owns one entropy source and one set of sinks (audit logger,
// slog logger, optional registry). Each Build* call is one build
// invocation: it gets a fresh UUID build ID, validates every key before any
// layout work, and returns an immutable image. Nothing is written to disk
// until Write is called, and Write replaces the image atomically.
//
// Image contents:
//
//	Car: CAR_SECRET, MAN_PUBLIC, FOB_PUBLIC, CAR_ID, optional MSG_* slots.
//	Unpaired fob: CAR_PUBLIC, optional FEAT_n/FEAT_n_SIG.
//	Paired fob: adds FOB_SECRET, FOB_SECRET_ENC, FOB_SALT, PIN_HASH,
//	CAR_ID and FOB_IS_PAIRED = 00 00 00 01.
package provision
