package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes audit events to an slog.Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event at Debug level, or Error level for CategoryError.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("build_id", event.BuildID),
		slog.String("category", event.Category.String()),
	}

	if event.Role != "" {
		attrs = append(attrs, slog.String("role", event.Role))
	}
	if event.CarID != "" {
		attrs = append(attrs, slog.String("car_id", event.CarID))
	}
	if event.Slot != "" {
		attrs = append(attrs, slog.String("slot", event.Slot))
	}
	if event.Digest != "" {
		attrs = append(attrs, slog.String("sha256", event.Digest))
	}

	level := slog.LevelDebug
	if event.Error != nil {
		level = slog.LevelError
		attrs = append(attrs,
			slog.String("step", event.Error.Step),
			slog.String("error", event.Error.Message),
		)
	}

	msg := event.Message
	if msg == "" {
		msg = "audit"
	}
	a.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
