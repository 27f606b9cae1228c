package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/carfob/carfob-go/pkg/log"
)

// ViewOptions specifies filtering criteria for the log view command.
type ViewOptions struct {
	BuildID   string
	Role      string
	CarID     string
	Category  string
	TimeStart string
	TimeEnd   string
}

// RunView prints the events of an audit log in human-readable form.
func RunView(path string, opts ViewOptions, w io.Writer) error {
	filter := log.Filter{
		BuildID: opts.BuildID,
		Role:    opts.Role,
		CarID:   opts.CarID,
	}

	if opts.Category != "" {
		c, err := log.ParseCategory(opts.Category)
		if err != nil {
			return err
		}
		filter.Category = &c
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [build:id] CATEGORY role
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [build:%s] %-7s %s\n", ts, shortenID(event.BuildID), event.Category, event.Role)

	if event.Message != "" {
		fmt.Fprintf(w, "  %s\n", event.Message)
	}
	if event.CarID != "" {
		fmt.Fprintf(w, "  Car ID: %s\n", event.CarID)
	}
	if event.Slot != "" {
		fmt.Fprintf(w, "  Slot: %s\n", event.Slot)
	}
	if event.Digest != "" {
		fmt.Fprintf(w, "  SHA256: %s\n", event.Digest)
	}
	if event.Error != nil {
		fmt.Fprintf(w, "  Error in %s: %s\n", event.Error.Step, event.Error.Message)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenID returns the first 8 characters of a build ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
