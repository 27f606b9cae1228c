package log

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditFileMode is the permission of a new audit log. Events name car IDs
// and build digests.
const AuditFileMode = 0600

// FileLogger appends audit events to a file as a CBOR sequence. Each event
// is written with a single write call and synced, so a crash loses at most
// the event in flight. It is safe for concurrent use.
type FileLogger struct {
	mu     sync.Mutex
	file   *os.File
	count  int
	err    error
	closed bool
}

// NewFileLogger opens path for appending, creating it and its directory
// if needed.
func NewFileLogger(path string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, AuditFileMode)
	if err != nil {
		return nil, err
	}
	return &FileLogger{file: f}, nil
}

// Log writes an event. Events without a timestamp are stamped with the
// current time. A failure never reaches the caller; the first one is kept
// and reported by Err and Close.
func (l *FileLogger) Log(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	data, err := EncodeEvent(event)
	if err == nil {
		_, err = l.file.Write(data)
	}
	if err == nil {
		err = l.file.Sync()
	}
	if err != nil {
		if l.err == nil {
			l.err = fmt.Errorf("audit event %d: %w", l.count, err)
		}
		return
	}
	l.count++
}

// Count returns the number of events written.
func (l *FileLogger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Err returns the first write failure, if any.
func (l *FileLogger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close closes the file and returns the first write failure together with
// any close error. Later calls return nil and later Log calls are ignored.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	return errors.Join(l.err, l.file.Close())
}

var _ Logger = (*FileLogger)(nil)
