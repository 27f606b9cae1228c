package log

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.plog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("audit file was not created")
	}
}

func TestFileLoggerWritesCBOR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.plog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	event := Event{
		Timestamp: time.Now(),
		BuildID:   "build-123",
		Category:  CategoryImage,
		Role:      "car",
		CarID:     "00000001",
		Digest:    "ab12",
	}

	logger.Log(event)
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read audit file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("audit file is empty")
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if decoded.BuildID != event.BuildID {
		t.Errorf("BuildID: got %q, want %q", decoded.BuildID, event.BuildID)
	}
	if decoded.Category != CategoryImage {
		t.Errorf("Category: got %v, want IMAGE", decoded.Category)
	}
	if !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, event.Timestamp)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.plog")

	for _, id := range []string{"first", "second"} {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger failed: %v", err)
		}
		logger.Log(Event{Timestamp: time.Now(), BuildID: id})
		logger.Close()
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var ids []string
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		ids = append(ids, ev.BuildID)
	}
	if len(ids) != 2 || ids[0] != "first" || ids[1] != "second" {
		t.Errorf("events = %v, want [first second]", ids)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "audit.plog"))
	if err != nil {
		t.Fatal(err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	// Logging after close is a no-op
	logger.Log(Event{BuildID: "late"})
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.plog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				logger.Log(Event{Timestamp: time.Now(), BuildID: "b", Category: CategoryKey})
			}
		}()
	}
	wg.Wait()
	logger.Close()

	reader, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	count := 0
	for {
		if _, err := reader.Next(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
	if count != 100 {
		t.Errorf("count = %d, want 100", count)
	}
}

func TestFileLoggerStampsAndCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.plog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	before := time.Now()
	logger.Log(Event{BuildID: "stamped", Category: CategoryKey})
	if got := logger.Count(); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != AuditFileMode {
		t.Errorf("mode = %v, want %v", info.Mode().Perm(), os.FileMode(AuditFileMode))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	ev, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if ev.Timestamp.Before(before) {
		t.Errorf("timestamp %v not stamped at write time", ev.Timestamp)
	}
}

func TestFileLoggerReportsInvalidEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.plog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatal(err)
	}

	logger.Log(Event{BuildID: "ok", Category: CategoryImage})
	logger.Log(Event{BuildID: "bad", Category: CategoryError})
	logger.Log(Event{BuildID: "ok-too", Category: CategoryImage})

	if got := logger.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
	if err := logger.Err(); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Err = %v, want ErrInvalidEvent", err)
	}
	if err := logger.Close(); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Close = %v, want ErrInvalidEvent", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
}
