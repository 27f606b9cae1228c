package persistence

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Run("CreatesFileAndParents", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out", "car.eeprom")

		if err := WriteFileAtomic(path, []byte{1, 2, 3}, 0644); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(got) != "\x01\x02\x03" {
			t.Errorf("content = %x", got)
		}
	})

	t.Run("ReplacesExisting", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "image")
		if err := os.WriteFile(path, []byte("old"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := WriteFileAtomic(path, []byte("new"), 0644); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}

		got, _ := os.ReadFile(path)
		if string(got) != "new" {
			t.Errorf("content = %q, want %q", got, "new")
		}
	})

	t.Run("Permissions", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "car_sec")
		if err := WriteFileAtomic(path, []byte("s"), 0600); err != nil {
			t.Fatalf("WriteFileAtomic() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("perm = %v, want 0600", info.Mode().Perm())
		}
	})

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "image")
		if err := WriteFileAtomic(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		entries, _ := os.ReadDir(dir)
		for _, e := range entries {
			if strings.Contains(e.Name(), ".tmp-") {
				t.Errorf("temp file left behind: %s", e.Name())
			}
		}
	})

	t.Run("FailureLeavesTargetUntouched", func(t *testing.T) {
		dir := t.TempDir()
		// Target is a non-empty directory, so the rename must fail
		path := filepath.Join(dir, "image")
		if err := os.MkdirAll(filepath.Join(path, "child"), 0755); err != nil {
			t.Fatal(err)
		}

		if err := WriteFileAtomic(path, []byte("x"), 0644); err == nil {
			t.Fatal("WriteFileAtomic() expected error when target is a directory")
		}

		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Error("target directory should be left untouched")
		}
		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("dir has %d entries, want only the target", len(entries))
		}
	})
}

func TestManifestStore(t *testing.T) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		dir := t.TempDir()
		store := NewManifestStore(ManifestPath(filepath.Join(dir, "fob.eeprom")))

		m := &BuildManifest{
			BuildID:       "b1",
			Role:          "fob",
			LayoutVersion: 1,
			CarID:         "00000001",
			FillByte:      0xFF,
			Slots:         []string{"CAR_PUBLIC", "FOB_SALT"},
			Paired:        true,
			SHA256:        "abcd",
			Size:          2048,
		}
		if err := store.Save(m); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != ManifestVersion {
			t.Errorf("Version = %d, want %d", got.Version, ManifestVersion)
		}
		if got.SavedAt.IsZero() {
			t.Error("SavedAt should be set")
		}
		if got.BuildID != "b1" || got.Role != "fob" || got.CarID != "00000001" {
			t.Errorf("Load() = %+v", got)
		}
		if len(got.Slots) != 2 || !got.Paired || got.Size != 2048 {
			t.Errorf("Load() = %+v", got)
		}
	})

	t.Run("KeepsSavedAt", func(t *testing.T) {
		dir := t.TempDir()
		store := NewManifestStore(filepath.Join(dir, "m.json"))
		ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

		if err := store.Save(&BuildManifest{SavedAt: ts}); err != nil {
			t.Fatal(err)
		}
		got, _ := store.Load()
		if !got.SavedAt.Equal(ts) {
			t.Errorf("SavedAt = %v, want %v", got.SavedAt, ts)
		}
	})

	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewManifestStore(filepath.Join(t.TempDir(), "missing.json"))
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil", got)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		dir := t.TempDir()
		store := NewManifestStore(filepath.Join(dir, "m.json"))
		if err := store.Save(&BuildManifest{}); err != nil {
			t.Fatal(err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("second Clear() error = %v", err)
		}
		got, _ := store.Load()
		if got != nil {
			t.Error("manifest should be gone after Clear()")
		}
	})
}
