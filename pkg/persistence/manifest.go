package persistence

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// ManifestVersion is the current version of the manifest file format.
const ManifestVersion = 1

// ManifestSuffix is appended to an image path to name its manifest.
const ManifestSuffix = ".json"

// BuildManifest describes one produced memory image. It never contains
// secret material.
type BuildManifest struct {
	// Version is the manifest file format version.
	Version int `json:"version"`

	// SavedAt is when the manifest was written.
	SavedAt time.Time `json:"saved_at"`

	// BuildID is the UUID of the build invocation.
	BuildID string `json:"build_id"`

	// Role is the device role ("car" or "fob").
	Role string `json:"role"`

	// LayoutVersion is the offset map version the image was encoded with.
	LayoutVersion int `json:"layout_version"`

	// CarID is the hex car ID, if the image carries one.
	CarID string `json:"car_id,omitempty"`

	// FillByte is the byte used for unprovisioned regions.
	FillByte uint8 `json:"fill_byte"`

	// Slots lists the slot names that were populated.
	Slots []string `json:"slots,omitempty"`

	// Paired is true for a fob image built with pairing material.
	Paired bool `json:"paired,omitempty"`

	// SHA256 is the hex digest of the image bytes.
	SHA256 string `json:"sha256"`

	// Size is the image length in bytes.
	Size int `json:"size"`
}

// ManifestStore manages a single manifest file.
type ManifestStore struct {
	mu   sync.Mutex
	path string
}

// NewManifestStore creates a store for the manifest at path.
func NewManifestStore(path string) *ManifestStore {
	return &ManifestStore{path: path}
}

// ManifestPath returns the manifest path for an image path.
func ManifestPath(imagePath string) string {
	return imagePath + ManifestSuffix
}

// Path returns the manifest file path.
func (s *ManifestStore) Path() string {
	return s.path
}

// Save persists the manifest atomically.
func (s *ManifestStore) Save(m *BuildManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.Version = ManifestVersion
	if m.SavedAt.IsZero() {
		m.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	return WriteFileAtomic(s.path, data, 0644)
}

// Load reads the manifest from disk.
// Returns nil, nil if the file doesn't exist.
func (s *ManifestStore) Load() (*BuildManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m := &BuildManifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Clear removes the manifest file.
func (s *ManifestStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
