package layout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ImageSize is the length of every memory image.
const ImageSize = 2048

// DefaultFillByte is the canonical value of unprovisioned bytes.
const DefaultFillByte byte = 0xFF

// Layout errors.
var (
	ErrUnknownSlot     = errors.New("unknown slot")
	ErrSlotOverflow    = errors.New("slot overflow")
	ErrSlotOverlap     = errors.New("slots overlap")
	ErrSlotOutOfBounds = errors.New("slot out of bounds")
	ErrDuplicateSlot   = errors.New("duplicate slot")
	ErrRoleMismatch    = errors.New("role mismatch")
	ErrUnknownRole     = errors.New("unknown role")
)

// Role is the device role an image is built for.
type Role uint8

// Device roles.
const (
	RoleCar Role = 1
	RoleFob Role = 2
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case RoleCar:
		return "car"
	case RoleFob:
		return "fob"
	default:
		return "unknown"
	}
}

// ParseRole parses "car" or "fob" (case-insensitive).
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "car":
		return RoleCar, nil
	case "fob":
		return RoleFob, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// SlotName names a slot within a role's image.
type SlotName string

// Slot is a named byte window.
type Slot struct {
	Name   SlotName
	Offset uint16
	Size   uint16
}

// End returns the first offset past the slot.
func (s Slot) End() int {
	return int(s.Offset) + int(s.Size)
}

// OffsetMap is an immutable, validated slot table for one role.
type OffsetMap struct {
	role    Role
	version int
	slots   []Slot
	index   map[SlotName]int
}

// NewOffsetMap validates slots and returns the map. Slots must be unique,
// non-empty, inside the image, and must not overlap.
func NewOffsetMap(role Role, version int, slots ...Slot) (*OffsetMap, error) {
	m := &OffsetMap{
		role:    role,
		version: version,
		slots:   append([]Slot(nil), slots...),
		index:   make(map[SlotName]int, len(slots)),
	}

	for i, s := range m.slots {
		if _, dup := m.index[s.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSlot, s.Name)
		}
		if s.Size == 0 || s.End() > ImageSize {
			return nil, fmt.Errorf("%w: %s at %#x size %d", ErrSlotOutOfBounds, s.Name, s.Offset, s.Size)
		}
		m.index[s.Name] = i
	}

	sorted := append([]Slot(nil), m.slots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.End() > int(cur.Offset) {
			return nil, fmt.Errorf("%w: %s and %s", ErrSlotOverlap, prev.Name, cur.Name)
		}
	}

	return m, nil
}

// MustOffsetMap is NewOffsetMap that panics on an invalid table.
// Use only for package-level layout constants.
func MustOffsetMap(role Role, version int, slots ...Slot) *OffsetMap {
	m, err := NewOffsetMap(role, version, slots...)
	if err != nil {
		panic(fmt.Sprintf("layout: invalid %s offset map v%d: %v", role, version, err))
	}
	return m
}

// Role returns the role this map describes.
func (m *OffsetMap) Role() Role {
	return m.role
}

// Version returns the layout version.
func (m *OffsetMap) Version() int {
	return m.version
}

// Slots returns the slots in declaration order.
func (m *OffsetMap) Slots() []Slot {
	return append([]Slot(nil), m.slots...)
}

// Lookup returns the slot named name.
func (m *OffsetMap) Lookup(name SlotName) (Slot, bool) {
	i, ok := m.index[name]
	if !ok {
		return Slot{}, false
	}
	return m.slots[i], true
}
