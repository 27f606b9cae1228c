package layout

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/carfob/carfob-go/pkg/wire"
)

// Values maps slot names to the bytes to place in them. A nil value means
// the slot is not supplied.
type Values map[SlotName][]byte

// Image is a complete memory image. It is immutable once returned.
type Image struct {
	role    Role
	version int
	fill    byte
	data    [ImageSize]byte
}

// Encode builds the image for role from m and values. Every byte outside a
// supplied value is fill. Unknown slots, oversized values, or a map for a
// different role abort the build without producing an image.
func Encode(role Role, m *OffsetMap, values Values, fill byte) (*Image, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: no offset map for %s image", ErrUnknownRole, role)
	}
	if m.Role() != role {
		return nil, fmt.Errorf("%w: %s map used for %s image", ErrRoleMismatch, m.Role(), role)
	}

	// Validate everything before writing so failures are deterministic
	names := make([]SlotName, 0, len(values))
	for name, v := range values {
		if v == nil {
			continue
		}
		s, ok := m.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s not in %s layout v%d", ErrUnknownSlot, name, role, m.Version())
		}
		if len(v) > int(s.Size) {
			return nil, fmt.Errorf("%w: %s is %d bytes, value is %d", ErrSlotOverflow, name, s.Size, len(v))
		}
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	img := &Image{role: role, version: m.Version(), fill: fill}
	for i := range img.data {
		img.data[i] = fill
	}
	for _, name := range names {
		s, _ := m.Lookup(name)
		copy(img.data[s.Offset:], values[name])
	}
	return img, nil
}

// Parse wraps raw image bytes read back from storage.
func Parse(m *OffsetMap, data []byte, fill byte) (*Image, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: no offset map", ErrUnknownRole)
	}
	if err := wire.CheckLen("image", data, ImageSize); err != nil {
		return nil, err
	}
	img := &Image{role: m.Role(), version: m.Version(), fill: fill}
	copy(img.data[:], data)
	return img, nil
}

// DecodeSlot returns a copy of the full size-byte window of slot name. The
// content is not interpreted.
func DecodeSlot(img *Image, m *OffsetMap, name SlotName) ([]byte, error) {
	if img == nil || m == nil {
		return nil, fmt.Errorf("%w: missing image or offset map", ErrUnknownRole)
	}
	if img.role != m.Role() {
		return nil, fmt.Errorf("%w: %s image read with %s map", ErrRoleMismatch, img.role, m.Role())
	}
	s, ok := m.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlot, name)
	}
	return wire.Clone(img.data[s.Offset:s.End()]), nil
}

// IsFill reports whether every byte of b equals fill.
func IsFill(b []byte, fill byte) bool {
	for _, c := range b {
		if c != fill {
			return false
		}
	}
	return true
}

// Populated returns the slots of m whose window is not entirely fill, in
// layout order.
func (img *Image) Populated(m *OffsetMap) []SlotName {
	var out []SlotName
	for _, s := range m.Slots() {
		if !IsFill(img.data[s.Offset:s.End()], img.fill) {
			out = append(out, s.Name)
		}
	}
	return out
}

// Values decodes every slot of m that is populated. Useful for re-encoding
// an image with some slots replaced.
func (img *Image) Values(m *OffsetMap) (Values, error) {
	vals := make(Values)
	for _, name := range img.Populated(m) {
		b, err := DecodeSlot(img, m, name)
		if err != nil {
			return nil, err
		}
		vals[name] = b
	}
	return vals, nil
}

// Bytes returns a copy of the image bytes.
func (img *Image) Bytes() []byte {
	return wire.Clone(img.data[:])
}

// Len is always ImageSize.
func (img *Image) Len() int {
	return len(img.data)
}

// Role returns the image role.
func (img *Image) Role() Role {
	return img.role
}

// LayoutVersion returns the version of the map the image was built with.
func (img *Image) LayoutVersion() int {
	return img.version
}

// Fill returns the image's fill byte.
func (img *Image) Fill() byte {
	return img.fill
}

// Digest returns the hex SHA-256 of the image bytes.
func (img *Image) Digest() string {
	sum := sha256.Sum256(img.data[:])
	return hex.EncodeToString(sum[:])
}

// Equal reports whether two images hold the same bytes.
func (img *Image) Equal(other *Image) bool {
	return other != nil && bytes.Equal(img.data[:], other.data[:])
}
