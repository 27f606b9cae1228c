package feature

import "fmt"

// Set holds at most one token per slot. Index 0 is slot 1.
type Set [NumSlots]*Token

// Put stores tok in its slot, replacing any previous token for that slot.
func (fs *Set) Put(tok *Token) error {
	if tok == nil || !tok.Slot.Valid() {
		return ErrInvalidSlot
	}
	fs[tok.Slot.index()] = tok
	return nil
}

// Get returns the token for slot, or nil.
func (fs *Set) Get(slot Slot) *Token {
	if !slot.Valid() {
		return nil
	}
	return fs[slot.index()]
}

// Revoke clears slot. Other slots are untouched.
func (fs *Set) Revoke(slot Slot) error {
	if !slot.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, slot)
	}
	fs[slot.index()] = nil
	return nil
}

// Slots returns the occupied slot numbers in ascending order.
func (fs *Set) Slots() []Slot {
	var out []Slot
	for i, tok := range fs {
		if tok != nil {
			out = append(out, Slot(i+1))
		}
	}
	return out
}
