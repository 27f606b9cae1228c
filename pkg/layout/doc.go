// Package layout encodes and decodes the fixed-size memory images read by
// Car and Fob firmware.
//
// # Image
//
// An image is exactly ImageSize (2048) bytes. Each role has an OffsetMap
// naming fixed-offset, fixed-size slots. Encode starts from a buffer filled
// with the build's fill byte and copies each supplied value, left-aligned,
// into its slot. Slots without a value stay entirely fill byte, which means
// "not yet provisioned".
//
// # Offset Maps
//
// CarMapV1 and FobMapV1 are the canonical layouts. Firmware reads these
// exact offsets, so they are versioned and never edited in place. An
// OffsetMap is validated once when it is built: every slot must lie inside
// the image and no two slots may overlap.
//
// # Fill Byte
//
// DefaultFillByte is 0xFF, the erased state of flash and EEPROM. It can be
// overridden per build.
//
// The encoder does no cryptography and never interprets slot contents.
package layout
