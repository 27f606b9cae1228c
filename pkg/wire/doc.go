// Package wire defines the fixed-width byte encodings shared by the
// provisioning components.
//
// Every field that lands in a device memory image has a fixed size: private
// scalars and digests are 32 bytes, public points and signatures are 64
// bytes, car IDs and nonces are 4 bytes. All integers are big-endian.
//
// # Errors
//
// ErrLengthMismatch is returned whenever a buffer is not exactly the size its
// field requires. Callers test for it with errors.Is.
package wire
