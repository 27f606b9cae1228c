// Package pairing derives the PIN-protected pairing material stored on a
// paired Fob.
//
// # Construction
//
//	salt           = random(12)
//	pin_verifier   = SHA-256(salt || 0x00 || pin)
//	wrap_key       = SHA-256(pin || 0x00 || salt)
//	wrapped_secret = wrap_key XOR fob_secret
//
// The 0x00 separator keeps the pin and salt boundaries unambiguous.
//
// # Security Notes
//
// This is key wrapping by a hash-derived mask, not authenticated encryption.
// A modified wrapped_secret unwraps to a different value without any error.
// Anyone who obtains salt and wrapped_secret (or salt and pin_verifier) can
// run an offline search over the PIN space, so the secret is only as strong
// as the PIN's entropy.
//
// VerifyPIN compares digests in constant time. Firmware consumers that check
// PIN entries at runtime must do the same.
package pairing
