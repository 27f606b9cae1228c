// Package feature issues and verifies feature-activation tokens.
//
// A token binds a car ID to a random 4-byte nonce under the Manufacturer's
// signing key:
//
//	message   = car_id (4, big-endian) || nonce (4)
//	signature = ECDSA-P256-SHA256(message) as r (32) || s (32)
//
// There are three feature slots. Each token is signed on its own and the
// slots are not chained, so re-issuing or revoking one slot never affects the
// others. Set models this as a fixed array indexed by slot.
//
// Verification failure is an ordinary result (false), not an error. Only a
// malformed signature encoding (r or s outside [1, n-1]) is reported as
// ErrInvalidSignatureEncoding.
package feature
