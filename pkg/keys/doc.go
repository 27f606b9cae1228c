// Package keys manages the asymmetric identities of the Car, the Fob and the
// Manufacturer.
//
// # Curve
//
// All identities live on NIST P-256. Private scalars are drawn uniformly from
// [1, n-1] by rejection sampling over the injected entropy source, so the
// same source always yields the same identity.
//
// # Serialization
//
//   - Private: 32-byte big-endian scalar
//   - Public: 64 bytes, X (32, big-endian) || Y (32, big-endian)
//
// DeserializePublic rejects points that are not on the curve. It must be used
// on any key material before that key verifies a signature.
//
// # Secrets Directory
//
// Dir stores identities as raw files <name>_sec and <name>_pub plus a SEC1
// PEM copy <name>.pem, all written atomically.
package keys
