// Package persistence writes provisioning artifacts to disk.
//
// Images, secrets and manifests are written with WriteFileAtomic so an
// interrupted build never leaves a partially written file at the target path.
// Build manifests are stored as JSON next to the image they describe.
package persistence
