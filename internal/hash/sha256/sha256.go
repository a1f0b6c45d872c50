// Package sha256 hex-digests byte slices for content-addressed naming.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces hex-encoded SHA-256 digests.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Sum returns the full 64-character hex digest of data.
func (Hasher) Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SumShort returns the first n hex characters of the digest, suitable
// for object-path segments where the full digest is overkill.
func (h Hasher) SumShort(data []byte, n int) string {
	digest := h.Sum(data)
	if n <= 0 || n >= len(digest) {
		return digest
	}
	return digest[:n]
}
