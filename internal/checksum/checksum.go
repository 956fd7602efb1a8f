// Package checksum fingerprints note content so unchanged input is not re-embedded.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String is Sum for text.
func String(s string) string {
	return Sum([]byte(s))
}
