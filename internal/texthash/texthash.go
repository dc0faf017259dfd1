// Package texthash computes content hashes used for review fingerprints and
// duplicate-body detection.
package texthash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// Hash64 computes a fast 64-bit non-cryptographic hash of the UTF-8 bytes of s,
// suitable for clustering and cache keys. Empty input maps to the sentinel 0;
// callers must not treat the sentinel as collision-free.
func Hash64(s string) uint64 {
	if s == "" {
		return 0
	}
	return xxhash.Sum64String(s)
}

// SHA256Hex computes the SHA-256 digest of the UTF-8 bytes of s and returns a
// lowercase hex string. Used for fingerprints and fraud-sensitive dedup.
// Empty input maps to the sentinel "".
func SHA256Hex(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
