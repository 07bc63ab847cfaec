package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Generate hashes the non-empty parts joined with "|" and returns the first
// 16 bytes of the SHA-256 digest as a 32-character hex string.
func Generate(parts ...string) string {
	hash := Sum(parts...)
	return hex.EncodeToString(hash[:16])
}

// Full is like Generate but returns the whole 64-character digest.
func Full(parts ...string) string {
	hash := Sum(parts...)
	return hex.EncodeToString(hash[:])
}

// Sum returns the SHA-256 digest of the non-empty parts joined with "|".
func Sum(parts ...string) [sha256.Size]byte {
	filtered := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	return sha256.Sum256([]byte(strings.Join(filtered, "|")))
}

// Validate reports whether parts produce the stored fingerprint.
func Validate(fingerprint string, parts ...string) bool {
	return Generate(parts...) == fingerprint
}
