package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashUserKey returns a storage-safe namespace for a user ID so raw user ids
// never appear in object keys.
func HashUserKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
