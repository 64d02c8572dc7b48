// Package poolid derives fixed-width pool identifiers from venue pool keys.
// The engine has no interest in the key's internal structure; it only needs a
// stable lookup key of uniform shape.
package poolid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Compute derives a deterministic pool ID from an opaque venue pool key.
// Formula: SHA256("pool|" + key), hex-encoded (64 characters). The prefix
// keeps pool IDs disjoint from any other identifier namespace hashed with
// the same scheme.
func Compute(poolKey string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("pool|%s", poolKey)))
	return hex.EncodeToString(hash[:])
}

// IsID reports whether s has the shape of a computed pool ID.
func IsID(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
