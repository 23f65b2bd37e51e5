// Package util holds small helpers shared across packages.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random 32-hex-char identifier, optionally prefixed
// ("ft_..."). Collisions are not a practical concern at this size.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
