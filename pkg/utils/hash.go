package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashString returns a stable hex digest of parts joined by NUL.
func HashString(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
