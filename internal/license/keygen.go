package license

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateKey mints a fresh license key in the canonical grouped pattern.
// An uppercased UUID already has the 8-4-4-4-12 shape.
func GenerateKey() string {
	return strings.ToUpper(uuid.New().String())
}

// MaskKey shortens a key for logs: first and last block only.
func MaskKey(key string) string {
	key = NormalizeKey(key)
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "-****-" + key[len(key)-12:]
}
