package license

import (
	"fmt"
	"regexp"
	"strings"
)

// Canonical key pattern: five hyphenated blocks of uppercase alphanumerics,
// 8-4-4-4-12 (e.g. AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE). Issued keys are
// uppercased UUIDs, which match this shape.
var keyPattern = regexp.MustCompile(`^[A-Z0-9]{8}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{12}$`)

// Hardware fingerprints are lowercase hex, 16 to 64 characters. Covers the
// common digest widths clients send without admitting arbitrary strings.
var hardwareIDPattern = regexp.MustCompile(`^[0-9a-f]{16,64}$`)

// HardwarePrefixLen is how much of a bound fingerprint may be disclosed in
// rejection payloads. Never return more.
const HardwarePrefixLen = 8

// NormalizeKey canonicalizes a license key for lookup: trimmed and uppercased.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// ValidateKeyFormat checks the canonical grouped key pattern. Malformed keys
// must be rejected before the store is touched.
func ValidateKeyFormat(key string) error {
	key = NormalizeKey(key)
	if key == "" {
		return fmt.Errorf("license key is required")
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("license key must match XXXXXXXX-XXXX-XXXX-XXXX-XXXXXXXXXXXX")
	}
	return nil
}

// NormalizeHardwareID canonicalizes a device fingerprint: trimmed, lowercased.
func NormalizeHardwareID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ValidateHardwareID checks the fingerprint shape. Any other shape is
// rejected before the store is touched.
func ValidateHardwareID(id string) error {
	id = NormalizeHardwareID(id)
	if id == "" {
		return fmt.Errorf("hardware id is required")
	}
	if !hardwareIDPattern.MatchString(id) {
		return fmt.Errorf("hardware id must be 16-64 hexadecimal characters")
	}
	return nil
}

// HardwarePrefix returns the short disclosure form of a fingerprint. A full
// bound identifier is never revealed to a foreign device.
func HardwarePrefix(id string) string {
	id = NormalizeHardwareID(id)
	if len(id) <= HardwarePrefixLen {
		return id
	}
	return id[:HardwarePrefixLen]
}
