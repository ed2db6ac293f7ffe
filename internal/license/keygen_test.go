package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyMatchesCanonicalPattern(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := GenerateKey()
		require.NoError(t, ValidateKeyFormat(key))
		assert.False(t, seen[key], "generated keys must not repeat")
		seen[key] = true
	}
}

func TestMaskKey(t *testing.T) {
	masked := MaskKey("AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE")
	assert.NotContains(t, masked, "BBBB")
	assert.Contains(t, masked, "AAAAAAAA")
}
