package fingerprint

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestGenerateShapeAndStability(t *testing.T) {
	g := NewGenerator()

	first, err := g.Generate()
	if err != nil {
		t.Skipf("no usable machine identity in this environment: %v", err)
	}
	require.True(t, hexPattern.MatchString(first), "fingerprint must be 64 lowercase hex chars")

	second, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, first, second, "same machine must fingerprint identically")
}

func TestGeneratorsAgree(t *testing.T) {
	a, err := NewGenerator().Generate()
	if err != nil {
		t.Skipf("no usable machine identity in this environment: %v", err)
	}
	b, err := NewGenerator().Generate()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
