package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDurationDays(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"plain integer", "90", 90},
		{"whitespace", " 365 ", 365},
		{"empty defaults", "", DefaultDurationDays},
		{"garbage defaults", "a while", DefaultDurationDays},
		{"zero defaults", "0", DefaultDurationDays},
		{"negative defaults", "-7", DefaultDurationDays},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDurationDays(tt.input))
		})
	}
}

func TestEffectiveType(t *testing.T) {
	assert.Equal(t, TypeStandard, (&Record{}).EffectiveType(), "missing type reads as standard")
	assert.Equal(t, TypeLifetime, (&Record{Type: TypeLifetime}).EffectiveType())
}

func TestValidType(t *testing.T) {
	assert.True(t, ValidType(TypeStandard))
	assert.True(t, ValidType(TypeTrial))
	assert.True(t, ValidType(TypeLifetime))
	assert.False(t, ValidType(Type("enterprise")))
}

func TestActivated(t *testing.T) {
	rec := Record{}
	assert.False(t, rec.Activated())

	now := time.Now().UTC()
	rec.HardwareID = "a1b2c3d4e5f60718"
	rec.ActivatedAt = &now
	assert.True(t, rec.Activated())
}
