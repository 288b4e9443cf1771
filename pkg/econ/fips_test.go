package econ

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPadFIPS(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"6075", "06075"},
		{"06075", "06075"},
		{"975", "00975"},
		{" 6085 ", "06085"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, PadFIPS(tt.raw))
		})
	}
}

func TestPadParts(t *testing.T) {
	assert.Equal(t, "06", PadState("6"))
	assert.Equal(t, "51", PadState("51"))
	assert.Equal(t, "075", PadCountyPart("75"))
	assert.Equal(t, "510", PadCountyPart("510"))
}

func TestSplitFIPS(t *testing.T) {
	state, county := SplitFIPS("06075")
	assert.Equal(t, "06", state)
	assert.Equal(t, "075", county)

	// Short codes pad before splitting.
	state, county = SplitFIPS("6085")
	assert.Equal(t, "06", state)
	assert.Equal(t, "085", county)
}

func TestValidFIPS(t *testing.T) {
	assert.True(t, ValidFIPS("06075"))
	assert.True(t, ValidFIPS("51000"))
	assert.False(t, ValidFIPS("6075"))
	assert.False(t, ValidFIPS("060751"))
	assert.False(t, ValidFIPS("06a75"))
	assert.False(t, ValidFIPS(""))
}

func TestStateFIPS(t *testing.T) {
	assert.Len(t, StateFIPS, 51)
	assert.Equal(t, "01", StateFIPS[0])
	assert.Equal(t, "56", StateFIPS[len(StateFIPS)-1])

	// Sorted and zero padded throughout.
	for i, code := range StateFIPS {
		assert.Len(t, code, 2)
		if i > 0 {
			assert.Greater(t, code, StateFIPS[i-1])
		}
	}
}
