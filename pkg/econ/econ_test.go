package econ

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyString(t *testing.T) {
	k := Key{Year: 2022, FIPS: "06075", Sector: "62"}
	assert.Equal(t, "2022 06075 62", k.String())
}

func TestKeyLess(t *testing.T) {
	tests := []struct {
		name string
		a, b Key
		want bool
	}{
		{
			name: "year orders first",
			a:    Key{Year: 2022, FIPS: "06085", Sector: "62"},
			b:    Key{Year: 2023, FIPS: "06075", Sector: "42"},
			want: true,
		},
		{
			name: "fips orders within year",
			a:    Key{Year: 2022, FIPS: "06075", Sector: "62"},
			b:    Key{Year: 2022, FIPS: "06085", Sector: "42"},
			want: true,
		},
		{
			name: "sector orders within county",
			a:    Key{Year: 2022, FIPS: "06075", Sector: "42"},
			b:    Key{Year: 2022, FIPS: "06075", Sector: "62"},
			want: true,
		},
		{
			name: "equal keys are not less",
			a:    Key{Year: 2022, FIPS: "06075", Sector: "42"},
			b:    Key{Year: 2022, FIPS: "06075", Sector: "42"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Less(tt.b))
			if tt.want {
				assert.False(t, tt.b.Less(tt.a))
			}
		})
	}
}

func TestKeySortOrder(t *testing.T) {
	keys := []Key{
		{Year: 2023, FIPS: "06075", Sector: "42"},
		{Year: 2022, FIPS: "06085", Sector: "62"},
		{Year: 2022, FIPS: "06075", Sector: "62"},
		{Year: 2022, FIPS: "06075", Sector: "42"},
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	want := []Key{
		{Year: 2022, FIPS: "06075", Sector: "42"},
		{Year: 2022, FIPS: "06075", Sector: "62"},
		{Year: 2022, FIPS: "06085", Sector: "62"},
		{Year: 2023, FIPS: "06075", Sector: "42"},
	}
	assert.Equal(t, want, keys)
}

func TestPointerHelpers(t *testing.T) {
	f := Float(1234.5)
	assert.NotNil(t, f)
	assert.Equal(t, 1234.5, *f)

	b := Bool(true)
	assert.NotNil(t, b)
	assert.True(t, *b)
}
