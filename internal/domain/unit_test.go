package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name    string
		celsius float64
		to      Unit
		want    float64
	}{
		{"freezing to fahrenheit", 0, Fahrenheit, 32},
		{"boiling to fahrenheit", 100, Fahrenheit, 212},
		{"minus forty meets", -40, Fahrenheit, -40},
		{"freezing to kelvin", 0, Kelvin, 273.15},
		{"absolute zero to kelvin", -273.15, Kelvin, 0},
		{"celsius is identity", 21.5, Celsius, 21.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Convert(tt.celsius, tt.to), tolerance)
		})
	}
}

func TestRescale_RoundTrip(t *testing.T) {
	values := []float64{-89.2, -40, 0, 12.345, 37, 56.7}
	for _, from := range Units {
		for _, to := range Units {
			for _, v := range values {
				there := Rescale(v, from, to)
				back := Rescale(there, to, from)
				assert.InDelta(t, v, back, 1e-9, "%s -> %s -> %s for %v", from, to, from, v)
			}
		}
	}
}

func TestRescale_SameUnitIsExact(t *testing.T) {
	v := 0.1 + 0.2
	for _, u := range Units {
		assert.Equal(t, v, Rescale(v, u, u))
	}
}

func TestConvertAll(t *testing.T) {
	rows := []Observation{obs("US", 2000, 0), obs("FR", 2000, 100)}

	got := ConvertAll(rows, Fahrenheit)

	require.Len(t, got, 2)
	assert.Equal(t, 32.0, got[0].Temperature)
	assert.Equal(t, 212.0, got[1].Temperature)
	assert.Equal(t, Fahrenheit, got[0].Unit)
	assert.Equal(t, 0.0, rows[0].Temperature, "input rows are not modified")
	assert.Equal(t, Celsius, rows[0].Unit)
}

func TestConvertAll_Idempotent(t *testing.T) {
	once := ConvertAll([]Observation{obs("US", 2000, 25)}, Kelvin)
	twice := ConvertAll(once, Kelvin)
	assert.Equal(t, once, twice)
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		in      string
		want    Unit
		wantErr bool
	}{
		{"", Celsius, false},
		{"C", Celsius, false},
		{"celsius", Celsius, false},
		{" Fahrenheit ", Fahrenheit, false},
		{"f", Fahrenheit, false},
		{"KELVIN", Kelvin, false},
		{"k", Kelvin, false},
		{"rankine", Celsius, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUnit(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnit_TextRoundTrip(t *testing.T) {
	for _, u := range Units {
		b, err := u.MarshalText()
		require.NoError(t, err)

		var got Unit
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, u, got)
	}
}
