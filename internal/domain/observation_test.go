package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate(" 1999-12-31 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("31/12/1999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `parse date "31/12/1999"`)
}

func TestClean(t *testing.T) {
	rows := []Observation{
		obs("US", 2000, 15),
		obs("US", 2000, math.NaN()),
		obs("US", 2000, math.Inf(1)),
		obs("US", 2000, 120),
		obs("US", 2000, -100),
		{Country: "US", Temperature: 300, Unit: Kelvin},
	}

	kept, rejected := Clean(rows, DefaultQualityBounds)

	assert.Equal(t, 3, rejected)
	require.Len(t, kept, 3)
	assert.Equal(t, 15.0, kept[0].Temperature)
	assert.Equal(t, -100.0, kept[1].Temperature, "bounds are inclusive")
	assert.Equal(t, Kelvin, kept[2].Unit)
}

func TestNewSummaryTable(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { SetClock(nil) })

	summaries := Aggregate([]Observation{
		obs("US", 2000, 1), obs("DE", 2000, 2), obs("FR", 2000, 3),
	}, PerCountry, 3.0)

	table := NewSummaryTable(summaries, PerCountry, Celsius, 3.0)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, "DE", table.Rows[0].Key.String())
	assert.Equal(t, "FR", table.Rows[1].Key.String())
	assert.Equal(t, "US", table.Rows[2].Key.String())
	assert.Equal(t, fixed, table.GeneratedAt)
	assert.Equal(t, summaries, table.Map())
}

func TestStatSummary_SetStat(t *testing.T) {
	var s StatSummary
	for i, f := range NoDataSummary(AllKey, Celsius, 3).StatFields() {
		s.SetStat(f.Name, float64(i))
	}
	for i, f := range s.StatFields() {
		assert.Equal(t, float64(i), f.Value, f.Name)
	}
}

func TestRoundAndFormat(t *testing.T) {
	assert.Equal(t, 1.2346, Round(1.23456))
	assert.Equal(t, -0.5, Round(-0.50004))
	assert.True(t, math.IsNaN(Round(math.NaN())))
	assert.Equal(t, "5.0000", FormatStat(5))
	assert.Equal(t, "-12.3457", FormatStat(-12.345678))
}

func TestRoundAndFormat_NegativeZero(t *testing.T) {
	for _, v := range []float64{math.Copysign(0, -1), -0.00001, -0.00004} {
		assert.False(t, math.Signbit(Round(v)), "Round(%v)", v)
		assert.Equal(t, "0.0000", FormatStat(v), "FormatStat(%v)", v)
	}
}

func TestReservedCountry(t *testing.T) {
	assert.True(t, ReservedCountry("ALL"))
	assert.True(t, ReservedCountry(" all "))
	assert.False(t, ReservedCountry("AL"))
	assert.False(t, ReservedCountry(""))
}

func TestStatSummary_NonFinite(t *testing.T) {
	s := Summarize(Group{Key: CountryKey("US"), Values: []float64{1, 2}}, 3)
	assert.Empty(t, s.NonFinite())

	s.Mean = math.Inf(1)
	issues := s.NonFinite()
	require.Len(t, issues, 1)
	assert.Equal(t, FieldIssue{Key: "US", Field: ColMean, Value: math.Inf(1)}, issues[0])

	assert.Len(t, NoDataSummary(AllKey, Celsius, 3).NonFinite(), 8)
}
