package jsonfile

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-stats-etl/internal/domain"
)

func TestWriteSummaries(t *testing.T) {
	s := domain.Summarize(domain.Group{Key: domain.AllKey, Values: []float64{20}}, 3)

	var buf bytes.Buffer
	issues, err := WriteSummaries(&buf, domain.SummaryTable{Rows: []domain.StatSummary{s}})
	require.NoError(t, err)
	assert.Empty(t, issues)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "ALL", got[0]["key"])
	assert.Equal(t, 20.0, got[0]["p95"])
	assert.Equal(t, "celsius", got[0]["unit"])
	assert.Contains(t, buf.String(), `"mean": 20.0000`, "fixed four decimals on the wire")

	keys := make([]string, 0, len(got[0]))
	for k := range got[0] {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, domain.SummaryColumns, keys)
}

func TestWriteSummaries_Order(t *testing.T) {
	table := domain.NewSummaryTable(domain.Aggregate([]domain.Observation{
		{Country: "US", Temperature: 1},
		{Country: "BR", Temperature: 2},
		{Country: "FR", Temperature: 3},
	}, domain.PerCountry, 3), domain.PerCountry, domain.Celsius, 3)

	var buf bytes.Buffer
	_, err := WriteSummaries(&buf, table)
	require.NoError(t, err)

	br := strings.Index(buf.String(), `"BR"`)
	fr := strings.Index(buf.String(), `"FR"`)
	us := strings.Index(buf.String(), `"US"`)
	assert.True(t, br < fr && fr < us, "objects sorted by key")
}

func TestWriteSummaries_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteSummaries(&buf, domain.SummaryTable{})
	require.NoError(t, err)
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteSummaries_NonFiniteBecomesNull(t *testing.T) {
	s := domain.NoDataSummary(domain.CountryKey("FR"), domain.Celsius, 3)

	var buf bytes.Buffer
	issues, err := WriteSummaries(&buf, domain.SummaryTable{Rows: []domain.StatSummary{s}})
	require.NoError(t, err)
	assert.Len(t, issues, 8)
	assert.Contains(t, buf.String(), `"median": null`)
	assert.True(t, json.Valid(buf.Bytes()))
}

func TestSummaries_RoundTrip(t *testing.T) {
	us := domain.Summarize(domain.Group{Key: domain.CountryKey("US"), Unit: domain.Fahrenheit, Values: []float64{-3.33333, 41, 99.87654}}, 1)
	fr := domain.NoDataSummary(domain.CountryKey("FR"), domain.Fahrenheit, 1)

	var buf bytes.Buffer
	_, err := WriteSummaries(&buf, domain.SummaryTable{Rows: []domain.StatSummary{fr, us}})
	require.NoError(t, err)

	got, err := ReadSummaries(&buf)
	require.NoError(t, err)

	require.Len(t, got.Rows, 2)
	assert.Equal(t, domain.Fahrenheit, got.Unit)
	assert.True(t, math.IsNaN(got.Rows[0].Percentiles.P95))
	assert.Equal(t, -3.3333, got.Rows[1].Min)
	assert.Equal(t, 99.8765, got.Rows[1].Max)
	assert.Equal(t, us.OutlierCount, got.Rows[1].OutlierCount)
}

func TestReadSummaries_Errors(t *testing.T) {
	for _, in := range []string{"{", `[{"key":"US","unit":"rankine"}]`, `[{"key":"US","colour":"red"}]`} {
		_, err := ReadSummaries(strings.NewReader(in))
		assert.ErrorIs(t, err, domain.ErrRead, in)
	}
}

func TestMarshalSummary(t *testing.T) {
	s := domain.Summarize(domain.Group{Key: domain.CountryKey("NO"), Values: []float64{-1, 1}}, 3)
	s.Percentiles.P90 = math.NaN()

	b, issues, err := MarshalSummary(s)
	require.NoError(t, err)

	require.Len(t, issues, 1)
	assert.JSONEq(t, `{"key":"NO","count":2,"min":-1,"max":1,"mean":0,"median":0,
		"p25":-0.5,"p75":0.5,"p90":null,"p95":0.9,"outlier_count":0,"unit":"celsius"}`, string(b))
}
