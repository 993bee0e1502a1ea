package domain

import (
	"math"
	"slices"
	"strconv"
	"time"
)

// PercentileLevels are the percentiles reported for every group.
var PercentileLevels = [...]int{25, 75, 90, 95}

// Percentiles holds the interpolated order statistics of a group.
type Percentiles struct {
	P25 float64
	P75 float64
	P90 float64
	P95 float64
}

// At returns the percentile for a level in PercentileLevels.
func (p Percentiles) At(level int) (float64, bool) {
	switch level {
	case 25:
		return p.P25, true
	case 75:
		return p.P75, true
	case 90:
		return p.P90, true
	case 95:
		return p.P95, true
	default:
		return 0, false
	}
}

// StatSummary is the descriptive statistics of one group, in Unit.
type StatSummary struct {
	Key              AggregateKey
	Count            uint64
	Min              float64
	Max              float64
	Mean             float64
	Median           float64
	Percentiles      Percentiles
	OutlierCount     uint64
	OutlierThreshold float64 // standard deviations
	Unit             Unit
}

// NoDataSummary is the summary of an empty group. Every statistic is NaN so a
// writer can never mistake it for a real zero; writers degrade it to their
// missing sentinel.
func NoDataSummary(key AggregateKey, unit Unit, threshold float64) StatSummary {
	nan := math.NaN()
	return StatSummary{
		Key:              key,
		Min:              nan,
		Max:              nan,
		Mean:             nan,
		Median:           nan,
		Percentiles:      Percentiles{P25: nan, P75: nan, P90: nan, P95: nan},
		OutlierThreshold: threshold,
		Unit:             unit,
	}
}

// Column names shared by every output format, in output order.
const (
	ColKey          = "key"
	ColCount        = "count"
	ColMin          = "min"
	ColMax          = "max"
	ColMean         = "mean"
	ColMedian       = "median"
	ColP25          = "p25"
	ColP75          = "p75"
	ColP90          = "p90"
	ColP95          = "p95"
	ColOutlierCount = "outlier_count"
	ColUnit         = "unit"
)

// SummaryColumns is the fixed column order of a summary row.
var SummaryColumns = []string{
	ColKey, ColCount, ColMin, ColMax, ColMean, ColMedian,
	ColP25, ColP75, ColP90, ColP95, ColOutlierCount, ColUnit,
}

// StatField is one named floating-point statistic of a summary.
type StatField struct {
	Name  string
	Value float64
}

// StatFields returns the floating-point statistics in column order.
func (s StatSummary) StatFields() [8]StatField {
	return [8]StatField{
		{ColMin, s.Min},
		{ColMax, s.Max},
		{ColMean, s.Mean},
		{ColMedian, s.Median},
		{ColP25, s.Percentiles.P25},
		{ColP75, s.Percentiles.P75},
		{ColP90, s.Percentiles.P90},
		{ColP95, s.Percentiles.P95},
	}
}

// SetStat assigns a statistic by column name. Unknown names are ignored.
func (s *StatSummary) SetStat(name string, v float64) {
	switch name {
	case ColMin:
		s.Min = v
	case ColMax:
		s.Max = v
	case ColMean:
		s.Mean = v
	case ColMedian:
		s.Median = v
	case ColP25:
		s.Percentiles.P25 = v
	case ColP75:
		s.Percentiles.P75 = v
	case ColP90:
		s.Percentiles.P90 = v
	case ColP95:
		s.Percentiles.P95 = v
	}
}

// Finite reports whether v can be written as a plain number.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Precision is the number of decimal places every writer emits.
const Precision = 4

// Round rounds v to Precision decimal places. Non-finite values pass through.
// Values that round to zero come back as +0.
func Round(v float64) float64 {
	if !Finite(v) {
		return v
	}
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		return 0
	}
	return r
}

// FormatStat renders Round(v) with exactly Precision decimal places.
func FormatStat(v float64) string {
	return strconv.FormatFloat(Round(v), 'f', Precision, 64)
}

// FieldIssue records a statistic that was written as the missing sentinel.
type FieldIssue struct {
	Key   string
	Field string
	Value float64
}

// NonFinite returns an issue for every statistic that cannot be written as a
// plain number.
func (s StatSummary) NonFinite() []FieldIssue {
	var issues []FieldIssue
	for _, f := range s.StatFields() {
		if !Finite(f.Value) {
			issues = append(issues, FieldIssue{Key: s.Key.String(), Field: f.Name, Value: f.Value})
		}
	}
	return issues
}

// SummaryTable is the canonical, ordered record shape handed to every writer.
type SummaryTable struct {
	Mode        Mode
	Unit        Unit
	Threshold   float64
	GeneratedAt time.Time
	Rows        []StatSummary
}

// NewSummaryTable orders summaries by key and stamps the table with the
// package clock.
func NewSummaryTable(summaries map[AggregateKey]StatSummary, mode Mode, unit Unit, threshold float64) SummaryTable {
	rows := make([]StatSummary, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, s)
	}
	slices.SortFunc(rows, func(a, b StatSummary) int { return a.Key.Compare(b.Key) })

	return SummaryTable{
		Mode:        mode,
		Unit:        unit,
		Threshold:   threshold,
		GeneratedAt: clock.Now().UTC(),
		Rows:        rows,
	}
}

// Map returns the rows keyed by AggregateKey.
func (t SummaryTable) Map() map[AggregateKey]StatSummary {
	m := make(map[AggregateKey]StatSummary, len(t.Rows))
	for _, r := range t.Rows {
		m[r.Key] = r
	}
	return m
}

// OutputReport describes one committed output.
type OutputReport struct {
	Format   string
	Target   string // file path, or topic for a publisher
	Rows     int
	Bytes    int64
	Degraded []FieldIssue
}
