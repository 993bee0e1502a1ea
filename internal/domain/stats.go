package domain

import (
	"math"
	"slices"

	"github.com/aclements/go-moremath/stats"
)

// DefaultOutlierThreshold is the outlier cut-off in standard deviations.
const DefaultOutlierThreshold = 3.0

// Group is the set of temperature values belonging to one key, in input order.
type Group struct {
	Key    AggregateKey
	Unit   Unit
	Values []float64
}

// Partition splits rows into groups under mode in a single sequential pass.
// Groups are returned in first-seen order. Values within a group keep input
// order and are expressed in the unit of the group's first row. In PerCountry
// mode rows with a ReservedCountry code belong to no group.
func Partition(rows []Observation, mode Mode) []Group {
	index := make(map[AggregateKey]int)
	var groups []Group

	for _, row := range rows {
		if mode == PerCountry && ReservedCountry(row.Country) {
			continue
		}
		key := KeyFor(row, mode)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, Unit: row.Unit})
		}
		g := &groups[i]
		g.Values = append(g.Values, Rescale(row.Temperature, row.Unit, g.Unit))
	}
	return groups
}

// Summarize computes the statistics of one group. It sorts g.Values in place,
// so the caller must own the slice. An empty group yields NoDataSummary.
func Summarize(g Group, threshold float64) StatSummary {
	n := len(g.Values)
	if n == 0 {
		return NoDataSummary(g.Key, g.Unit, threshold)
	}

	xs := g.Values
	slices.Sort(xs)
	sample := stats.Sample{Xs: xs, Sorted: true}
	lo, hi := sample.Bounds()
	mean := sample.Mean()

	return StatSummary{
		Key:    g.Key,
		Count:  uint64(n),
		Min:    lo,
		Max:    hi,
		Mean:   mean,
		Median: median(xs),
		Percentiles: Percentiles{
			P25: percentile(xs, 25),
			P75: percentile(xs, 75),
			P90: percentile(xs, 90),
			P95: percentile(xs, 95),
		},
		OutlierCount:     countOutliers(xs, mean, threshold),
		OutlierThreshold: threshold,
		Unit:             g.Unit,
	}
}

// Aggregate partitions rows and summarizes every group sequentially. Groups
// with no rows never appear in the result.
func Aggregate(rows []Observation, mode Mode, threshold float64) map[AggregateKey]StatSummary {
	groups := Partition(rows, mode)
	out := make(map[AggregateKey]StatSummary, len(groups))
	for _, g := range groups {
		if len(g.Values) == 0 {
			continue
		}
		out[g.Key] = Summarize(g, threshold)
	}
	return out
}

// median expects sorted, non-empty input.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// percentile interpolates linearly between the order statistics around
// rank = p/100 × (n−1). sorted must be non-empty.
func percentile(sorted []float64, p float64) float64 {
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// populationStdDev divides by n, not n−1.
func populationStdDev(xs []float64, mean float64) float64 {
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// countOutliers counts values further than threshold σ from the mean. Groups
// with fewer than two values have no outliers.
func countOutliers(xs []float64, mean, threshold float64) uint64 {
	if len(xs) < 2 {
		return 0
	}
	limit := threshold * populationStdDev(xs, mean)
	var n uint64
	for _, x := range xs {
		if math.Abs(x-mean) > limit {
			n++
		}
	}
	return n
}
