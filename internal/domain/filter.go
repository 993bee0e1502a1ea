package domain

import (
	"fmt"
	"math"
	"slices"
)

// YearRange is an inclusive range of calendar years.
type YearRange struct {
	Start int
	End   int
}

// Contains reports whether year falls within the range, bounds included.
func (r YearRange) Contains(year int) bool {
	return year >= r.Start && year <= r.End
}

// FilterSpec selects observations by country and year. The zero value keeps
// every row.
type FilterSpec struct {
	countries map[string]struct{}
	years     *YearRange
}

// NewFilterSpec validates and builds a filter. An empty country list keeps all
// countries. A nil start or end leaves that side of the year range open; when
// both are nil no year filtering happens. start > end is a config error.
func NewFilterSpec(countries []string, start, end *int) (FilterSpec, error) {
	var spec FilterSpec

	if len(countries) > 0 {
		spec.countries = make(map[string]struct{}, len(countries))
		for _, c := range countries {
			if code := NormalizeCountry(c); code != "" {
				spec.countries[code] = struct{}{}
			}
		}
	}

	if start == nil && end == nil {
		return spec, nil
	}

	r := YearRange{Start: math.MinInt, End: math.MaxInt}
	if start != nil {
		r.Start = *start
	}
	if end != nil {
		r.End = *end
	}
	if r.Start > r.End {
		return FilterSpec{}, ConfigError("filter", fmt.Errorf("start year %d is after end year %d", r.Start, r.End))
	}
	spec.years = &r
	return spec, nil
}

// Countries returns the selected country codes, sorted. Empty means all.
func (f FilterSpec) Countries() []string {
	out := make([]string, 0, len(f.countries))
	for c := range f.countries {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Years returns the year range and whether one is set.
func (f FilterSpec) Years() (YearRange, bool) {
	if f.years == nil {
		return YearRange{}, false
	}
	return *f.years, true
}

// Match reports whether a single observation passes the filter.
func (f FilterSpec) Match(o Observation) bool {
	if len(f.countries) > 0 {
		if _, ok := f.countries[NormalizeCountry(o.Country)]; !ok {
			return false
		}
	}
	if f.years != nil && !f.years.Contains(o.Year()) {
		return false
	}
	return true
}

// Filter returns the rows that match spec, preserving order. An empty result
// is valid.
func Filter(rows []Observation, spec FilterSpec) []Observation {
	out := make([]Observation, 0, len(rows))
	for _, row := range rows {
		if spec.Match(row) {
			out = append(out, row)
		}
	}
	return out
}
