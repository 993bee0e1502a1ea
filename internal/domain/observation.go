package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DateLayout is the textual date format used by the source dataset.
const DateLayout = "2006-01-02"

// Observation is one daily reading. Temperature is expressed in Unit, which is
// Celsius as read from the source. Extra holds the source columns this package
// does not interpret, keyed by column name; it is nil when there are none.
type Observation struct {
	Country     string
	Date        time.Time
	Temperature float64
	Unit        Unit
	Extra       map[string]any
}

// Year returns the calendar year of the reading.
func (o Observation) Year() int { return o.Date.Year() }

// ParseDate parses a "YYYY-MM-DD" date as a UTC civil date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// NormalizeCountry trims and upper-cases a country code.
func NormalizeCountry(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ReservedCountry reports whether code normalizes to AllLabel. Such a code
// cannot name a per-country group because it would read back as AllKey.
func ReservedCountry(code string) bool {
	return NormalizeCountry(code) == AllLabel
}

// QualityBounds is the plausible range for a reading, in Celsius.
type QualityBounds struct {
	MinC float64
	MaxC float64
}

// DefaultQualityBounds covers recorded surface extremes with some headroom.
var DefaultQualityBounds = QualityBounds{MinC: -100, MaxC: 70}

// Accepts reports whether celsius is finite and within the bounds.
func (b QualityBounds) Accepts(celsius float64) bool {
	if math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return false
	}
	return celsius >= b.MinC && celsius <= b.MaxC
}

// Clean drops readings that fail the quality bounds. It returns the kept rows
// in input order and the number rejected.
func Clean(rows []Observation, bounds QualityBounds) ([]Observation, int) {
	kept := make([]Observation, 0, len(rows))
	for _, row := range rows {
		if !bounds.Accepts(ToCelsius(row.Temperature, row.Unit)) {
			continue
		}
		kept = append(kept, row)
	}
	return kept, len(rows) - len(kept)
}

// ObservationBatch is everything a reader produced from one input.
type ObservationBatch struct {
	Rows    []Observation
	Skipped int // rows the reader could not decode, e.g. an unparsable date
}
