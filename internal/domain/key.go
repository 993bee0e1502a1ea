package domain

import (
	"fmt"
	"strings"
)

// Mode selects how observations are grouped. Exactly one mode is active per run.
type Mode uint8

const (
	PerCountry Mode = iota
	Aggregated
)

// ModeFor maps the aggregate flag onto a Mode.
func ModeFor(aggregate bool) Mode {
	if aggregate {
		return Aggregated
	}
	return PerCountry
}

func (m Mode) String() string {
	switch m {
	case PerCountry:
		return "per_country"
	case Aggregated:
		return "aggregated"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// AllLabel is the rendered form of AllKey.
const AllLabel = "ALL"

// AggregateKey identifies a group: a country code, or the all-countries sentinel.
type AggregateKey struct {
	country string
	all     bool
}

// AllKey is the single key used in Aggregated mode.
var AllKey = AggregateKey{all: true}

// CountryKey returns the key for a country code.
func CountryKey(code string) AggregateKey {
	return AggregateKey{country: NormalizeCountry(code)}
}

// ParseKey is the inverse of String.
func ParseKey(s string) AggregateKey {
	if strings.TrimSpace(s) == AllLabel {
		return AllKey
	}
	return CountryKey(s)
}

// KeyFor returns the group an observation belongs to under mode.
func KeyFor(o Observation, mode Mode) AggregateKey {
	if mode == Aggregated {
		return AllKey
	}
	return CountryKey(o.Country)
}

func (k AggregateKey) IsAll() bool { return k.all }

// Country returns the country code, or "" for AllKey.
func (k AggregateKey) Country() string { return k.country }

func (k AggregateKey) String() string {
	if k.all {
		return AllLabel
	}
	return k.country
}

// Compare orders keys alphabetically by country code, with AllKey first.
func (k AggregateKey) Compare(other AggregateKey) int {
	switch {
	case k.all && other.all:
		return 0
	case k.all:
		return -1
	case other.all:
		return 1
	}
	return strings.Compare(k.country, other.country)
}
