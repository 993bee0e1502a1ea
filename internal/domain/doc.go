// Package domain models daily temperature observations and the statistics
// computed over them.
//
// # Data Source
//
// Observations come from a daily weather dataset with one row per station
// reading. The columns this package cares about are:
//
//	date                 calendar date, "YYYY-MM-DD" (or a Parquet DATE)
//	country_alpha2       ISO 3166-1 alpha-2 country code, e.g. "US", "FR"
//	temp_mean_c_approx   daily mean temperature in degrees Celsius
//
// Every other column is carried through untouched in [Observation.Extra].
//
// # Units
//
// Celsius is the canonical storage unit. Conversion happens exactly once, after
// filtering and before aggregation:
//
//	Fahrenheit = C × 9/5 + 32
//	Kelvin     = C + 273.15
//
// [ConvertAll] rescales from each row's current unit, so running it twice with
// the same target is a no-op rather than a double conversion.
//
// # Quality Control
//
// Readings that are NaN, infinite, or outside the plausible surface range
// (default −100 °C to 70 °C, covering Antarctica to Death Valley) are dropped
// by [Clean] before any other stage sees them.
//
// # Grouping
//
// A run groups either per country or into a single aggregate group. Both modes
// share one key space: [AggregateKey] is a country code or the sentinel
// [AllKey], rendered as "ALL".
//
// # Statistics
//
// For each non-empty group:
//
//	min, max      first and last order statistic
//	mean          arithmetic mean
//	median        middle value; mean of the two central values for even n
//	p25..p95      linear interpolation between order statistics at
//	              rank = p/100 × (n−1)  (Hyndman & Fan type 7)
//	outliers      values with |x − mean| > threshold × σ, where σ is the
//	              population standard deviation; groups with n < 2 have none
//
// Outliers are counted, never removed: min, max and the percentiles always
// describe the full group.
//
// # Errors
//
// All stages report failures through [Error] with one of four kinds
// ([ErrConfig], [ErrRead], [ErrEncoding], [ErrIO]). Field-level encoding
// problems are recoverable and surface as [FieldIssue] values instead.
package domain
