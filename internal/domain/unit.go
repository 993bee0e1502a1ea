package domain

import (
	"fmt"
	"strings"
)

// Unit is a linear temperature scale. The zero value is Celsius.
type Unit uint8

const (
	Celsius Unit = iota
	Fahrenheit
	Kelvin
)

const kelvinOffset = 273.15

// Units lists every supported unit in declaration order.
var Units = []Unit{Celsius, Fahrenheit, Kelvin}

func (u Unit) String() string {
	switch u {
	case Celsius:
		return "celsius"
	case Fahrenheit:
		return "fahrenheit"
	case Kelvin:
		return "kelvin"
	default:
		return fmt.Sprintf("unit(%d)", uint8(u))
	}
}

// ParseUnit accepts the unit name or its one-letter abbreviation, case-insensitively.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "celsius", "c":
		return Celsius, nil
	case "fahrenheit", "f":
		return Fahrenheit, nil
	case "kelvin", "k":
		return Kelvin, nil
	default:
		return Celsius, fmt.Errorf("unknown temperature unit %q", s)
	}
}

func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *Unit) UnmarshalText(b []byte) error {
	parsed, err := ParseUnit(string(b))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// Convert maps a Celsius value to the target unit.
func Convert(celsius float64, to Unit) float64 {
	switch to {
	case Fahrenheit:
		return celsius*9/5 + 32
	case Kelvin:
		return celsius + kelvinOffset
	default:
		return celsius
	}
}

// ToCelsius is the inverse of Convert.
func ToCelsius(value float64, from Unit) float64 {
	switch from {
	case Fahrenheit:
		return (value - 32) * 5 / 9
	case Kelvin:
		return value - kelvinOffset
	default:
		return value
	}
}

// Rescale converts value between any two units. Same-unit calls return value unchanged.
func Rescale(value float64, from, to Unit) float64 {
	if from == to {
		return value
	}
	return Convert(ToCelsius(value, from), to)
}

// ConvertAll returns a copy of rows with every temperature expressed in to.
// Rows already in the target unit are copied as-is.
func ConvertAll(rows []Observation, to Unit) []Observation {
	out := make([]Observation, len(rows))
	for i, row := range rows {
		row.Temperature = Rescale(row.Temperature, row.Unit, to)
		row.Unit = to
		out[i] = row
	}
	return out
}
