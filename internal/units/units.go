// Package units provides shared constants and conversion for epoch timestamp units
package units

import "math"

// Timestamp unit constants
const (
	Auto    = "" // detect from magnitude
	Seconds = "s"
	Millis  = "ms"
	Micros  = "us"
)

// ValidUnits contains all valid explicit unit values
var ValidUnits = []string{Seconds, Millis, Micros}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "s, ms, us"
}

// Detect infers the unit of an epoch timestamp from its magnitude.
// Unix seconds stay below 10^10 until the year 2286, milliseconds below
// 10^13 over the same window, anything larger is treated as microseconds.
func Detect(timestamp float64) string {
	switch {
	case timestamp < 1e10:
		return Seconds
	case timestamp < 1e13:
		return Millis
	default:
		return Micros
	}
}

// ToMillis converts an epoch timestamp to canonical milliseconds.
// With unit Auto the unit is detected from the value's magnitude.
func ToMillis(timestamp float64, unit string) int64 {
	if unit == Auto {
		unit = Detect(timestamp)
	}
	switch unit {
	case Seconds:
		return int64(math.Round(timestamp * 1000))
	case Micros:
		return int64(math.Round(timestamp / 1000))
	default:
		return int64(math.Round(timestamp))
	}
}

// FromMillis expresses a canonical millisecond timestamp in the given unit.
// ToMillis(FromMillis(ms, unit), unit) == ms for every valid unit.
func FromMillis(ms int64, unit string) float64 {
	switch unit {
	case Seconds:
		return float64(ms) / 1000
	case Micros:
		return float64(ms) * 1000
	default:
		return float64(ms)
	}
}
