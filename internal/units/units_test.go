package units

import (
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		timestamp float64
		expected  string
	}{
		{"unix seconds 2023", 1678901234, Seconds},
		{"unix seconds 2001", 1e9, Seconds},
		{"just below seconds bound", 9.999999999e9, Seconds},
		{"milliseconds lower bound", 1e10, Millis},
		{"unix milliseconds 2023", 1678901234000, Millis},
		{"just below millis bound", 9.999999999999e12, Millis},
		{"microseconds lower bound", 1e13, Micros},
		{"unix microseconds 2023", 1678901234000000, Micros},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Detect(tt.timestamp)
			if result != tt.expected {
				t.Errorf("Detect(%g) = %s, want %s", tt.timestamp, result, tt.expected)
			}
		})
	}
}

func TestToMillis(t *testing.T) {
	tests := []struct {
		name      string
		timestamp float64
		unit      string
		expected  int64
	}{
		{"seconds explicit", 1678901234, Seconds, 1678901234000},
		{"seconds auto", 1678901234, Auto, 1678901234000},
		{"fractional seconds", 1678901234.5, Seconds, 1678901234500},
		{"milliseconds explicit", 1678901234000, Millis, 1678901234000},
		{"milliseconds auto", 1678901234000, Auto, 1678901234000},
		{"microseconds explicit", 1678901234000000, Micros, 1678901234000},
		{"microseconds auto", 1678901234000000, Auto, 1678901234000},
		{"zero in millis", 0, Millis, 0},
		{"unrecognized unit treated as millis", 1500, "ns", 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToMillis(tt.timestamp, tt.unit)
			if result != tt.expected {
				t.Errorf("ToMillis(%g, %q) = %d, want %d", tt.timestamp, tt.unit, result, tt.expected)
			}
		})
	}
}

// TestRoundTrip verifies FromMillis followed by ToMillis recovers the
// original millisecond value exactly for every supported unit.
func TestRoundTrip(t *testing.T) {
	values := []int64{0, 1, 1000, 1678901234000, 9999999999999}

	for _, unit := range ValidUnits {
		for _, ms := range values {
			got := ToMillis(FromMillis(ms, unit), unit)
			if got != ms {
				t.Errorf("round trip %d via %q = %d, want %d", ms, unit, got, ms)
			}
		}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid seconds", Seconds, true},
		{"valid millis", Millis, true},
		{"valid micros", Micros, true},
		{"auto is not explicit", Auto, false},
		{"invalid unit", "ns", false},
		{"case sensitive", "MS", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	expected := "s, ms, us"
	result := GetValidUnitsString()
	if result != expected {
		t.Errorf("GetValidUnitsString() = %s, want %s", result, expected)
	}
}
