package security

import (
	"strings"
	"testing"
)

func TestSanitizeIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain type", "CAM", "CAM"},
		{"underscored type", "cam_low", "cam_low"},
		{"slash separated", "SPATEM/MAPEM", "SPATEM_MAPEM"},
		{"surrounding spaces", " CAM ", "CAM"},
		{"schema metacharacters", "type=INT64, evil", "type_INT64_evil"},
		{"collapsed runs", "a//__//b", "a_b"},
		{"empty", "", "unknown"},
		{"only separators", "///", "unknown"},
		{"non-ascii letters", "дénm", "nm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeIdentifier(tt.input); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSanitizeIdentifierCapsLength(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := SanitizeIdentifier(long)
	if len(got) != 64 {
		t.Errorf("expected 64 characters, got %d", len(got))
	}
}
