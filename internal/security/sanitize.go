// Package security guards the places where data-derived strings reach
// output schemas and file names.
package security

import "strings"

// SanitizeIdentifier makes a safe schema token from an arbitrary string.
// It replaces any character that is not an ASCII letter, digit or
// underscore with an underscore, collapses repeated underscores and caps
// the result length. Message types and station IDs arrive verbatim from
// recorded JSON, so anything embedded in a column name or file name goes
// through here first.
func SanitizeIdentifier(s string) string {
	if s == "" {
		return "unknown"
	}
	var b strings.Builder
	// Parquet and SQL column names stay readable well below this cap.
	const maxLen = 64
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_':
			if !lastUnderscore {
				b.WriteRune(r)
				lastUnderscore = true
			}
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unknown"
	}
	return out
}
