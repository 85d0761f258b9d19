// Package util provides common utility functions used across the simulator.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// SplitCommandLine splits a console input line into fields, keeping
// double-quoted sections together. Quotes are stripped from the fields.
// `start "maiden voyage"` yields ["start", "maiden voyage"].
func SplitCommandLine(s string) []string {
	var fields []string
	var b strings.Builder
	inQuotes := false
	flush := func() {
		if b.Len() > 0 {
			fields = append(fields, b.String())
			b.Reset()
		}
	}

	for _, r := range s {
		switch {
		case r == '"':
			if inQuotes {
				// closing quote ends the field even without whitespace
				fields = append(fields, b.String())
				b.Reset()
				inQuotes = false
			} else {
				inQuotes = true
			}
		case (r == ' ' || r == '\t') && !inQuotes:
			flush()
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return fields
}
