// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeAndTrimLower trims and lowercases each element, dropping empties and
// duplicates. Order is preserved.
//
// Example:
//
//	DedupeAndTrimLower([]string{"  FOO ", "bar", "Foo"})
//	// Returns: []string{"foo", "bar"}
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(trimmed string) string { return strings.ToLower(trimmed) })
}

// DedupeFold trims each element and drops empties and case-insensitive
// duplicates, keeping the first-seen spelling.
//
// Example:
//
//	DedupeFold([]string{" Email", "email", "Name "})
//	// Returns: []string{"Email", "Name"}
func DedupeFold(values []string) []string {
	return dedupe(values, func(trimmed string) string { return trimmed })
}

func dedupe(values []string, emit func(string) string) []string {
	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		key := strings.ToLower(trimmed)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, emit(trimmed))
	}
	return result
}
