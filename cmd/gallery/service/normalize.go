package service

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize prepares submitted text for storage and matching: decompose
// combined unicode characters (NFKD) so searches can strip marks, trim
// leading/trailing whitespace, and collapse interior whitespace runs to a
// single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(norm.NFKD.String(s)), " ")
}

// normalizeAllowed keeps only the allowed keys of fields, normalized. A key
// present with an empty value is kept; absent keys stay absent, so callers
// can distinguish "clear this" from "leave unchanged".
func normalizeAllowed(allowed []string, fields map[string]string) map[string]any {
	patch := make(map[string]any)
	for _, key := range allowed {
		if value, ok := fields[key]; ok {
			patch[key] = Normalize(value)
		}
	}
	return patch
}
