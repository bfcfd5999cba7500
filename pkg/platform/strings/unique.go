// Package strings holds small slice helpers shared by request handling.
package strings

import (
	"strings"
)

// Unique trims each value, drops blanks and keeps the first occurrence of
// every key. key maps a trimmed value to its canonical form and may be nil,
// in which case the trimmed value is its own key. Returned values are the
// canonical forms, in input order.
func Unique(values []string, key func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	if key == nil {
		key = func(s string) string { return s }
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		k := key(trimmed)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
