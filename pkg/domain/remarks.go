package domain

import "strings"

// NoRemarks is recorded when an actor leaves remarks blank.
const NoRemarks = "NA"

// Remarks trims s and substitutes NoRemarks for an empty value.
func Remarks(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return NoRemarks
	}
	return s
}
