package strings

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnique(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		key      func(string) string
		expected []string
	}{
		{"nil slice", nil, nil, nil},
		{"empty slice", []string{}, nil, []string{}},
		{"trims and drops blanks", []string{" 10.0.0.1 ", "", "  "}, nil, []string{"10.0.0.1"}},
		{"first occurrence wins", []string{"b", "a", "b", "c", "a"}, nil, []string{"b", "a", "c"}},
		{"canonical key", []string{"2001:DB8::1", "2001:db8::1", "10.0.0.1"}, strings.ToLower, []string{"2001:db8::1", "10.0.0.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Unique(tt.input, tt.key))
		})
	}
}
