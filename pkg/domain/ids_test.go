package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "renewals/pkg/domain-errors"
)

// TestParseID_Invariants validates the parsing invariant:
// "IDs must be positive decimal integers that fit in 64 bits"
func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseEmployeeID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects zero", func(t *testing.T) {
		_, err := ParseEmployeeID("0")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects negative", func(t *testing.T) {
		_, err := ParseDomainID("-42")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts positive integer", func(t *testing.T) {
		id, err := ParseTransferID("42")
		require.NoError(t, err)
		assert.Equal(t, TransferID(42), id)
		assert.Equal(t, "42", id.String())
	})
}

func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "1; DROP TABLE transfers;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "12\x0034", true},
		{"Oversized input", strings.Repeat("9", 40), true},
		{"Overflow", "9223372036854775808", true},
		{"Whitespace only", "   ", true},
		{"Leading plus", "+7", true},
		{"Hex", "0x10", true},

		{"Max int64", "9223372036854775807", false},
		{"Leading zeros", "007", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVaptID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	for _, input := range []string{"", "abc", "0", "-1"} {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, e1 := ParseEmployeeID(input)
			_, e2 := ParseDomainID(input)
			_, e3 := ParseVaptID(input)
			_, e4 := ParseIPID(input)
			_, e5 := ParseTransferID(input)
			_, e6 := ParseVaptRenewalID(input)
			_, e7 := ParseIPRenewalID(input)

			for _, err := range []error{e1, e2, e3, e4, e5, e6, e7} {
				require.Error(t, err)
			}
		})
	}
}

func TestFlexibleInt(t *testing.T) {
	var v struct {
		A FlexibleInt `json:"a"`
		B FlexibleInt `json:"b"`
		C FlexibleInt `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 12, "b": "34", "c": null}`), &v))
	assert.Equal(t, FlexibleInt(12), v.A)
	assert.Equal(t, FlexibleInt(34), v.B)
	assert.Equal(t, FlexibleInt(0), v.C)

	err := json.Unmarshal([]byte(`{"a": "x1"}`), &v)
	require.Error(t, err)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("hod")
	require.NoError(t, err)
	assert.Equal(t, RoleHOD, r)

	r, err = ParseRole(" NetOps ")
	require.NoError(t, err)
	assert.Equal(t, RoleNetOps, r)

	_, err = ParseRole("admin")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestRemarks(t *testing.T) {
	assert.Equal(t, NoRemarks, Remarks(""))
	assert.Equal(t, NoRemarks, Remarks("   "))
	assert.Equal(t, "looks good", Remarks(" looks good "))
}
