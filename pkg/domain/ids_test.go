package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "progression/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs"
//
// Justification: Inbound events and commands carry ids from upstream systems.
// Parsing is the trust boundary.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseCaseID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseCaseID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseCaseID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseCaseID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, CaseID(validUUID), id)
	})
}

func TestParseID_BoundaryInputs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHearingID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIDs_JSON(t *testing.T) {
	type payload struct {
		CaseID    CaseID     `json:"caseId"`
		HearingID *HearingID `json:"hearingId,omitempty"`
	}

	t.Run("round trips as canonical string", func(t *testing.T) {
		caseID := CaseID(uuid.New())
		raw, err := json.Marshal(payload{CaseID: caseID})
		require.NoError(t, err)
		assert.JSONEq(t, `{"caseId":"`+caseID.String()+`"}`, string(raw))

		var decoded payload
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, caseID, decoded.CaseID)
		assert.Nil(t, decoded.HearingID)
	})

	t.Run("empty string decodes to nil id", func(t *testing.T) {
		var decoded payload
		require.NoError(t, json.Unmarshal([]byte(`{"caseId":""}`), &decoded))
		assert.True(t, decoded.CaseID.IsNil())
	})

	t.Run("malformed id fails decoding", func(t *testing.T) {
		var decoded payload
		err := json.Unmarshal([]byte(`{"caseId":"nope"}`), &decoded)
		require.Error(t, err)
	})
}

// TestAllIDTypes_ConsistentBehavior ensures all ID types have identical parsing behavior.
func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	validUUID := uuid.New().String()
	invalidInputs := []string{"", "invalid", uuid.Nil.String()}

	parsers := map[string]func(string) error{
		"case":        func(s string) error { _, err := ParseCaseID(s); return err },
		"defendant":   func(s string) error { _, err := ParseDefendantID(s); return err },
		"master":      func(s string) error { _, err := ParseMasterDefendantID(s); return err },
		"offence":     func(s string) error { _, err := ParseOffenceID(s); return err },
		"hearing":     func(s string) error { _, err := ParseHearingID(s); return err },
		"application": func(s string) error { _, err := ParseApplicationID(s); return err },
		"link group":  func(s string) error { _, err := ParseLinkGroupID(s); return err },
		"event":       func(s string) error { _, err := ParseEventID(s); return err },
	}

	for name, parse := range parsers {
		t.Run(name+" accepts valid UUID", func(t *testing.T) {
			require.NoError(t, parse(validUUID))
		})
		for _, input := range invalidInputs {
			t.Run(name+" rejects "+input, func(t *testing.T) {
				require.Error(t, parse(input))
			})
		}
	}
}
