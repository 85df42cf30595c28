package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{
			name:     "topics keep their case and first order",
			input:    []string{" public.listing", "public.hearing", "public.listing ", "", "Public.Hearing"},
			expected: []string{"public.listing", "public.hearing", "Public.Hearing"},
		},
		{name: "only blanks", input: []string{" ", "\t"}, expected: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestDedupeAndTrimLower(t *testing.T) {
	assert.Equal(t,
		[]string{"smith", "tfl1000001", "alex"},
		DedupeAndTrimLower([]string{"Smith", " TFL1000001", "smith ", "Alex", "ALEX"}),
	)
}
