package dialogue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/PabloGalante/resq-agent/internal/app/dialogue"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in        string
		formatted string
		digits    string
		ok        bool
	}{
		{"9876543210", "98765-43210", "9876543210", true},
		{"98765 43210", "98765-43210", "9876543210", true},
		{"(987) 654-3210", "98765-43210", "9876543210", true},
		{"987654321", "", "987654321", false},
		{"+91 98765 43210", "", "919876543210", false},
		{"no digits", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			formatted, digits, ok := dialogue.NormalizePhone(tt.in)
			assert.Equal(t, tt.formatted, formatted)
			assert.Equal(t, tt.digits, digits)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestCallerIDNumber(t *testing.T) {
	assert.Equal(t, "98765-43210", dialogue.CallerIDNumber("+919876543210"))
	assert.Equal(t, "12345", dialogue.CallerIDNumber("12345"))
	assert.Equal(t, "", dialogue.CallerIDNumber("  "))
}
