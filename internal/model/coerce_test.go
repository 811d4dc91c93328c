package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceFloat(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"nil", nil, 0, false},
		{"float64", 42.5, 42.5, true},
		{"int", 7, 7, true},
		{"int64", int64(9), 9, true},
		{"string", "123.45", 123.45, true},
		{"string with commas", "1,00,000", 100000, true},
		{"string with spaces", "  250 ", 250, true},
		{"empty string", "", 0, false},
		{"garbage string", "n/a", 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceFloat(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "ishu mavar", NormalizeName("  Ishu   MAVAR "))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestTitleName(t *testing.T) {
	assert.Equal(t, "Sagar Maini", TitleName("sagar  maini"))
	assert.Equal(t, "Ishu Mavar", TitleName("ISHU MAVAR"))
}

func TestNameVariants(t *testing.T) {
	got := NameVariants("Rahul Kumar Sharma Jr")
	assert.Equal(t, []string{"Rahul Kumar", "Rahul Kumar Sharma", "Rahul"}, got)

	// Two-token names only yield the first token.
	assert.Equal(t, []string{"Ishu"}, NameVariants("Ishu Mavar"))

	// Single-token names have no variants.
	assert.Nil(t, NameVariants("Ishu"))
}
