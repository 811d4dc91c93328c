package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-09")
	require.NoError(t, err)
	assert.Equal(t, 2025, m.Year)
	assert.Equal(t, time.September, m.Mon)
	assert.Equal(t, "2025-09", m.String())

	_, err = ParseMonth("2025-13")
	assert.Error(t, err)
	_, err = ParseMonth("garbage")
	assert.Error(t, err)
}

func TestMonthArithmetic(t *testing.T) {
	m, _ := ParseMonth("2025-01")
	assert.Equal(t, "2024-12", m.Prev().String())
	assert.Equal(t, "2025-02", m.Next().String())
	assert.Equal(t, "2026-01", m.Add(12).String())
	assert.Equal(t, "2024-01", m.Add(-12).String())
	assert.Equal(t, 12, m.Next().Index()-m.Add(-11).Index())
}

func TestMonthWindow(t *testing.T) {
	m, _ := ParseMonth("2025-09")
	assert.True(t, m.Contains(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, m.Contains(time.Date(2025, 9, 30, 23, 59, 59, 0, time.UTC)))
	assert.False(t, m.Contains(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, m.Contains(time.Date(2025, 8, 31, 23, 59, 59, 0, time.UTC)))
}

func TestFYBoundaries(t *testing.T) {
	tests := []struct {
		month   string
		mode    FYMode
		fyStart string
		qtrEnd  bool
	}{
		{"2025-04", FYApril, "2025-04", false},
		{"2025-06", FYApril, "2025-04", true},
		{"2025-09", FYApril, "2025-04", true},
		{"2026-03", FYApril, "2025-04", true},
		{"2026-02", FYApril, "2025-04", false},
		{"2025-03", FYCalendar, "2025-01", true},
		{"2025-12", FYCalendar, "2025-01", true},
		{"2025-11", FYCalendar, "2025-01", false},
	}
	for _, tt := range tests {
		t.Run(tt.month+"/"+string(tt.mode), func(t *testing.T) {
			m, err := ParseMonth(tt.month)
			require.NoError(t, err)
			assert.Equal(t, tt.fyStart, m.FYStart(tt.mode).String())
			assert.Equal(t, tt.qtrEnd, m.IsQuarterEnd(tt.mode))
		})
	}

	fyEnd, _ := ParseMonth("2026-03")
	assert.True(t, fyEnd.IsFYEnd(FYApril))
	assert.False(t, fyEnd.IsFYEnd(FYCalendar))
}

func TestQuarterStart(t *testing.T) {
	m, _ := ParseMonth("2025-09")
	assert.Equal(t, "2025-07", m.QuarterStart(FYApril).String())
	m, _ = ParseMonth("2025-04")
	assert.Equal(t, "2025-04", m.QuarterStart(FYApril).String())
	m, _ = ParseMonth("2026-02")
	assert.Equal(t, "2026-01", m.QuarterStart(FYApril).String())
}

func TestMonthsBetween(t *testing.T) {
	from, _ := ParseMonth("2025-11")
	to, _ := ParseMonth("2026-02")
	months := MonthsBetween(from, to)
	require.Len(t, months, 4)
	assert.Equal(t, "2025-11", months[0].String())
	assert.Equal(t, "2026-02", months[3].String())

	assert.Nil(t, MonthsBetween(to, from))
	assert.Len(t, MonthsBetween(from, from), 1)
}

func TestMonthJSONRoundTrip(t *testing.T) {
	m, _ := ParseMonth("2025-09")

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"2025-09"`, string(b))

	var back Month
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, m, back)

	var bad Month
	assert.Error(t, json.Unmarshal([]byte(`"september"`), &bad))
}
