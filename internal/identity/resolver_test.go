package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
)

func directoryFixture() []model.RM {
	inactive := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	return []model.RM{
		{EmployeeID: "EMP001", DisplayName: "Ishu Mavar", IsActive: true, Profile: "Mutual Funds"},
		{EmployeeID: "EMP002", DisplayName: "Sagar Maini", IsActive: true, Profile: "Insurance"},
		{EmployeeID: "EMP003", DisplayName: "Priya Nair", IsActive: false, InactiveSince: &inactive, Profile: "Operations"},
	}
}

func TestResolver_MatchingOrder(t *testing.T) {
	r := NewResolver(directoryFixture())

	tests := []struct {
		name   string
		input  string
		wantID string
	}{
		{"exact", "Ishu Mavar", "EMP001"},
		{"case insensitive", "ishu mavar", "EMP001"},
		{"upper", "SAGAR MAINI", "EMP002"},
		{"whitespace", "  Sagar Maini  ", "EMP002"},
		{"title cased input", "priya nair", "EMP003"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(tt.input)
			assert.True(t, res.Found)
			assert.Equal(t, tt.wantID, res.EmployeeID)
		})
	}
}

func TestResolver_UnknownFallsBackToRawName(t *testing.T) {
	r := NewResolver(directoryFixture())

	res := r.Resolve("Ghost Employee")
	assert.False(t, res.Found)
	assert.Equal(t, "Ghost Employee", res.EmployeeID)
	assert.Equal(t, "Ghost Employee", res.CanonicalName)
}

func TestResolver_CachesByNormalizedKey(t *testing.T) {
	r := NewResolver(directoryFixture())

	first := r.Resolve("ishu mavar")
	second := r.Resolve("ISHU   MAVAR")
	assert.Equal(t, first, second)
}

func TestEligibleForMonth_SixMonthWindow(t *testing.T) {
	r := NewResolver(directoryFixture())

	month := func(s string) model.Month {
		m, err := model.ParseMonth(s)
		require.NoError(t, err)
		return m
	}

	// inactive_since 2025-03-15: eligible 2025-03 through 2025-08 only.
	eligible := []string{"2025-03", "2025-04", "2025-05", "2025-06", "2025-07", "2025-08"}
	for _, s := range eligible {
		assert.True(t, r.EligibleForMonth("EMP003", month(s)), s)
	}
	for _, s := range []string{"2025-09", "2025-10", "2026-03"} {
		assert.False(t, r.EligibleForMonth("EMP003", month(s)), s)
	}
	// Months before the departure are also outside the window arithmetic,
	// but scoring never asks about them for an inactive RM going forward.
	assert.False(t, r.EligibleForMonth("EMP003", month("2025-02")))

	// Active RMs and unknown ids are always eligible.
	assert.True(t, r.EligibleForMonth("EMP001", month("2030-01")))
	assert.True(t, r.EligibleForMonth("UNKNOWN", month("2025-09")))
}

func TestSkipList(t *testing.T) {
	s := NewSkipList([]string{"House Account", "test rm"})

	assert.True(t, s.Contains("house account"))
	assert.True(t, s.Contains("  TEST   RM "))
	assert.False(t, s.Contains("Ishu Mavar"))

	var nilList *SkipList
	assert.False(t, nilList.Contains("anything"))
}

func TestResolver_Replace(t *testing.T) {
	r := NewResolver(directoryFixture())
	require.True(t, r.Resolve("Ishu Mavar").Found)

	r.Replace([]model.RM{{EmployeeID: "EMP009", DisplayName: "New Hire", IsActive: true}})

	assert.False(t, r.Resolve("Ishu Mavar").Found)
	assert.True(t, r.Resolve("new hire").Found)
}
