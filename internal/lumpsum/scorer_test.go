package lumpsum

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

func defaultScorer(t *testing.T, strategy PenaltyStrategy) *Scorer {
	t.Helper()
	cfg, fallback := scoreconfig.NormalizeLumpsum(scoreconfig.DefaultLumpsum())
	require.False(t, fallback)
	hash, err := scoreconfig.Hash(cfg)
	require.NoError(t, err)
	return NewScorer(scoreconfig.Effective[scoreconfig.LumpsumConfig]{
		Metric: scoreconfig.MetricLumpsum,
		Config: cfg,
		Hash:   hash,
	}, strategy)
}

func month(t *testing.T, s string) model.Month {
	t.Helper()
	m, err := model.ParseMonth(s)
	require.NoError(t, err)
	return m
}

func txn(typ model.TxnType, amount float64) model.Transaction {
	return model.Transaction{
		RMName: "Ishu Mavar",
		Date:   time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC),
		Amount: amount,
		Type:   typ,
	}
}

func TestScoreMonth_PositiveMonth(t *testing.T) {
	s := defaultScorer(t, PenaltyMin)

	row, _ := s.ScoreMonth(Inputs{
		Month: month(t, "2025-09"),
		RM:    identity.Resolution{EmployeeID: "EMP001", CanonicalName: "Ishu Mavar", IsActive: true, Found: true},
		Transactions: []model.Transaction{
			txn(model.TxnPurchase, 500_000),
			txn(model.TxnSwitchIn, 100_000),
			txn(model.TxnRedemption, 200_000),
		},
		AUMStart:     10_000_000,
		MeetingCount: 6,
	})

	assert.Equal(t, 500_000.0, row.Purchase)
	assert.Equal(t, 120_000.0, row.WeightedSwitchIn)
	assert.Equal(t, 420_000.0, row.NetPurchase)
	assert.InDelta(t, 4.20, row.GrowthPct, 1e-9)
	assert.Equal(t, 0.0015, row.Rate)
	assert.InDelta(t, 630.0, row.BaseIncentive, 1e-9)
	assert.Equal(t, 1.05, row.Multiplier)
	assert.InDelta(t, 661.50, row.FinalIncentive, 1e-9)
	assert.Zero(t, row.PenaltyRupees)
	assert.Equal(t, 1, row.Streak.PositiveMonths)
	require.Len(t, row.ByType, 6)
	assert.Equal(t, model.TxnPurchase, row.ByType[0].Type)
	assert.Equal(t, 500_000.0, row.ByType[0].Raw)
}

func TestScoreMonth_NegativeMonthPenalty(t *testing.T) {
	in := Inputs{
		Month: month(t, "2025-10"),
		RM:    identity.Resolution{EmployeeID: "EMP001", CanonicalName: "Ishu Mavar", Found: true},
		Transactions: []model.Transaction{
			txn(model.TxnRedemption, 300_000),
		},
		AUMStart: 10_000_000,
		Streak:   model.StreakState{PositiveMonths: 2},
	}

	// growth -3.0% matches the max_growth_pct -1.0 slab:
	// pct = min(0.5% x 10M, 5000) = 5000, flat = 0.
	rowMin, _ := defaultScorer(t, PenaltyMin).ScoreMonth(in)
	assert.InDelta(t, -3.0, rowMin.GrowthPct, 1e-9)
	assert.Zero(t, rowMin.PenaltyRupees)

	rowMax, _ := defaultScorer(t, PenaltyMax).ScoreMonth(in)
	assert.Equal(t, 5000.0, rowMax.PenaltyRupees)

	// Negative growth resets the streak.
	assert.Zero(t, rowMin.Streak.PositiveMonths)
}

func TestScoreMonth_ZeroTransactionsStillScores(t *testing.T) {
	s := defaultScorer(t, PenaltyMin)

	row, _ := s.ScoreMonth(Inputs{
		Month:    month(t, "2025-09"),
		RM:       identity.Resolution{EmployeeID: "EMP001", CanonicalName: "Ishu Mavar", Found: true},
		AUMStart: 10_000_000,
	})

	assert.Zero(t, row.NetPurchase)
	assert.Zero(t, row.GrowthPct)
	assert.Zero(t, row.Rate)
	assert.Zero(t, row.BaseIncentive)
	assert.Zero(t, row.PenaltyRupees)
}

func TestScoreMonth_MissingAUM(t *testing.T) {
	s := defaultScorer(t, PenaltyMin)

	row, _ := s.ScoreMonth(Inputs{
		Month:        month(t, "2025-09"),
		RM:           identity.Resolution{EmployeeID: "EMP001", CanonicalName: "Ishu Mavar", Found: true},
		Transactions: []model.Transaction{txn(model.TxnPurchase, 100_000)},
		AUMStart:     0,
		MissingAUM:   true,
	})

	assert.Zero(t, row.GrowthPct)
	assert.True(t, row.MissingAUM)
	// Growth 0 still lands in the bottom slab; incentive follows NP.
	assert.Equal(t, 0.0005, row.Rate)
}

func TestScoreMonth_BlacklistZeroesPurchaseAndSwitchIn(t *testing.T) {
	s := defaultScorer(t, PenaltyMin)

	liquid := txn(model.TxnPurchase, 100_000)
	liquid.SubCategory = "Liquid Fund"
	liquidOut := txn(model.TxnSwitchOut, 50_000)
	liquidOut.SubCategory = "Overnight Fund"

	row, _ := s.ScoreMonth(Inputs{
		Month:        month(t, "2025-09"),
		RM:           identity.Resolution{EmployeeID: "EMP001", Found: true},
		Transactions: []model.Transaction{liquid, liquidOut},
		AUMStart:     1_000_000,
	})

	assert.Equal(t, 100_000.0, row.Purchase)
	assert.Zero(t, row.WeightedPurchase)
	// Blacklist only zeroes inflow buckets; the switch-out still counts.
	assert.Equal(t, 50_000.0, row.WeightedSwitchOut)
	assert.Equal(t, -50_000.0, row.NetPurchase)

	var excluded int
	for _, c := range row.ByCategory {
		if c.Excluded {
			excluded++
		}
	}
	assert.Equal(t, 2, excluded)
}

func TestScoreMonth_SchemeRuleFirstMatchWins(t *testing.T) {
	cfg, _ := scoreconfig.NormalizeLumpsum(scoreconfig.DefaultLumpsum())
	cfg.SchemeRules = []scoreconfig.SchemeRule{
		{Keyword: "alpha growth", MatchType: "exact", WeightPct: 50},
		{Keyword: "alpha", MatchType: "contains", WeightPct: 200},
	}
	hash, err := scoreconfig.Hash(cfg)
	require.NoError(t, err)
	s := NewScorer(scoreconfig.Effective[scoreconfig.LumpsumConfig]{Config: cfg, Hash: hash}, PenaltyMin)

	exact := txn(model.TxnPurchase, 100_000)
	exact.SchemeName = "Alpha Growth"
	contains := txn(model.TxnPurchase, 100_000)
	contains.SchemeName = "Alpha Bluechip"

	row, _ := s.ScoreMonth(Inputs{
		Month:        month(t, "2025-09"),
		RM:           identity.Resolution{EmployeeID: "EMP001", Found: true},
		Transactions: []model.Transaction{exact, contains},
		AUMStart:     1_000_000,
	})

	// 100k x 0.5 + 100k x 2.0
	assert.Equal(t, 250_000.0, row.WeightedPurchase)
}

func TestScoreMonth_SchemeRuleDateWindow(t *testing.T) {
	start := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	cfg, _ := scoreconfig.NormalizeLumpsum(scoreconfig.DefaultLumpsum())
	cfg.SchemeRules = []scoreconfig.SchemeRule{
		{Keyword: "alpha", MatchType: "contains", WeightPct: 200, StartDate: &start},
	}
	hash, _ := scoreconfig.Hash(cfg)
	s := NewScorer(scoreconfig.Effective[scoreconfig.LumpsumConfig]{Config: cfg, Hash: hash}, PenaltyMin)

	before := txn(model.TxnPurchase, 100_000) // dated 2025-09-10
	before.SchemeName = "Alpha Fund"

	row, _ := s.ScoreMonth(Inputs{
		Month:        month(t, "2025-09"),
		RM:           identity.Resolution{EmployeeID: "EMP001", Found: true},
		Transactions: []model.Transaction{before},
		AUMStart:     1_000_000,
	})

	// Rule not yet in force: weight stays 1.0.
	assert.Equal(t, 100_000.0, row.WeightedPurchase)
}

func TestSchemeMatches_DedupesRuleHits(t *testing.T) {
	cfg, _ := scoreconfig.NormalizeLumpsum(scoreconfig.DefaultLumpsum())
	cfg.SchemeRules = []scoreconfig.SchemeRule{
		{Keyword: "alpha", MatchType: "contains", WeightPct: 200},
	}
	hash, err := scoreconfig.Hash(cfg)
	require.NoError(t, err)
	s := NewScorer(scoreconfig.Effective[scoreconfig.LumpsumConfig]{Config: cfg, Hash: hash}, PenaltyMin)

	hit := txn(model.TxnPurchase, 100_000)
	hit.SchemeName = "Alpha Bluechip"
	repeat := txn(model.TxnPurchase, 50_000)
	repeat.SchemeName = "Alpha Bluechip"
	miss := txn(model.TxnPurchase, 25_000)
	miss.SchemeName = "HDFC Flexi Cap"

	matches := s.SchemeMatches([]model.Transaction{hit, repeat, miss})
	require.Len(t, matches, 1)
	assert.Equal(t, "Alpha Bluechip", matches[0].SchemeName)
	assert.Equal(t, "alpha", matches[0].Keyword)
	assert.Equal(t, 200.0, matches[0].WeightPct)
}

func TestStreakBonuses(t *testing.T) {
	s := defaultScorer(t, PenaltyMin)

	in := Inputs{
		Month:        month(t, "2025-09"),
		RM:           identity.Resolution{EmployeeID: "EMP001", Found: true},
		Transactions: []model.Transaction{txn(model.TxnPurchase, 500_000)},
		AUMStart:     10_000_000, // growth 5% > 1% threshold
	}

	// Third consecutive positive month pays the hattrick once.
	in.Streak = model.StreakState{PositiveMonths: 2}
	row, next := s.ScoreMonth(in)
	assert.Equal(t, 3, next.PositiveMonths)
	assert.Equal(t, 2500.0, row.StreakBonus)
	assert.True(t, next.HattrickPaid)

	// Fourth month: hattrick already paid, nothing new.
	in.Streak = next
	row, next = s.ScoreMonth(in)
	assert.Equal(t, 4, next.PositiveMonths)
	assert.Zero(t, row.StreakBonus)

	// Fifth month pays the five-streak.
	in.Streak = next
	row, next = s.ScoreMonth(in)
	assert.Equal(t, 5, next.PositiveMonths)
	assert.Equal(t, 5000.0, row.StreakBonus)
	assert.True(t, next.FiveStreakPaid)

	// A flat month resets everything; a fresh sequence can pay again.
	flat := Inputs{
		Month:    month(t, "2026-02"),
		RM:       identity.Resolution{EmployeeID: "EMP001", Found: true},
		AUMStart: 10_000_000,
		Streak:   next,
	}
	_, reset := s.ScoreMonth(flat)
	assert.Zero(t, reset.PositiveMonths)
	assert.False(t, reset.HattrickPaid)
	assert.False(t, reset.FiveStreakPaid)
}

func TestQuarterBonusProjection(t *testing.T) {
	s := defaultScorer(t, PenaltyMin)

	// 2025-09 is a quarter-end in FY_APR.
	row, _ := s.ScoreMonth(Inputs{
		Month:             month(t, "2025-09"),
		RM:                identity.Resolution{EmployeeID: "EMP001", Found: true},
		Transactions:      []model.Transaction{txn(model.TxnPurchase, 1_000_000)},
		AUMStart:          10_000_000,
		QTDNetPurchase:    2_000_000,
		QTDPositiveMonths: 2,
	})

	assert.True(t, row.QtrProjected)
	// 3M total with 3 positive months clears the 2.5M slab.
	assert.Equal(t, 5000.0, row.QtrBonus)

	// Mid-quarter month projects nothing.
	mid, _ := s.ScoreMonth(Inputs{
		Month:        month(t, "2025-08"),
		RM:           identity.Resolution{EmployeeID: "EMP001", Found: true},
		Transactions: []model.Transaction{txn(model.TxnPurchase, 1_000_000)},
		AUMStart:     10_000_000,
	})
	assert.False(t, mid.QtrProjected)
	assert.Zero(t, mid.QtrBonus)
}

func TestQuarterBonus_RequiresPositiveMonths(t *testing.T) {
	s := defaultScorer(t, PenaltyMin)

	row, _ := s.ScoreMonth(Inputs{
		Month:             month(t, "2025-09"),
		RM:                identity.Resolution{EmployeeID: "EMP001", Found: true},
		Transactions:      []model.Transaction{txn(model.TxnPurchase, 8_000_000)},
		AUMStart:          100_000_000,
		QTDNetPurchase:    0,
		QTDPositiveMonths: 0,
	})

	// NP clears the top slab but only 1 positive month < min 2.
	assert.Zero(t, row.QtrBonus)
}

func TestRateFor_SlabBoundaries(t *testing.T) {
	s := defaultScorer(t, PenaltyMin)

	tests := []struct {
		growth float64
		want   float64
	}{
		{-0.5, 0},      // below every slab
		{0, 0.0005},    // inclusive lower bound
		{0.999, 0.0005},
		{1, 0.001},     // [1,2)
		{2, 0.0015},    // open top
		{42, 0.0015},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.rateFor(tt.growth), "growth %v", tt.growth)
	}
}

func TestMultiplierFor_Slabs(t *testing.T) {
	s := defaultScorer(t, PenaltyMin)

	assert.Equal(t, 1.00, s.multiplierFor(0))
	assert.Equal(t, 1.00, s.multiplierFor(5))
	assert.Equal(t, 1.05, s.multiplierFor(6))
	assert.Equal(t, 1.05, s.multiplierFor(11))
	assert.Equal(t, 1.10, s.multiplierFor(12))
}
