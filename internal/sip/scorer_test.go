package sip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

func defaultScorer(t *testing.T, mutate func(*scoreconfig.SIPConfig)) *Scorer {
	t.Helper()
	cfg := scoreconfig.DefaultSIP()
	if mutate != nil {
		mutate(&cfg)
	}
	cfg, fallback := scoreconfig.NormalizeSIP(cfg)
	require.False(t, fallback)
	hash, err := scoreconfig.Hash(cfg)
	require.NoError(t, err)
	return NewScorer(scoreconfig.Effective[scoreconfig.SIPConfig]{
		Metric: scoreconfig.MetricSIP,
		Config: cfg,
		Hash:   hash,
	})
}

func month(t *testing.T, s string) model.Month {
	t.Helper()
	m, err := model.ParseMonth(s)
	require.NoError(t, err)
	return m
}

func sipReg(amount float64) Effective {
	return Effective{
		RMName:   "Sagar Maini",
		Type:     model.SIPTypeSIP,
		For:      model.SIPForRegistration,
		Amount:   amount,
		Weighted: amount,
		ExecDate: time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC),
	}
}

func sipCancel(amount float64) Effective {
	e := sipReg(amount)
	e.For = model.SIPForCancellation
	return e
}

func registrations(n int, each float64) []Effective {
	out := make([]Effective, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, sipReg(each))
	}
	return out
}

func TestScoreMonth_GateTriggered(t *testing.T) {
	s := defaultScorer(t, nil)
	rm := identity.Resolution{EmployeeID: "EMP002", CanonicalName: "Sagar Maini", IsActive: true, Found: true}

	// 25 registrations of 8,000 so neither the avg nor the ratio bonus fires.
	in := Inputs{
		Month:        month(t, "2025-09"),
		RM:           rm,
		Transactions: registrations(25, 8_000),
		AUMStart:     5_000_000,
	}

	ungated := s.ScoreMonth(in)
	assert.Equal(t, 200_000.0, ungated.NetSIP)
	assert.InDelta(t, 126.0, ungated.RateBPS, 1e-9)
	assert.InDelta(t, 60_480.0, ungated.SIPPoints, 1e-6)
	assert.False(t, ungated.GateApplied)

	in.Gate = ResolveGate(scoreconfig.DefaultSIP().Options, &model.LumpsumRow{
		NetPurchase: -500_000,
		GrowthPct:   -5.0,
		Rate:        0,
	})
	require.True(t, in.Gate.Applied)

	gated := s.ScoreMonth(in)
	assert.True(t, gated.GateApplied)
	assert.Zero(t, gated.SIPPoints)
	assert.Zero(t, gated.LumpsumPoints)
	assert.Zero(t, gated.TotalPoints)
	assert.Equal(t, "T0", gated.Tier)
	assert.Zero(t, gated.MonthlyFactor)
}

func TestResolveGate(t *testing.T) {
	opts := scoreconfig.DefaultSIP().Options

	tests := []struct {
		name    string
		row     *model.LumpsumRow
		found   bool
		applied bool
	}{
		{"no lumpsum row", nil, false, false},
		{"growth and magnitude trip", &model.LumpsumRow{GrowthPct: -5.0, NetPurchase: -500_000}, true, true},
		{"growth at boundary", &model.LumpsumRow{GrowthPct: -3.0, NetPurchase: -50_000}, true, true},
		{"growth above gate", &model.LumpsumRow{GrowthPct: -2.9, NetPurchase: -500_000}, true, false},
		{"magnitude below minimum", &model.LumpsumRow{GrowthPct: -5.0, NetPurchase: -49_999}, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := ResolveGate(opts, tc.row)
			assert.Equal(t, tc.found, g.Found)
			assert.Equal(t, tc.applied, g.Applied)
		})
	}
}

func TestScoreMonth_GatePreservesPenalty(t *testing.T) {
	s := defaultScorer(t, nil)

	in := Inputs{
		Month:        month(t, "2025-09"),
		RM:           identity.Resolution{EmployeeID: "EMP002", Found: true},
		Transactions: []Effective{sipCancel(300_000)},
		AUMStart:     5_000_000,
		Gate: GateResult{
			Found:       true,
			Applied:     true,
			NetPurchase: -500_000,
			GrowthPct:   -5.0,
		},
	}
	row := s.ScoreMonth(in)

	assert.Equal(t, -300_000.0, row.NetSIP)
	assert.Equal(t, -150.0, row.RateBPS)
	assert.InDelta(t, -108_000.0, row.SIPPoints, 1e-6)
	assert.False(t, row.GateApplied)
}

func TestScoreMonth_ZeroNetTakesBonusBranch(t *testing.T) {
	s := defaultScorer(t, nil)

	row := s.ScoreMonth(Inputs{
		Month: month(t, "2025-09"),
		RM:    identity.Resolution{EmployeeID: "EMP002", Found: true},
	})

	assert.Zero(t, row.NetSIP)
	assert.Equal(t, 125.0, row.RateBPS)
	assert.Zero(t, row.PenaltyBPS)
	assert.Zero(t, row.SIPPoints)
	assert.Zero(t, row.TotalPoints)
	assert.Equal(t, "T0", row.Tier)
}

func TestPenaltyBPS(t *testing.T) {
	s := defaultScorer(t, nil)

	tests := []struct {
		name string
		net  float64
		aum  float64
		want float64
	}{
		{"large magnitude hits harsh slab", -300_000, 100_000_000, -150},
		{"small magnitude hits default slab", -100_000, 100_000_000, -125},
		{"deep ratio hits harsh slab", -100_000, 2_000_000, -150},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			row := s.ScoreMonth(Inputs{
				Month:        month(t, "2025-09"),
				RM:           identity.Resolution{EmployeeID: "EMP002", Found: true},
				Transactions: []Effective{sipCancel(-tc.net)},
				AUMStart:     tc.aum,
			})
			assert.Equal(t, tc.want, row.RateBPS)
			assert.Equal(t, tc.want, row.PenaltyBPS)
		})
	}
}

func TestScoreMonth_SWPNetting(t *testing.T) {
	swp := func(f model.SIPTxnFor, amount float64) Effective {
		e := sipReg(amount)
		e.Type = model.SIPTypeSWP
		e.For = f
		return e
	}
	txns := []Effective{
		sipReg(100_000),
		swp(model.SIPForRegistration, 40_000),
		swp(model.SIPForCancellation, 10_000),
	}
	in := Inputs{
		Month:        month(t, "2025-09"),
		RM:           identity.Resolution{EmployeeID: "EMP002", Found: true},
		Transactions: txns,
		AUMStart:     5_000_000,
	}

	off := defaultScorer(t, nil).ScoreMonth(in)
	assert.Equal(t, 100_000.0, off.NetSIP)
	assert.Equal(t, -40_000.0, off.SWPRegWeighted)
	assert.Equal(t, 10_000.0, off.SWPCancelWeighted)

	on := defaultScorer(t, func(c *scoreconfig.SIPConfig) {
		c.Options.IncludeSWP = true
		c.Options.SIPNetMode = "sip_plus_swp"
	}).ScoreMonth(in)
	assert.Equal(t, 70_000.0, on.NetSIP)

	// Setting the mode alone enables netting.
	modeOnly := defaultScorer(t, func(c *scoreconfig.SIPConfig) {
		c.Options.SIPNetMode = "sip_plus_swp"
	}).ScoreMonth(in)
	assert.Equal(t, 70_000.0, modeOnly.NetSIP)
}

func TestScoreMonth_ConsecutiveStreakAndConsistencyBonus(t *testing.T) {
	s := defaultScorer(t, nil)

	in := Inputs{
		Month:           month(t, "2025-09"),
		RM:              identity.Resolution{EmployeeID: "EMP002", Found: true},
		Transactions:    registrations(10, 5_000),
		AUMStart:        100_000_000,
		PrevConsecutive: 2,
	}
	row := s.ScoreMonth(in)

	assert.Equal(t, 3, row.ConsecutivePositive)
	// base 125 + consistency 1 (streak >= 3); amount/avg/ratio all below slabs.
	assert.Equal(t, 126.0, row.RateBPS)
	assert.Equal(t, 1.0, row.BonusBreakdown["consistency"])

	in.Transactions = []Effective{sipCancel(10_000)}
	reset := s.ScoreMonth(in)
	assert.Zero(t, reset.ConsecutivePositive)
}

func TestScoreMonth_TierAndTrail(t *testing.T) {
	s := defaultScorer(t, nil)

	row := s.ScoreMonth(Inputs{
		Month:        month(t, "2025-09"),
		RM:           identity.Resolution{EmployeeID: "EMP002", Found: true},
		Transactions: registrations(60, 8_000), // net 480,000
		AUMStart:     10_000_000,
	})

	// base 125 + amount 2 (>=250k); 480,000 x 127bps x 24 = 146,304 points.
	assert.InDelta(t, 127.0, row.RateBPS, 1e-9)
	assert.InDelta(t, 146_304.0, row.TotalPoints, 1e-6)
	assert.Equal(t, "T4", row.Tier)
	assert.Equal(t, 0.00030, row.MonthlyFactor)
	assert.InDelta(t, 0.0036, row.AnnualFactor, 1e-12)
	assert.InDelta(t, 3_000.0, row.TrailAmountMon, 1e-9)
	assert.InDelta(t, row.TotalPoints*0.20, row.VPPointsCredit, 1e-9)
}

func TestScoreMonth_LumpsumPointsFloor(t *testing.T) {
	s := defaultScorer(t, nil)

	row := s.ScoreMonth(Inputs{
		Month: month(t, "2025-09"),
		RM:    identity.Resolution{EmployeeID: "EMP002", Found: true},
		Gate: GateResult{
			Found:       true,
			NetPurchase: -40_000_000,
			LumpsumRate: 0.0015,
		},
	})

	assert.Equal(t, -5_000.0, row.LumpsumPoints)
}
