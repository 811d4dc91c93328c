package referral

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

func defaultScorer(t *testing.T) *Scorer {
	t.Helper()
	cfg, fallback := scoreconfig.NormalizeReferral(scoreconfig.DefaultReferral())
	require.False(t, fallback)
	hash, err := scoreconfig.Hash(cfg)
	require.NoError(t, err)
	return NewScorer(scoreconfig.Effective[scoreconfig.ReferralConfig]{
		Metric: scoreconfig.MetricReferral,
		Config: cfg,
		Hash:   hash,
	})
}

func lead(cat model.ReferralCategory, converter, referrer string) model.ReferralLead {
	return model.ReferralLead{
		LeadID:         "L1",
		Category:       cat,
		ConverterName:  converter,
		ReferrerName:   referrer,
		ConversionDate: time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC),
		IsFamilyHead:   true,
	}
}

var (
	anil  = identity.Resolution{EmployeeID: "EMP010", CanonicalName: "Anil Rao", Found: true}
	beena = identity.Resolution{EmployeeID: "EMP011", CanonicalName: "Beena Shah", Found: true}
)

func pointsByRole(credits []model.ReferralCredit) map[string]float64 {
	out := map[string]float64{}
	for _, c := range credits {
		out[c.ReferralType] = c.Points
	}
	return out
}

func TestScoreLead_SelfSourced(t *testing.T) {
	s := defaultScorer(t)

	ins := s.ScoreLead(lead(model.ReferralInsurance, "Anil Rao", "Anil Rao"), anil, anil, true, true)
	require.Len(t, ins, 1)
	assert.Equal(t, RoleSelfSourced, ins[0].ReferralType)
	assert.Equal(t, 100.0, ins[0].Points)

	inv := s.ScoreLead(lead(model.ReferralInvestment, "Anil Rao", "anil rao"), anil, anil, true, true)
	require.Len(t, inv, 1)
	assert.Equal(t, 200.0, inv[0].Points)
}

func TestScoreLead_SplitScenarios(t *testing.T) {
	s := defaultScorer(t)

	ins := s.ScoreLead(lead(model.ReferralInsurance, "Anil Rao", "Beena Shah"), anil, beena, true, true)
	got := pointsByRole(ins)
	assert.Equal(t, 50.0, got[RoleConverter])
	assert.Equal(t, 30.0, got[RoleReferrer])

	// Investment split pays the referrer only.
	inv := s.ScoreLead(lead(model.ReferralInvestment, "Anil Rao", "Beena Shah"), anil, beena, true, true)
	require.Len(t, inv, 1)
	assert.Equal(t, RoleReferrer, inv[0].ReferralType)
	assert.Equal(t, 50.0, inv[0].Points)
	assert.Equal(t, "EMP011", inv[0].EmployeeID)
}

func TestScoreLead_NoReferrerInvestment(t *testing.T) {
	s := defaultScorer(t)

	credits := s.ScoreLead(lead(model.ReferralInvestment, "Anil Rao", ""), anil, identity.Resolution{}, true, false)
	require.Len(t, credits, 1)
	assert.Equal(t, RoleConverter, credits[0].ReferralType)
	assert.Equal(t, 50.0, credits[0].Points)
}

func TestScoreLead_FamilyHeadDiscount(t *testing.T) {
	s := defaultScorer(t)

	l := lead(model.ReferralInvestment, "Anil Rao", "Beena Shah")
	l.IsFamilyHead = false

	credits := s.ScoreLead(l, anil, beena, true, true)
	require.Len(t, credits, 1)
	assert.Equal(t, RoleReferrer, credits[0].ReferralType)
	assert.InDelta(t, 15.0, credits[0].Points, 1e-9)

	// Special permission waives the discount.
	l.SpecialPermission = true
	credits = s.ScoreLead(l, anil, beena, true, true)
	require.Len(t, credits, 1)
	assert.Equal(t, 50.0, credits[0].Points)

	// Insurance leads are never discounted.
	li := lead(model.ReferralInsurance, "Anil Rao", "Beena Shah")
	li.IsFamilyHead = false
	got := pointsByRole(s.ScoreLead(li, anil, beena, true, true))
	assert.Equal(t, 50.0, got[RoleConverter])
	assert.Equal(t, 30.0, got[RoleReferrer])
}

func TestScoreLead_IndependentInactivityGating(t *testing.T) {
	s := defaultScorer(t)
	l := lead(model.ReferralInsurance, "Anil Rao", "Beena Shah")

	// Expired referrer: converter still earns.
	credits := s.ScoreLead(l, anil, beena, true, false)
	require.Len(t, credits, 1)
	assert.Equal(t, RoleConverter, credits[0].ReferralType)

	// Expired converter: referrer still earns.
	credits = s.ScoreLead(l, anil, beena, false, true)
	require.Len(t, credits, 1)
	assert.Equal(t, RoleReferrer, credits[0].ReferralType)

	credits = s.ScoreLead(l, anil, beena, false, false)
	assert.Empty(t, credits)
}

func TestRollup(t *testing.T) {
	s := defaultScorer(t)
	month := model.Month{Year: 2025, Mon: time.September}

	credits := []model.ReferralCredit{
		{LeadID: "L1", EmployeeID: "EMP010", Points: 100, Month: month},
		{LeadID: "L2", EmployeeID: "EMP010", Points: 50, Month: month},
		{LeadID: "L2", EmployeeID: "EMP011", Points: 30, Month: month},
	}

	rows := s.Rollup(month, credits, func(id string) identity.Resolution {
		return identity.Resolution{EmployeeID: id, CanonicalName: id, IsActive: true, Found: true}
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "EMP010", rows[0].EmployeeID)
	assert.Equal(t, 150.0, rows[0].Points)
	assert.Equal(t, 2, rows[0].LeadCount)
	assert.Equal(t, "EMP011", rows[1].EmployeeID)
	assert.Equal(t, 30.0, rows[1].Points)
	assert.Equal(t, 1, rows[1].LeadCount)
}
