package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
)

func testAggregator(records ...model.RM) *Aggregator {
	return &Aggregator{Resolver: identity.NewResolver(records)}
}

func septRows(employeeID string) *metricRows {
	meta := model.RowMeta{EmployeeID: employeeID, Month: model.Month{Year: 2025, Mon: time.September}}
	return &metricRows{
		lumpsum: map[string]model.LumpsumRow{
			employeeID: {RowMeta: meta, GrowthPct: 4.2, NetPurchase: 420_000, AUMStart: 10_000_000},
		},
		sip: map[string]model.SIPRow{
			employeeID: {RowMeta: meta, SIPPoints: 60_480, LumpsumPoints: -1200, NetSIP: 200_000, AUMStart: 10_000_000, RateBPS: 126},
		},
		insurance: map[string]model.InsuranceRow{
			employeeID: {RowMeta: meta, PointsTotal: 3200, PolicyCount: 4, FreshPremium: 400_000},
		},
		referral: map[string]model.ReferralRow{
			employeeID: {RowMeta: meta, Points: 150, LeadCount: 2},
		},
	}
}

func TestCompose_PointIdentities(t *testing.T) {
	a := testAggregator(model.RM{EmployeeID: "EMP001", DisplayName: "Ishu Mavar", IsActive: true, Profile: "Insurance"})
	month := model.Month{Year: 2025, Mon: time.September}

	row := a.compose(month, "EMP001", septRows("EMP001"), nil, "hash123")

	assert.Equal(t, 60_480.0, row.MFSIPPoints)
	assert.Equal(t, -1200.0, row.MFLumpsumPoints)
	assert.Equal(t, row.MFSIPPoints+row.MFLumpsumPoints, row.MFPoints)
	assert.Equal(t, row.MFPoints+row.InsPoints+row.RefPoints, row.TotalPointsPublic)
	assert.Equal(t, row.TotalPointsPublic, row.TotalPointsFinal)
	assert.Equal(t, "Ishu Mavar", row.EmployeeName)
	assert.Equal(t, "hash123", row.ConfigHash)
	assert.True(t, row.PayoutEligible)
	require.NotNil(t, row.Audit)
	assert.Equal(t, 126.0, row.Audit.SIPRateBPS)
	assert.InDelta(t, 4.2, row.Audit.LumpsumGrowth, 1e-9)
	assert.Equal(t, 4, row.Audit.InsPolicyCount)
	assert.Equal(t, 2, row.Audit.RefLeadCount)
}

func TestCompose_ApprovedAdjustments(t *testing.T) {
	a := testAggregator(model.RM{EmployeeID: "EMP001", DisplayName: "Ishu Mavar", IsActive: true})
	month := model.Month{Year: 2025, Mon: time.September}

	adjs := []model.Adjustment{
		{ID: "A1", Type: model.AdjustPoints, Value: 500, Status: model.AdjustApproved},
		{ID: "A2", Type: model.AdjustRupees, Value: 9999, Status: model.AdjustApproved},
	}
	row := a.compose(month, "EMP001", septRows("EMP001"), adjs, "h")

	// Points adjustments land in the final total; rupee adjustments never do.
	assert.Equal(t, row.TotalPointsPublic+500, row.TotalPointsFinal)
	assert.Len(t, row.Adjustments, 2)
}

func TestCompose_InactiveRMKeepsPointsLosesEligibility(t *testing.T) {
	inactiveSince := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	a := testAggregator(model.RM{
		EmployeeID: "EMP001", DisplayName: "Ishu Mavar",
		IsActive: false, InactiveSince: &inactiveSince,
	})

	aug := a.compose(model.Month{Year: 2025, Mon: time.August}, "EMP001", septRows("EMP001"), nil, "h")
	assert.True(t, aug.PayoutEligible)

	sep := a.compose(model.Month{Year: 2025, Mon: time.September}, "EMP001", septRows("EMP001"), nil, "h")
	assert.False(t, sep.PayoutEligible)
	assert.Positive(t, sep.TotalPointsPublic)
}

func TestCompose_MissingMetricRowsAreNeutral(t *testing.T) {
	a := testAggregator(model.RM{EmployeeID: "EMP001", DisplayName: "Ishu Mavar", IsActive: true})
	month := model.Month{Year: 2025, Mon: time.September}

	rows := &metricRows{
		lumpsum:   map[string]model.LumpsumRow{},
		sip:       map[string]model.SIPRow{},
		insurance: map[string]model.InsuranceRow{},
		referral: map[string]model.ReferralRow{
			"EMP001": {RowMeta: model.RowMeta{EmployeeID: "EMP001"}, Points: 30, LeadCount: 1},
		},
	}
	row := a.compose(month, "EMP001", rows, nil, "h")

	assert.Zero(t, row.MFPoints)
	assert.Zero(t, row.InsPoints)
	assert.Equal(t, 30.0, row.RefPoints)
	assert.Equal(t, 30.0, row.TotalPointsPublic)
}

func TestLeaderCredits_BucketSplitAndExpectation(t *testing.T) {
	a := testAggregator()
	month := model.Month{Year: 2025, Mon: time.September}

	public := []model.PublicRow{
		{EmployeeID: "EMP001", Profile: "Insurance", TotalPointsPublic: 1000},
		{EmployeeID: "EMP002", Profile: "Mutual Funds", TotalPointsPublic: 2000},
		{EmployeeID: "EMP003", Profile: "Insurance", TotalPointsPublic: 500},
	}
	credits, expected := a.leaderCredits(month, public, []string{"Mutual Funds"})

	require.Len(t, credits, 3)
	assert.Equal(t, model.BucketINS, credits[0].Bucket)
	assert.Equal(t, 200.0, credits[0].Points)
	assert.Equal(t, model.BucketMF, credits[1].Bucket)
	assert.Equal(t, 400.0, credits[1].Points)

	assert.InDelta(t, 300.0, expected[model.BucketINS], 1e-9)
	assert.InDelta(t, 400.0, expected[model.BucketMF], 1e-9)
}

func TestUnion(t *testing.T) {
	got := union([]string{"b", "a"}, []string{"a", "c"}, nil)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
