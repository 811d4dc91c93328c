package sip

import (
	"math"
	"time"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

// GateResult is the outcome of the cross-metric lumpsum gate for one RM-month.
// Found reports whether a lumpsum row existed at all; when it does not, the
// gate is simply not applied.
type GateResult struct {
	Found       bool
	Applied     bool
	GrowthPct   float64
	NetPurchase float64
	LumpsumRate float64
}

// ResolveGate evaluates the lumpsum gate against the RM's lumpsum row for the
// same month. The gate trips when growth is at or below ls_gate_pct and the
// net-purchase magnitude is at least ls_gate_min_rupees.
func ResolveGate(opts scoreconfig.SIPOptions, row *model.LumpsumRow) GateResult {
	if row == nil {
		return GateResult{}
	}
	g := GateResult{
		Found:       true,
		GrowthPct:   row.GrowthPct,
		NetPurchase: row.NetPurchase,
		LumpsumRate: row.Rate,
	}
	if row.GrowthPct <= opts.LSGatePct && math.Abs(row.NetPurchase) >= opts.LSGateMinRupees {
		g.Applied = true
	}
	return g
}

// Inputs is everything one RM-month scoring needs. All streak and gate state
// arrives here from persisted rows.
type Inputs struct {
	Month        model.Month
	RM           identity.Resolution
	Transactions []Effective
	AUMStart     float64
	MissingAUM   bool

	// PrevConsecutive is the consecutive-positive streak from the previous
	// month's persisted SIP row.
	PrevConsecutive int

	Gate GateResult
}

// Scorer computes one SIP row from fully-gathered inputs.
type Scorer struct {
	cfg      scoreconfig.SIPConfig
	hash     string
	fallback bool
}

func NewScorer(eff scoreconfig.Effective[scoreconfig.SIPConfig]) *Scorer {
	return &Scorer{cfg: eff.Config, hash: eff.Hash, fallback: eff.FallbackUsed}
}

// ScoreMonth produces the persisted SIP row for one RM-month.
func (s *Scorer) ScoreMonth(in Inputs) model.SIPRow {
	row := model.SIPRow{
		RowMeta: model.RowMeta{
			EmployeeID:     in.RM.EmployeeID,
			EmployeeName:   in.RM.CanonicalName,
			Month:          in.Month,
			IsActive:       in.RM.IsActive,
			MissingAUM:     in.MissingAUM,
			ConfigFallback: s.fallback,
			ConfigHash:     s.hash,
			SchemaVersion:  model.SchemaVersion,
			UpdatedAt:      time.Now().UTC(),
		},
		AUMStart: in.AUMStart,
	}

	var regCount int
	for _, txn := range in.Transactions {
		row.TxnCount++
		switch {
		case txn.Type == model.SIPTypeSIP && txn.For == model.SIPForRegistration:
			row.GrossSIP += txn.Weighted
			regCount++
		case txn.Type == model.SIPTypeSIP && txn.For == model.SIPForCancellation:
			row.CancelSIP += txn.Weighted
		case txn.Type == model.SIPTypeSWP && txn.For == model.SIPForRegistration:
			row.SWPRegWeighted += txn.Weighted * s.cfg.Options.SWPWeights.Registration
		case txn.Type == model.SIPTypeSWP && txn.For == model.SIPForCancellation:
			row.SWPCancelWeighted += txn.Weighted * s.cfg.Options.SWPWeights.Cancellation
		}
	}

	row.NetSIPCore = row.GrossSIP - row.CancelSIP
	// The SWP aggregates are always reported; they only move net_sip when SWP
	// netting is on.
	row.NetSIP = row.NetSIPCore
	if s.cfg.Options.NetsSWP() {
		row.NetSIP += row.SWPRegWeighted + row.SWPCancelWeighted
	}
	if regCount > 0 {
		row.AvgSIP = row.GrossSIP / float64(regCount)
	}
	if in.AUMStart > 0 {
		row.Ratio = row.NetSIP / in.AUMStart
	}

	if row.NetSIP > 0 {
		row.ConsecutivePositive = in.PrevConsecutive + 1
	}

	horizon := float64(s.cfg.Options.HorizonMonths)
	if row.NetSIP < 0 {
		row.PenaltyBPS = s.penaltyBPS(row.NetSIP, row.Ratio)
		row.RateBPS = row.PenaltyBPS
	} else {
		row.RateBPS, row.BonusBreakdown = s.bonusBPS(row, horizon)
	}
	// The slab rate is stored signed for the audit trail; the points sign
	// follows net SIP.
	row.SIPPoints = row.NetSIP * math.Abs(row.RateBPS) / 10_000 * horizon

	// The gate zeroes positive SIP points only; penalties survive it.
	if in.Gate.Applied && row.SIPPoints > 0 {
		row.SIPPoints = 0
		row.GateApplied = true
	}

	if in.Gate.Found {
		row.LumpsumPoints = in.Gate.NetPurchase * in.Gate.LumpsumRate
		if row.LumpsumPoints < s.cfg.LumpsumPointsFloor {
			row.LumpsumPoints = s.cfg.LumpsumPointsFloor
		}
	}

	row.TotalPoints = row.SIPPoints + row.LumpsumPoints
	row.Tier = s.tierFor(row.TotalPoints)
	row.MonthlyFactor = s.cfg.TierFactors[row.Tier]
	row.AnnualFactor = row.MonthlyFactor * 12
	row.TrailAmountMon = in.AUMStart * row.MonthlyFactor
	row.VPPointsCredit = row.TotalPoints * 0.20
	return row
}

// penaltyBPS walks the penalty slabs harshest-first and returns the first
// matching negative rate.
func (s *Scorer) penaltyBPS(netSIP, ratio float64) float64 {
	for _, slab := range s.cfg.PenaltySlabs {
		if math.Abs(netSIP) >= slab.ThresholdAmount {
			return slab.RateBPS
		}
		if ratio < 0 && ratio <= slab.ThresholdRatio {
			return slab.RateBPS
		}
	}
	return 0
}

// bonusBPS composes the non-negative rate: base plus the first matching slab
// from each bonus list.
func (s *Scorer) bonusBPS(row model.SIPRow, horizon float64) (float64, map[string]float64) {
	base := s.cfg.BaseBPS
	if base == 0 && s.cfg.PointsPerRupee > 0 && horizon > 0 {
		base = s.cfg.PointsPerRupee * 10_000 / horizon
	}
	breakdown := map[string]float64{"base": base}
	breakdown["ratio"] = firstBPS(s.cfg.RatioBonus, row.Ratio)
	breakdown["amount"] = firstBPS(s.cfg.AmountBonus, row.NetSIP)
	breakdown["avg"] = firstBPS(s.cfg.AvgBonus, row.AvgSIP)
	breakdown["consistency"] = firstBPS(s.cfg.ConsistencyBonus, float64(row.ConsecutivePositive))

	total := base + breakdown["ratio"] + breakdown["amount"] + breakdown["avg"] + breakdown["consistency"]
	return total, breakdown
}

// firstBPS returns the BPS of the first slab (descending by threshold) the
// measure meets.
func firstBPS(slabs []scoreconfig.ThresholdBPS, measure float64) float64 {
	for _, slab := range slabs {
		if measure >= slab.Val {
			return slab.BPS
		}
	}
	return 0
}

// tierFor returns the first tier (descending by threshold) the total meets,
// or T0.
func (s *Scorer) tierFor(total float64) string {
	for _, tt := range s.cfg.TierThresholds {
		if total >= tt.MinValue {
			return tt.TierName
		}
	}
	return "T0"
}
