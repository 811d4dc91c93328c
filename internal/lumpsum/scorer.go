// Package lumpsum scores monthly lumpsum flows per RM: bucketed transaction
// sums, scheme and blacklist weighting, growth-slab rates, meeting
// multipliers, negative-month penalties and positive-growth streak bonuses.
// Scoring is pure; all inputs (transactions, AUM, streak state, quarter
// aggregates) arrive as arguments so re-aggregation is deterministic.
package lumpsum

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

// PenaltyStrategy selects how flat and percentage penalties combine.
type PenaltyStrategy string

const (
	PenaltyMin PenaltyStrategy = "min"
	PenaltyMax PenaltyStrategy = "max"
)

// Inputs is everything one RM-month scoring needs.
type Inputs struct {
	Month        model.Month
	RM           identity.Resolution
	Transactions []model.Transaction
	AUMStart     float64
	MissingAUM   bool
	MeetingCount int
	// Streak is the positive-month state recomputed from the prior month's
	// persisted row (zero value for the first scored month).
	Streak model.StreakState
	// Quarter/FY aggregates from persisted prior-month rows, used only in
	// quarter-end and FY-end months.
	QTDNetPurchase    float64
	QTDPositiveMonths int
	FYTDNetPurchase   float64
	FYPositiveMonths  int
}

// Scorer evaluates lumpsum months under one effective config.
type Scorer struct {
	cfg      scoreconfig.LumpsumConfig
	hash     string
	fallback bool
	strategy PenaltyStrategy
}

func NewScorer(eff scoreconfig.Effective[scoreconfig.LumpsumConfig], strategy PenaltyStrategy) *Scorer {
	if strategy != PenaltyMax {
		strategy = PenaltyMin
	}
	return &Scorer{cfg: eff.Config, hash: eff.Hash, fallback: eff.FallbackUsed, strategy: strategy}
}

// ScoreMonth computes the full lumpsum row for one RM-month and returns the
// row plus the streak state the next month should start from.
func (s *Scorer) ScoreMonth(in Inputs) (model.LumpsumRow, model.StreakState) {
	row := model.LumpsumRow{
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
		AUMStart:     in.AUMStart,
		MeetingCount: in.MeetingCount,
		Multiplier:   1.0,
	}

	byType := make(map[model.TxnType]*model.TypeBucket)
	byCategory := make(map[string]*model.CategoryBucket)

	for _, txn := range in.Transactions {
		bucket := byType[txn.Type]
		if bucket == nil {
			bucket = &model.TypeBucket{Type: txn.Type}
			byType[txn.Type] = bucket
		}
		bucket.Count++
		bucket.Raw += txn.Amount

		weighted := txn.Amount * s.schemeWeight(txn)
		blacklisted := s.blacklisted(txn.SubCategory)
		if blacklisted && (txn.Type == model.TxnPurchase || txn.Type == model.TxnSwitchIn) {
			weighted = 0
		}
		weighted *= s.bucketWeight(txn.Type)
		bucket.Weighted += weighted

		cat := byCategory[txn.SubCategory]
		if cat == nil {
			cat = &model.CategoryBucket{Category: txn.SubCategory, Excluded: blacklisted}
			byCategory[txn.SubCategory] = cat
		}
		cat.Amount += txn.Amount

		switch txn.Type {
		case model.TxnPurchase:
			row.Purchase += txn.Amount
			row.WeightedPurchase += weighted
		case model.TxnRedemption:
			row.Redemption += txn.Amount
			row.WeightedRedemption += weighted
		case model.TxnSwitchIn:
			row.SwitchIn += txn.Amount
			row.WeightedSwitchIn += weighted
		case model.TxnSwitchOut:
			row.SwitchOut += txn.Amount
			row.WeightedSwitchOut += weighted
		case model.TxnCOBIn:
			row.COBIn += txn.Amount
			row.WeightedCOBIn += weighted
		case model.TxnCOBOut:
			row.COBOut += txn.Amount
			row.WeightedCOBOut += weighted
		}
	}

	row.DebtBonus = s.debtBonus(in.Transactions, row.Purchase)

	additions := row.WeightedPurchase + row.WeightedSwitchIn + row.WeightedCOBIn + row.DebtBonus
	subtractions := row.WeightedRedemption + row.WeightedSwitchOut + row.WeightedCOBOut
	row.NetPurchase = additions - subtractions

	if in.AUMStart > 0 {
		row.GrowthPct = row.NetPurchase / in.AUMStart * 100
	}

	// A month with no net flow carries no rate at all; the bottom slab's
	// inclusive zero bound only applies to real flows.
	if row.NetPurchase != 0 {
		row.Rate = s.rateFor(row.GrowthPct)
	}
	row.BaseIncentive = row.NetPurchase * row.Rate
	row.Multiplier = s.multiplierFor(in.MeetingCount)
	row.FinalIncentive = row.BaseIncentive * row.Multiplier

	if row.NetPurchase < 0 && s.cfg.Penalty.Enable {
		row.PenaltyRupees = s.penalty(row.GrowthPct, in.AUMStart)
	}

	next := s.advanceStreak(in.Streak, row.GrowthPct)
	row.Streak = next
	if s.cfg.Options.ApplyStreakBonus {
		row.StreakBonus = s.streakBonus(in.Streak, &next)
		row.Streak = next
		row.FinalIncentive += row.StreakBonus
	}

	fyMode := model.FYMode(s.cfg.Options.FYMode)
	if in.Month.IsQuarterEnd(fyMode) {
		row.QtrProjected = true
		row.QtrBonus = projectBonus(s.cfg.QtrBonus,
			in.QTDNetPurchase+row.NetPurchase,
			in.QTDPositiveMonths+positiveOne(row.NetPurchase))
	}
	if in.Month.IsFYEnd(fyMode) {
		row.AnnualBonus = projectBonus(s.cfg.AnnualBonus,
			in.FYTDNetPurchase+row.NetPurchase,
			in.FYPositiveMonths+positiveOne(row.NetPurchase))
	}

	row.ByType = flattenTypes(byType)
	row.ByCategory = flattenCategories(byCategory)
	return row, next
}

// schemeWeight walks the ordered scheme rules; first match wins, no match
// keeps weight 1.0.
func (s *Scorer) schemeWeight(txn model.Transaction) float64 {
	if rule, ok := s.schemeRule(txn); ok {
		return rule.WeightPct / 100
	}
	return 1.0
}

// schemeRule returns the first rule matching the transaction, honoring the
// per-bucket apply flags and each rule's date window.
func (s *Scorer) schemeRule(txn model.Transaction) (scoreconfig.SchemeRule, bool) {
	if !s.schemeApplies(txn.Type) {
		return scoreconfig.SchemeRule{}, false
	}
	name := strings.ToLower(txn.SchemeName)
	for _, rule := range s.cfg.SchemeRules {
		if rule.StartDate != nil && txn.Date.Before(*rule.StartDate) {
			continue
		}
		if rule.EndDate != nil && !txn.Date.Before(*rule.EndDate) {
			continue
		}
		kw := strings.ToLower(rule.Keyword)
		matched := false
		switch rule.MatchType {
		case "exact":
			matched = name == kw
		case "startswith":
			matched = strings.HasPrefix(name, kw)
		default: // contains
			matched = strings.Contains(name, kw)
		}
		if matched {
			return rule, true
		}
	}
	return scoreconfig.SchemeRule{}, false
}

// SchemeMatches records each distinct scheme-rule hit across the
// transactions, for the full audit payload.
func (s *Scorer) SchemeMatches(txns []model.Transaction) []model.SchemeMatch {
	seen := make(map[string]bool)
	var out []model.SchemeMatch
	for _, txn := range txns {
		rule, ok := s.schemeRule(txn)
		if !ok {
			continue
		}
		key := strings.ToLower(txn.SchemeName) + "|" + strings.ToLower(rule.Keyword)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, model.SchemeMatch{
			SchemeName: txn.SchemeName,
			Keyword:    rule.Keyword,
			WeightPct:  rule.WeightPct,
		})
	}
	return out
}

// EffectiveConfig returns the normalized config the scorer was built with.
func (s *Scorer) EffectiveConfig() scoreconfig.LumpsumConfig { return s.cfg }

func (s *Scorer) schemeApplies(t model.TxnType) bool {
	a := s.cfg.SchemeApply
	switch t {
	case model.TxnPurchase:
		return a.Purchase
	case model.TxnRedemption:
		return a.Redemption
	case model.TxnSwitchIn:
		return a.SwitchIn
	case model.TxnSwitchOut:
		return a.SwitchOut
	case model.TxnCOBIn:
		return a.COBIn
	case model.TxnCOBOut:
		return a.COBOut
	}
	return false
}

func (s *Scorer) blacklisted(subCategory string) bool {
	cat := strings.ToLower(subCategory)
	for _, term := range s.cfg.Blacklist {
		if term != "" && strings.Contains(cat, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// bucketWeight returns the configured percentage as a multiplier. Purchase
// and Redemption are always 100%.
func (s *Scorer) bucketWeight(t model.TxnType) float64 {
	switch t {
	case model.TxnSwitchIn:
		return s.cfg.Weights.SwitchInPct / 100
	case model.TxnSwitchOut:
		return s.cfg.Weights.SwitchOutPct / 100
	case model.TxnCOBIn:
		return s.cfg.Weights.COBInPct / 100 * s.cfg.Options.COBInCorrection
	case model.TxnCOBOut:
		return s.cfg.Weights.COBOutPct / 100
	}
	return 1.0
}

// debtBonus adds bonus_pct of debt-category purchases when the debt ratio
// stays under the configured maximum. Blacklisted categories never qualify.
func (s *Scorer) debtBonus(txns []model.Transaction, totalPurchase float64) float64 {
	if !s.cfg.DebtBonus.Enable || totalPurchase <= 0 {
		return 0
	}
	var debtPurchase float64
	for _, txn := range txns {
		if txn.Type != model.TxnPurchase || s.blacklisted(txn.SubCategory) {
			continue
		}
		if strings.Contains(strings.ToLower(txn.SubCategory), "debt") {
			debtPurchase += txn.Amount
		}
	}
	if debtPurchase == 0 {
		return 0
	}
	ratio := debtPurchase / totalPurchase * 100
	if ratio >= s.cfg.DebtBonus.MaxDebtRatioPct {
		return 0
	}
	return s.cfg.DebtBonus.BonusPct / 100 * debtPurchase
}

// rateFor walks the ascending rate slabs: first slab whose [min, max) band
// contains the growth; the open-ended top slab matches on min alone.
func (s *Scorer) rateFor(growthPct float64) float64 {
	for _, slab := range s.cfg.RateSlabs {
		if growthPct < slab.MinPct {
			continue
		}
		if slab.MaxPct == nil || growthPct < *slab.MaxPct {
			return slab.Rate
		}
	}
	return 0
}

// multiplierFor walks the ascending meeting slabs: first slab with
// count <= max_count; the nil-max last slab is the catch-all.
func (s *Scorer) multiplierFor(count int) float64 {
	for _, slab := range s.cfg.MeetingSlabs {
		if slab.MaxCount == nil || count <= *slab.MaxCount {
			return slab.Multiplier
		}
	}
	return 1.0
}

// penalty resolves the first ascending slab with growth <= max_growth_pct
// and combines the flat and capped-percentage figures per strategy.
func (s *Scorer) penalty(growthPct, aumStart float64) float64 {
	for _, slab := range s.cfg.Penalty.Slabs {
		if growthPct > slab.MaxGrowthPct {
			continue
		}
		pct := math.Min(slab.TrailPct/100*aumStart, slab.CapRupees)
		if s.strategy == PenaltyMax {
			return math.Max(slab.FlatRupees, pct)
		}
		return math.Min(slab.FlatRupees, pct)
	}
	return 0
}

// advanceStreak applies this month's growth to the carried state.
func (s *Scorer) advanceStreak(prev model.StreakState, growthPct float64) model.StreakState {
	if growthPct <= s.cfg.Streak.HattrickThresholdPct {
		return model.StreakState{}
	}
	next := prev
	next.PositiveMonths++
	return next
}

// streakBonus pays on reaching 3 and 5 consecutive months, once per
// sequence each.
func (s *Scorer) streakBonus(prev model.StreakState, next *model.StreakState) float64 {
	if next.PositiveMonths == 0 {
		return 0
	}
	var bonus float64
	if next.PositiveMonths >= 3 && !prev.HattrickPaid {
		bonus += s.cfg.Streak.HattrickBonus
		next.HattrickPaid = true
	}
	if next.PositiveMonths >= 5 && !prev.FiveStreakPaid {
		bonus += s.cfg.Streak.FiveStreakBonus
		next.FiveStreakPaid = true
	}
	return bonus
}

// projectBonus picks the highest qualifying slab (ascending min_np) when the
// positive-month count qualifies.
func projectBonus(tpl scoreconfig.BonusTemplate, np float64, positiveMonths int) float64 {
	if positiveMonths < tpl.MinPositiveMonths {
		return 0
	}
	var bonus float64
	for _, slab := range tpl.Slabs {
		if np >= slab.MinNP {
			bonus = slab.BonusRupees
		}
	}
	return bonus
}

func positiveOne(np float64) int {
	if np > 0 {
		return 1
	}
	return 0
}

func flattenTypes(m map[model.TxnType]*model.TypeBucket) []model.TypeBucket {
	order := []model.TxnType{
		model.TxnPurchase, model.TxnRedemption,
		model.TxnSwitchIn, model.TxnSwitchOut,
		model.TxnCOBIn, model.TxnCOBOut,
	}
	out := make([]model.TypeBucket, 0, len(order))
	for _, t := range order {
		if b, ok := m[t]; ok {
			out = append(out, *b)
		} else {
			out = append(out, model.TypeBucket{Type: t})
		}
	}
	return out
}

func flattenCategories(m map[string]*model.CategoryBucket) []model.CategoryBucket {
	out := make([]model.CategoryBucket, 0, len(m))
	for _, c := range m {
		if c.Amount != 0 || c.Excluded {
			out = append(out, *c)
		}
	}
	// Deterministic audit order so re-runs produce byte-equal rows.
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
