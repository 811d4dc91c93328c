package insurance

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

// Scorer computes per-policy scores and monthly rows from fully-gathered
// inputs.
type Scorer struct {
	cfg      scoreconfig.InsuranceConfig
	hash     string
	fallback bool
}

func NewScorer(eff scoreconfig.Effective[scoreconfig.InsuranceConfig]) *Scorer {
	return &Scorer{cfg: eff.Config, hash: eff.Hash, fallback: eff.FallbackUsed}
}

// EffectiveConfig returns the normalized config the scorer was built with.
func (s *Scorer) EffectiveConfig() scoreconfig.InsuranceConfig { return s.cfg }

// ScorePolicy computes one policy's points.
func (s *Scorer) ScorePolicy(p model.InsurancePolicy, rm identity.Resolution) model.PolicyScore {
	c := Classify(p)

	score := model.PolicyScore{
		LeadID:         p.LeadID,
		PolicyNumber:   p.PolicyNumber,
		EmployeeID:     rm.EmployeeID,
		EmployeeName:   rm.CanonicalName,
		PeriodMonth:    model.MonthOf(p.ConversionDate),
		Classification: c.Class,
		UpsellEligible: c.UpsellEligible,
		DaysToRenewal:  c.DaysToRenewal,
		TermYears:      c.TermYears,
		UpdatedAt:      time.Now().UTC(),
	}

	annualized := p.ThisYearPremium / float64(c.TermYears)

	switch c.Class {
	case model.PolicyFresh:
		score.BasePoints = s.freshBase(annualized)
		// Bonus-basis premium counts only toward whitelisted companies.
		if s.companyEligible(p.Company) {
			score.FreshPremiumEligible = p.ThisYearPremium
		}
	case model.PolicyRenewal:
		score.BasePoints = s.renewBase(c.DaysToRenewal)
		score.RenewalPremium = p.ThisYearPremium
		if c.UpsellEligible && p.ThisYearPremium > p.LastYearPremium {
			delta := (p.ThisYearPremium - p.LastYearPremium) / float64(c.TermYears)
			score.UpsellPoints = math.Floor(delta / s.cfg.UpsellDivisor)
		}
	}

	score.TenureWeight = s.tenureWeight(c, score.BasePoints+score.UpsellPoints)
	score.CategoryWeight = s.categoryWeight(p.PolicyType)
	score.DeductibleWeight = 1.0
	if c.Class == model.PolicyFresh && p.DeductibleAdded {
		score.DeductibleWeight = s.cfg.DeductibleWeight
	}
	score.AssociateWeight = 1.0
	if p.DirectAssociate == "Associate Client" {
		score.AssociateWeight = s.cfg.AssociateWeight
	}
	score.CashbackWeight = s.cashbackWeight(p)

	score.WeightFactor = score.TenureWeight * score.CategoryWeight *
		score.DeductibleWeight * score.AssociateWeight * score.CashbackWeight
	score.TotalPoints = round2((score.BasePoints + score.UpsellPoints) * score.WeightFactor)

	s.sanitize(&score)
	return score
}

// sanitize enforces the post-scoring invariants: no cliff slab without
// renewal data, and fresh rows never carry renewal-slab bases.
func (s *Scorer) sanitize(score *model.PolicyScore) {
	if score.Classification == model.PolicyRenewal && score.DaysToRenewal == nil && score.BasePoints < 0 {
		score.BasePoints = 0
		score.TotalPoints = round2(score.UpsellPoints * score.WeightFactor)
	}
	if score.Classification == model.PolicyFresh && score.BasePoints < 0 {
		score.BasePoints = 0
		score.TotalPoints = 0
	}
}

func (s *Scorer) freshBase(annualized float64) float64 {
	for _, band := range s.cfg.FreshSlabs {
		if annualized >= band.MinPremium && (band.MaxPremium == nil || annualized < *band.MaxPremium) {
			return band.Points
		}
	}
	return 0
}

// renewBase walks the days bands top-down; a nil days-to-renewal earns
// nothing rather than the bottom penalty slab.
func (s *Scorer) renewBase(days *int) float64 {
	if days == nil {
		return 0
	}
	for _, band := range s.cfg.RenewSlabs {
		if band.MinDays != nil && *days < *band.MinDays {
			continue
		}
		if band.MaxDays != nil && *days > *band.MaxDays {
			continue
		}
		return band.Points
	}
	return 0
}

func (s *Scorer) tenureWeight(c Classification, points float64) float64 {
	table := s.cfg.TenureFresh
	if c.Class == model.PolicyRenewal {
		table = s.cfg.TenureRenewPos
		if points < 0 {
			table = s.cfg.TenureRenewNeg
		}
	}
	for _, w := range table {
		if c.TermYears >= w.MinYears {
			return w.Weight
		}
	}
	return 1.0
}

// categoryWeight walks the ordered rules, first match wins, no match is 1.0.
func (s *Scorer) categoryWeight(policyType string) float64 {
	typ := strings.ToLower(policyType)
	for _, rule := range s.cfg.CategoryRules {
		if strings.Contains(typ, strings.ToLower(rule.Keyword)) {
			return rule.Weight
		}
	}
	return 1.0
}

func (s *Scorer) cashbackWeight(p model.InsurancePolicy) float64 {
	if p.CashbackAmount <= 0 || p.ThisYearPremium <= 0 {
		return 1.0
	}
	pct := p.CashbackAmount / p.ThisYearPremium * 100
	tiers := s.cfg.CashbackTiersNonTerm
	if strings.Contains(strings.ToLower(p.PolicyType), "term") {
		tiers = s.cfg.CashbackTiersTerm
	}
	for _, tier := range tiers {
		if pct >= tier.MinPct {
			return tier.Weight
		}
	}
	return 1.0
}

// MonthInputs is everything one RM-month aggregation needs. Streak state and
// cumulative premiums arrive from persisted prior rows.
type MonthInputs struct {
	Month    model.Month
	RM       identity.Resolution
	Policies []model.PolicyScore

	// PrevStreak is the consecutive qualifying-month streak from the previous
	// month's persisted row.
	PrevStreak int

	// QTDFreshPremium / FYTDFreshPremium cover prior months of the quarter /
	// fiscal year; the current month is added here.
	QTDFreshPremium  float64
	FYTDFreshPremium float64
	IsQuarterEnd     bool
	IsFYEnd          bool
}

// ScoreMonth aggregates one RM's policy scores into the monthly row.
func (s *Scorer) ScoreMonth(in MonthInputs) model.InsuranceRow {
	row := model.InsuranceRow{
		RowMeta: model.RowMeta{
			EmployeeID:     in.RM.EmployeeID,
			EmployeeName:   in.RM.CanonicalName,
			Month:          in.Month,
			IsActive:       in.RM.IsActive,
			ConfigFallback: s.fallback,
			ConfigHash:     s.hash,
			SchemaVersion:  model.SchemaVersion,
			UpdatedAt:      time.Now().UTC(),
		},
	}

	for _, p := range in.Policies {
		row.PolicyCount++
		row.PointsPolicy += p.TotalPoints
		row.FreshPremium += p.FreshPremiumEligible
		row.RenewalPremium += p.RenewalPremium
	}
	row.PointsPolicy = round2(row.PointsPolicy)

	if row.FreshPremium >= s.cfg.Streak.MinMonthlyPremium {
		row.StreakMonths = in.PrevStreak + 1
		row.PointsBonus += s.cfg.Streak.MonthBonus
		// Hattrick and extra-month bonuses stack on the monthly bonus, so a
		// fourth streak month pays month_bonus + extra_month_bonus.
		if row.StreakMonths == 3 {
			row.PointsBonus += s.cfg.Streak.HattrickBonus
		} else if row.StreakMonths > 3 {
			row.PointsBonus += s.cfg.Streak.ExtraMonthBonus
		}
	}
	row.PointsTotal = round2(row.PointsPolicy + row.PointsBonus)

	slab := s.payoutSlab(in.RM.Profile, row.PointsTotal)
	if slab != nil {
		row.FreshPct = slab.FreshPct
		row.RenewPct = slab.RenewPct
		row.SlabBonus = slab.BonusRupees
	}

	if in.IsQuarterEnd {
		row.QtrBonus = highestRupeeBonus(s.cfg.QtrBonusRupees, in.QTDFreshPremium+row.FreshPremium)
	}
	if in.IsFYEnd {
		row.AnnualBonus = highestRupeeBonus(s.cfg.AnnualBonusRupees, in.FYTDFreshPremium+row.FreshPremium)
	}

	// Rupee composition in decimal to keep payouts exact to the paisa.
	payout := decimal.NewFromFloat(row.FreshPremium).Mul(decimal.NewFromFloat(row.FreshPct)).
		Add(decimal.NewFromFloat(row.RenewalPremium).Mul(decimal.NewFromFloat(row.RenewPct))).
		Add(decimal.NewFromFloat(row.SlabBonus)).
		Add(decimal.NewFromFloat(row.QtrBonus)).
		Add(decimal.NewFromFloat(row.AnnualBonus))
	row.PayoutAmount, _ = payout.Round(2).Float64()

	return row
}

// LeaderCredit is the 20% roll-up of one RM-month, bucketed by profile.
func (s *Scorer) LeaderCredit(row model.InsuranceRow, profile string) model.LeaderCredit {
	bucket := model.BucketINS
	if s.isInvestmentProfile(profile) {
		bucket = model.BucketMF
	}
	return model.LeaderCredit{
		Source:      row.EmployeeID,
		PeriodMonth: row.Month,
		Bucket:      bucket,
		Points:      round2(row.PointsTotal * 0.20),
		UpdatedAt:   time.Now().UTC(),
	}
}

func (s *Scorer) payoutSlab(profile string, points float64) *scoreconfig.PayoutSlab {
	table := s.cfg.PayoutSlabs
	if s.isInvestmentProfile(profile) {
		table = s.cfg.PayoutSlabsInvestmentRM
	}
	for i := range table {
		if points >= table[i].MinPoints {
			return &table[i]
		}
	}
	return nil
}

// Blacklisted reports whether a policy's company is excluded from scoring
// entirely.
func (s *Scorer) Blacklisted(company string) bool {
	for _, c := range s.cfg.CompanyBlacklist {
		if strings.EqualFold(c, company) {
			return true
		}
	}
	return false
}

// companyEligible gates the bonus-basis premium: never blacklisted, and on
// the whitelist when one is configured.
func (s *Scorer) companyEligible(company string) bool {
	if s.Blacklisted(company) {
		return false
	}
	if len(s.cfg.CompanyWhitelist) == 0 {
		return true
	}
	for _, c := range s.cfg.CompanyWhitelist {
		if strings.EqualFold(c, company) {
			return true
		}
	}
	return false
}

func (s *Scorer) isInvestmentProfile(profile string) bool {
	for _, p := range s.cfg.InvestmentProfiles {
		if strings.EqualFold(p, profile) {
			return true
		}
	}
	return false
}

// highestRupeeBonus pays the highest qualifying slab (ascending thresholds).
func highestRupeeBonus(slabs []scoreconfig.RupeeBonusSlab, premium float64) float64 {
	var bonus float64
	for _, slab := range slabs {
		if premium >= slab.MinPremium {
			bonus = slab.BonusRupees
		}
	}
	return bonus
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
