package scoreconfig

import (
	"fmt"
	"sort"
)

// InsuranceOptions are the runtime knobs of the insurance scorer.
type InsuranceOptions struct {
	FYMode    string `json:"fy_mode"`    // FY_APR | CAL
	AuditMode string `json:"audit_mode"` // compact | full
}

// DaysBand maps a days-to-renewal band to base points. Bands are inclusive
// on both ends; nil bounds are open. Sorted descending by the lower bound.
type DaysBand struct {
	MinDays *int    `json:"min_days,omitempty"`
	MaxDays *int    `json:"max_days,omitempty"`
	Points  float64 `json:"points"`
}

// PremiumBand maps an annualized-premium band [Min, Max) to base points.
type PremiumBand struct {
	MinPremium float64  `json:"min_premium"`
	MaxPremium *float64 `json:"max_premium,omitempty"`
	Points     float64  `json:"points"`
}

// TenureWeight maps a policy term (in years) to a weight; the first entry
// (descending MinYears) whose floor the term reaches applies.
type TenureWeight struct {
	MinYears int     `json:"min_years"`
	Weight   float64 `json:"weight"`
}

// CategoryRule reweights a policy whose type contains the keyword.
// Ordered, first match wins; no match keeps weight 1.0.
type CategoryRule struct {
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
}

// CashbackTier maps cashback as a % of premium to a weight, first match
// descending by MinPct.
type CashbackTier struct {
	MinPct float64 `json:"min_pct"`
	Weight float64 `json:"weight"`
}

// PayoutSlab maps monthly points_total to payout percentages. Sorted
// descending by MinPoints; first qualifying slab applies.
type PayoutSlab struct {
	MinPoints   float64 `json:"min_points"`
	FreshPct    float64 `json:"fresh_pct"`
	RenewPct    float64 `json:"renew_pct"`
	BonusRupees float64 `json:"bonus_rupees"`
}

// RupeeBonusSlab pays a rupee bonus when cumulative fresh premium reaches
// MinPremium. The highest qualifying slab pays.
type RupeeBonusSlab struct {
	MinPremium  float64 `json:"min_premium"`
	BonusRupees float64 `json:"bonus_rupees"`
}

// InsuranceStreak configures the monthly fresh-premium streak bonuses.
type InsuranceStreak struct {
	MinMonthlyPremium float64 `json:"min_monthly_premium"`
	MonthBonus        float64 `json:"month_bonus"`
	HattrickBonus     float64 `json:"hattrick_bonus"`
	ExtraMonthBonus   float64 `json:"extra_month_bonus"`
}

// InsuranceConfig is the runtime configuration of the insurance scorer.
type InsuranceConfig struct {
	Options InsuranceOptions `json:"options"`

	RenewSlabs []DaysBand    `json:"renew_slabs"`
	FreshSlabs []PremiumBand `json:"fresh_slabs"`

	UpsellDivisor float64 `json:"upsell_divisor"`

	TenureFresh    []TenureWeight `json:"tenure_fresh"`
	TenureRenewPos []TenureWeight `json:"tenure_renew_pos"`
	TenureRenewNeg []TenureWeight `json:"tenure_renew_neg"`

	CategoryRules        []CategoryRule `json:"category_rules"`
	DeductibleWeight     float64        `json:"deductible_weight"`
	AssociateWeight      float64        `json:"associate_weight"`
	CashbackTiersTerm    []CashbackTier `json:"cashback_tiers_term"`
	CashbackTiersNonTerm []CashbackTier `json:"cashback_tiers_non_term"`

	Streak InsuranceStreak `json:"streak"`

	PayoutSlabs             []PayoutSlab `json:"slabs"`
	PayoutSlabsInvestmentRM []PayoutSlab `json:"slabs_investment_rm"`
	// InvestmentProfiles lists directory profiles paid on the investment-RM
	// slab table.
	InvestmentProfiles []string `json:"investment_profiles"`

	QtrBonusRupees    []RupeeBonusSlab `json:"qtr_bonus_rupees"`
	AnnualBonusRupees []RupeeBonusSlab `json:"annual_bonus_rupees"`

	CompanyWhitelist []string `json:"company_whitelist"`
	CompanyBlacklist []string `json:"company_blacklist"`

	IgnoredRMs []string `json:"ignored_rms"`
}

// DefaultInsurance returns the built-in insurance configuration.
func DefaultInsurance() InsuranceConfig {
	return InsuranceConfig{
		Options: InsuranceOptions{
			FYMode:    "FY_APR",
			AuditMode: "compact",
		},
		RenewSlabs: []DaysBand{
			{MinDays: IntPtr(31), Points: 175},
			{MinDays: IntPtr(15), MaxDays: IntPtr(30), Points: 100},
			{MinDays: IntPtr(8), MaxDays: IntPtr(14), Points: 50},
			{MinDays: IntPtr(-1), MaxDays: IntPtr(7), Points: 35},
			{MinDays: IntPtr(-7), MaxDays: IntPtr(-2), Points: 20},
			{MinDays: IntPtr(-15), MaxDays: IntPtr(-8), Points: -100},
			{MinDays: IntPtr(-29), MaxDays: IntPtr(-16), Points: -150},
			{MaxDays: IntPtr(-30), Points: -200},
		},
		FreshSlabs: []PremiumBand{
			{MinPremium: 0, MaxPremium: FloatPtr(25_000), Points: 50},
			{MinPremium: 25_000, MaxPremium: FloatPtr(75_000), Points: 100},
			{MinPremium: 75_000, MaxPremium: FloatPtr(200_000), Points: 250},
			{MinPremium: 200_000, MaxPremium: FloatPtr(500_000), Points: 450},
			{MinPremium: 500_000, Points: 700},
		},
		UpsellDivisor: 1000,
		TenureFresh: []TenureWeight{
			{MinYears: 3, Weight: 1.25},
			{MinYears: 2, Weight: 1.10},
			{MinYears: 1, Weight: 1.00},
		},
		TenureRenewPos: []TenureWeight{
			{MinYears: 3, Weight: 1.15},
			{MinYears: 1, Weight: 1.00},
		},
		TenureRenewNeg: []TenureWeight{
			{MinYears: 1, Weight: 1.00},
		},
		CategoryRules: []CategoryRule{
			{Keyword: "gmc-otc", Weight: 0.50},
			{Keyword: "gmc", Weight: 0.20},
			{Keyword: "gpa", Weight: 0.20},
			{Keyword: "motor", Weight: 0.40},
			{Keyword: "fire", Weight: 0.40},
			{Keyword: "marine", Weight: 0.40},
			{Keyword: "ulip", Weight: 0.00},
			{Keyword: "term", Weight: 1.00},
		},
		DeductibleWeight: 1.15,
		AssociateWeight:  0.25,
		CashbackTiersTerm: []CashbackTier{
			{MinPct: 20, Weight: 0.50},
			{MinPct: 10, Weight: 0.75},
			{MinPct: 0, Weight: 1.00},
		},
		CashbackTiersNonTerm: []CashbackTier{
			{MinPct: 15, Weight: 0.60},
			{MinPct: 5, Weight: 0.85},
			{MinPct: 0, Weight: 1.00},
		},
		Streak: InsuranceStreak{
			MinMonthlyPremium: 300_000,
			MonthBonus:        2000,
			HattrickBonus:     5000,
			ExtraMonthBonus:   2000,
		},
		PayoutSlabs: []PayoutSlab{
			{MinPoints: 5000, FreshPct: 0.12, RenewPct: 0.03, BonusRupees: 10_000},
			{MinPoints: 2500, FreshPct: 0.10, RenewPct: 0.025, BonusRupees: 5000},
			{MinPoints: 1000, FreshPct: 0.08, RenewPct: 0.02, BonusRupees: 2000},
			{MinPoints: 250, FreshPct: 0.05, RenewPct: 0.01, BonusRupees: 0},
		},
		PayoutSlabsInvestmentRM: []PayoutSlab{
			{MinPoints: 2500, FreshPct: 0.06, RenewPct: 0.015, BonusRupees: 2500},
			{MinPoints: 500, FreshPct: 0.04, RenewPct: 0.01, BonusRupees: 0},
		},
		InvestmentProfiles: []string{"Mutual Funds"},
		QtrBonusRupees: []RupeeBonusSlab{
			{MinPremium: 900_000, BonusRupees: 7500},
			{MinPremium: 2_000_000, BonusRupees: 20_000},
		},
		AnnualBonusRupees: []RupeeBonusSlab{
			{MinPremium: 4_000_000, BonusRupees: 40_000},
			{MinPremium: 10_000_000, BonusRupees: 120_000},
		},
	}
}

// ValidateInsurance checks an insurance payload, returning every violation.
func ValidateInsurance(c InsuranceConfig) []FieldError {
	var errs []FieldError

	if c.Options.FYMode != "FY_APR" && c.Options.FYMode != "CAL" {
		errs = append(errs, FieldError{"options.fy_mode", fmt.Sprintf("must be FY_APR or CAL (got %q)", c.Options.FYMode)})
	}
	if c.Options.AuditMode != "compact" && c.Options.AuditMode != "full" {
		errs = append(errs, FieldError{"options.audit_mode", fmt.Sprintf("must be compact or full (got %q)", c.Options.AuditMode)})
	}

	if c.UpsellDivisor <= 0 {
		errs = append(errs, FieldError{"upsell_divisor", "must be > 0"})
	}

	for i, b := range c.RenewSlabs {
		if b.MinDays != nil && b.MaxDays != nil && *b.MinDays > *b.MaxDays {
			errs = append(errs, FieldError{fmt.Sprintf("renew_slabs[%d]", i), "min_days must be <= max_days"})
		}
		if b.MinDays == nil && b.MaxDays == nil {
			errs = append(errs, FieldError{fmt.Sprintf("renew_slabs[%d]", i), "at least one of min_days, max_days is required"})
		}
	}

	for i, b := range c.FreshSlabs {
		if b.MaxPremium != nil && b.MinPremium >= *b.MaxPremium {
			errs = append(errs, FieldError{fmt.Sprintf("fresh_slabs[%d]", i), "min_premium must be < max_premium"})
		}
	}

	for name, table := range map[string][]PayoutSlab{
		"slabs":               c.PayoutSlabs,
		"slabs_investment_rm": c.PayoutSlabsInvestmentRM,
	} {
		for i, s := range table {
			if s.FreshPct < 0 || s.FreshPct > 1 || s.RenewPct < 0 || s.RenewPct > 1 {
				errs = append(errs, FieldError{fmt.Sprintf("%s[%d]", name, i), "fresh_pct and renew_pct must be between 0 and 1"})
			}
			if s.BonusRupees < 0 {
				errs = append(errs, FieldError{fmt.Sprintf("%s[%d].bonus_rupees", name, i), "must be >= 0"})
			}
		}
	}

	for i, w := range c.TenureFresh {
		if w.Weight < 0 {
			errs = append(errs, FieldError{fmt.Sprintf("tenure_fresh[%d].weight", i), "must be >= 0"})
		}
	}
	for i, r := range c.CategoryRules {
		if r.Keyword == "" {
			errs = append(errs, FieldError{fmt.Sprintf("category_rules[%d].keyword", i), "must not be empty"})
		}
		if r.Weight < 0 {
			errs = append(errs, FieldError{fmt.Sprintf("category_rules[%d].weight", i), "must be >= 0"})
		}
	}

	return errs
}

// NormalizeInsurance sorts slab tables into evaluation order and
// substitutes defaults for inconsistent stored fields.
func NormalizeInsurance(c InsuranceConfig) (InsuranceConfig, bool) {
	fallback := false
	def := DefaultInsurance()

	if c.Options.FYMode != "FY_APR" && c.Options.FYMode != "CAL" {
		c.Options.FYMode = def.Options.FYMode
		fallback = true
	}
	if c.Options.AuditMode != "compact" && c.Options.AuditMode != "full" {
		c.Options.AuditMode = def.Options.AuditMode
		fallback = true
	}
	if c.UpsellDivisor <= 0 {
		c.UpsellDivisor = def.UpsellDivisor
		fallback = true
	}

	// Renewal bands match top-down by lower bound.
	sort.SliceStable(c.RenewSlabs, func(i, j int) bool {
		lo := func(b DaysBand) int {
			if b.MinDays != nil {
				return *b.MinDays
			}
			// Open lower bound sorts last.
			return -1 << 30
		}
		return lo(c.RenewSlabs[i]) > lo(c.RenewSlabs[j])
	})
	sort.SliceStable(c.FreshSlabs, func(i, j int) bool {
		return c.FreshSlabs[i].MinPremium < c.FreshSlabs[j].MinPremium
	})
	for _, table := range [][]TenureWeight{c.TenureFresh, c.TenureRenewPos, c.TenureRenewNeg} {
		sort.SliceStable(table, func(i, j int) bool { return table[i].MinYears > table[j].MinYears })
	}
	for _, tiers := range [][]CashbackTier{c.CashbackTiersTerm, c.CashbackTiersNonTerm} {
		sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinPct > tiers[j].MinPct })
	}
	for _, table := range [][]PayoutSlab{c.PayoutSlabs, c.PayoutSlabsInvestmentRM} {
		sort.SliceStable(table, func(i, j int) bool { return table[i].MinPoints > table[j].MinPoints })
	}
	for _, slabs := range [][]RupeeBonusSlab{c.QtrBonusRupees, c.AnnualBonusRupees} {
		sort.SliceStable(slabs, func(i, j int) bool { return slabs[i].MinPremium < slabs[j].MinPremium })
	}

	return c, fallback
}
