package scoreconfig

import (
	"fmt"
	"sort"
)

// LumpsumOptions are the runtime knobs of the lumpsum scorer.
type LumpsumOptions struct {
	RangeMode        string  `json:"range_mode"` // month | last5 | fy | since
	SinceMonth       string  `json:"since_month,omitempty"`
	FYMode           string  `json:"fy_mode"`    // FY_APR | CAL
	AuditMode        string  `json:"audit_mode"` // compact | full
	ApplyStreakBonus bool    `json:"apply_streak_bonus"`
	COBInCorrection  float64 `json:"cob_in_correction_factor"`
}

// BucketWeights are the per-bucket percentages applied at aggregation time.
// Purchase and Redemption are always 100 and not configurable.
type BucketWeights struct {
	SwitchInPct  float64 `json:"switch_in_pct"`
	SwitchOutPct float64 `json:"switch_out_pct"`
	COBInPct     float64 `json:"cob_in_pct"`
	COBOutPct    float64 `json:"cob_out_pct"`
}

// SchemeApplyTo controls which lumpsum buckets scheme rules reweight.
type SchemeApplyTo struct {
	Purchase   bool `json:"purchase"`
	Redemption bool `json:"redemption"`
	SwitchIn   bool `json:"switch_in"`
	SwitchOut  bool `json:"switch_out"`
	COBIn      bool `json:"cob_in"`
	COBOut     bool `json:"cob_out"`
}

// DebtBonus adds a percentage of debt-category purchases when the RM's debt
// ratio stays under the configured maximum.
type DebtBonus struct {
	Enable          bool    `json:"enable"`
	BonusPct        float64 `json:"bonus_pct"`
	MaxDebtRatioPct float64 `json:"max_debt_ratio_pct"`
}

// PenaltySlab applies when NetPurchase is negative. Sorted ascending by
// MaxGrowthPct; the first slab with growth% <= MaxGrowthPct matches.
type PenaltySlab struct {
	MaxGrowthPct float64 `json:"max_growth_pct"`
	TrailPct     float64 `json:"trail_pct"`
	CapRupees    float64 `json:"cap_rupees"`
	FlatRupees   float64 `json:"flat_rupees"`
}

// LumpsumPenalty gates and parameterizes negative-month penalties.
type LumpsumPenalty struct {
	Enable bool          `json:"enable"`
	Slabs  []PenaltySlab `json:"slabs"`
}

// StreakBonus pays fixed bonuses on 3- and 5-month positive growth streaks.
type StreakBonus struct {
	HattrickThresholdPct float64 `json:"hattrick_threshold_pct"`
	HattrickBonus        float64 `json:"hattrick_bonus"`
	FiveStreakBonus      float64 `json:"five_streak_bonus"`
}

// NPBonusSlab pays a rupee bonus when cumulative NetPurchase reaches MinNP.
type NPBonusSlab struct {
	MinNP       float64 `json:"min_np"`
	BonusRupees float64 `json:"bonus_rupees"`
}

// BonusTemplate is the quarterly/annual projection template. The highest
// qualifying slab pays, and qualification additionally requires the count
// of positive-NP months to reach MinPositiveMonths.
type BonusTemplate struct {
	Slabs             []NPBonusSlab `json:"slabs"`
	MinPositiveMonths int           `json:"min_positive_months"`
}

// LumpsumConfig is the runtime configuration of the lumpsum scorer.
type LumpsumConfig struct {
	Options      LumpsumOptions `json:"options"`
	Weights      BucketWeights  `json:"weights"`
	Blacklist    []string       `json:"blacklist"`
	SchemeRules  []SchemeRule   `json:"scheme_rules"`
	SchemeApply  SchemeApplyTo  `json:"apply_to"`
	RateSlabs    []RateSlab     `json:"rate_slabs"`
	MeetingSlabs []MeetingSlab  `json:"meeting_slabs"`
	DebtBonus    DebtBonus      `json:"debt_bonus"`
	Penalty      LumpsumPenalty `json:"ls_penalty"`
	Streak       StreakBonus    `json:"streak"`
	QtrBonus     BonusTemplate  `json:"qtr_bonus_template"`
	AnnualBonus  BonusTemplate  `json:"annual_bonus_template"`
	IgnoredRMs   []string       `json:"ignored_rms"`
}

// DefaultLumpsum returns the built-in lumpsum configuration.
func DefaultLumpsum() LumpsumConfig {
	return LumpsumConfig{
		Options: LumpsumOptions{
			RangeMode:        "month",
			FYMode:           "FY_APR",
			AuditMode:        "compact",
			ApplyStreakBonus: true,
			COBInCorrection:  1.0,
		},
		Weights: BucketWeights{
			SwitchInPct:  120,
			SwitchOutPct: 100,
			COBInPct:     50,
			COBOutPct:    120,
		},
		Blacklist: []string{"liquid", "overnight"},
		SchemeApply: SchemeApplyTo{
			Purchase: true,
			SwitchIn: true,
		},
		RateSlabs: []RateSlab{
			{MinPct: 0, MaxPct: FloatPtr(1), Rate: 0.0005},
			{MinPct: 1, MaxPct: FloatPtr(2), Rate: 0.0010},
			{MinPct: 2, Rate: 0.0015},
		},
		MeetingSlabs: []MeetingSlab{
			{MaxCount: IntPtr(5), Multiplier: 1.00},
			{MaxCount: IntPtr(11), Multiplier: 1.05},
			{MaxCount: nil, Multiplier: 1.10},
		},
		DebtBonus: DebtBonus{
			Enable:          false,
			BonusPct:        10,
			MaxDebtRatioPct: 40,
		},
		Penalty: LumpsumPenalty{
			Enable: true,
			Slabs: []PenaltySlab{
				{MaxGrowthPct: -1.0, TrailPct: 0.5, CapRupees: 5000, FlatRupees: 0},
				{MaxGrowthPct: -0.5, FlatRupees: 2500},
			},
		},
		Streak: StreakBonus{
			HattrickThresholdPct: 1.0,
			HattrickBonus:        2500,
			FiveStreakBonus:      5000,
		},
		QtrBonus: BonusTemplate{
			Slabs: []NPBonusSlab{
				{MinNP: 2_500_000, BonusRupees: 5000},
				{MinNP: 7_500_000, BonusRupees: 15000},
			},
			MinPositiveMonths: 2,
		},
		AnnualBonus: BonusTemplate{
			Slabs: []NPBonusSlab{
				{MinNP: 10_000_000, BonusRupees: 25000},
				{MinNP: 30_000_000, BonusRupees: 75000},
			},
			MinPositiveMonths: 8,
		},
	}
}

// ValidateLumpsum checks a lumpsum payload, returning every violation.
func ValidateLumpsum(c LumpsumConfig) []FieldError {
	var errs []FieldError

	switch c.Options.RangeMode {
	case "month", "last5", "fy", "since":
	default:
		errs = append(errs, FieldError{"options.range_mode", fmt.Sprintf("must be one of month, last5, fy, since (got %q)", c.Options.RangeMode)})
	}
	if c.Options.RangeMode == "since" && c.Options.SinceMonth == "" {
		errs = append(errs, FieldError{"options.since_month", "required when range_mode is since"})
	}
	if c.Options.FYMode != "FY_APR" && c.Options.FYMode != "CAL" {
		errs = append(errs, FieldError{"options.fy_mode", fmt.Sprintf("must be FY_APR or CAL (got %q)", c.Options.FYMode)})
	}
	if c.Options.AuditMode != "compact" && c.Options.AuditMode != "full" {
		errs = append(errs, FieldError{"options.audit_mode", fmt.Sprintf("must be compact or full (got %q)", c.Options.AuditMode)})
	}

	for _, w := range []struct {
		name string
		val  float64
	}{
		{"weights.switch_in_pct", c.Weights.SwitchInPct},
		{"weights.switch_out_pct", c.Weights.SwitchOutPct},
		{"weights.cob_in_pct", c.Weights.COBInPct},
		{"weights.cob_out_pct", c.Weights.COBOutPct},
	} {
		if w.val < 0 || w.val > 500 {
			errs = append(errs, FieldError{w.name, "must be between 0 and 500"})
		}
	}

	for i, s := range c.RateSlabs {
		if s.MaxPct != nil && s.MinPct >= *s.MaxPct {
			errs = append(errs, FieldError{fmt.Sprintf("rate_slabs[%d]", i), "min_pct must be < max_pct"})
		}
		if s.Rate < 0 {
			errs = append(errs, FieldError{fmt.Sprintf("rate_slabs[%d].rate", i), "must be >= 0"})
		}
	}

	var prevMax *int
	for i, s := range c.MeetingSlabs {
		if s.Multiplier < 1.0 {
			errs = append(errs, FieldError{fmt.Sprintf("meeting_slabs[%d].multiplier", i), "must be >= 1.0"})
		}
		if s.MaxCount == nil {
			if i != len(c.MeetingSlabs)-1 {
				errs = append(errs, FieldError{fmt.Sprintf("meeting_slabs[%d].max_count", i), "null max_count is only allowed on the last slab"})
			}
			continue
		}
		if prevMax != nil && *s.MaxCount <= *prevMax {
			errs = append(errs, FieldError{fmt.Sprintf("meeting_slabs[%d].max_count", i), "max_count values must be strictly increasing"})
		}
		prevMax = s.MaxCount
	}

	for i, r := range c.SchemeRules {
		switch r.MatchType {
		case "exact", "contains", "startswith":
		default:
			errs = append(errs, FieldError{fmt.Sprintf("scheme_rules[%d].match_type", i), fmt.Sprintf("must be exact, contains, or startswith (got %q)", r.MatchType)})
		}
		if r.WeightPct < 0 {
			errs = append(errs, FieldError{fmt.Sprintf("scheme_rules[%d].weight_pct", i), "must be >= 0"})
		}
	}

	for i, s := range c.Penalty.Slabs {
		if s.TrailPct < 0 || s.CapRupees < 0 || s.FlatRupees < 0 {
			errs = append(errs, FieldError{fmt.Sprintf("ls_penalty.slabs[%d]", i), "trail_pct, cap_rupees, and flat_rupees must be >= 0"})
		}
	}

	for _, tpl := range []struct {
		name string
		t    BonusTemplate
	}{{"qtr_bonus_template", c.QtrBonus}, {"annual_bonus_template", c.AnnualBonus}} {
		if tpl.t.MinPositiveMonths < 0 {
			errs = append(errs, FieldError{tpl.name + ".min_positive_months", "must be >= 0"})
		}
		for i, s := range tpl.t.Slabs {
			if s.BonusRupees < 0 {
				errs = append(errs, FieldError{fmt.Sprintf("%s.slabs[%d].bonus_rupees", tpl.name, i), "must be >= 0"})
			}
		}
	}

	return errs
}

// NormalizeLumpsum sorts slabs into evaluation order and substitutes the
// built-in default for any inconsistent stored field. It returns true when
// a fallback was used; rows produced under that config carry the
// config_fallback_used flag.
func NormalizeLumpsum(c LumpsumConfig) (LumpsumConfig, bool) {
	fallback := false
	def := DefaultLumpsum()

	switch c.Options.RangeMode {
	case "month", "last5", "fy", "since":
	default:
		c.Options.RangeMode = def.Options.RangeMode
		fallback = true
	}
	if c.Options.FYMode != "FY_APR" && c.Options.FYMode != "CAL" {
		c.Options.FYMode = def.Options.FYMode
		fallback = true
	}
	if c.Options.AuditMode != "compact" && c.Options.AuditMode != "full" {
		c.Options.AuditMode = def.Options.AuditMode
		fallback = true
	}
	if c.Options.COBInCorrection <= 0 {
		c.Options.COBInCorrection = def.Options.COBInCorrection
		fallback = true
	}

	sort.SliceStable(c.RateSlabs, func(i, j int) bool {
		return c.RateSlabs[i].MinPct < c.RateSlabs[j].MinPct
	})
	sort.SliceStable(c.MeetingSlabs, func(i, j int) bool {
		a, b := c.MeetingSlabs[i].MaxCount, c.MeetingSlabs[j].MaxCount
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a < *b
	})
	sort.SliceStable(c.Penalty.Slabs, func(i, j int) bool {
		return c.Penalty.Slabs[i].MaxGrowthPct < c.Penalty.Slabs[j].MaxGrowthPct
	})
	sort.SliceStable(c.QtrBonus.Slabs, func(i, j int) bool {
		return c.QtrBonus.Slabs[i].MinNP < c.QtrBonus.Slabs[j].MinNP
	})
	sort.SliceStable(c.AnnualBonus.Slabs, func(i, j int) bool {
		return c.AnnualBonus.Slabs[i].MinNP < c.AnnualBonus.Slabs[j].MinNP
	})

	return c, fallback
}
