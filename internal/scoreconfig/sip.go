package scoreconfig

import (
	"fmt"
	"sort"
)

// SWPWeights are the signed weights applied to SWP registrations and
// cancellations when SWP netting is enabled. A negative registration weight
// reduces net SIP.
type SWPWeights struct {
	Registration float64 `json:"registration"`
	Cancellation float64 `json:"cancellation"`
}

// SIPOptions are the runtime knobs of the SIP scorer.
type SIPOptions struct {
	RangeMode       string     `json:"range_mode"`   // month | last5 | fy | since
	SinceMonth      string     `json:"since_month,omitempty"`
	FYMode          string     `json:"fy_mode"`      // FY_APR | CAL
	AuditMode       string     `json:"audit_mode"`   // compact | full
	SIPNetMode      string     `json:"sip_net_mode"` // sip_only | sip_plus_swp
	IncludeSWP      bool       `json:"include_swp"`
	SWPWeights      SWPWeights `json:"swp_weights"`
	HorizonMonths   int        `json:"horizon_months"`
	LSGatePct       float64    `json:"ls_gate_pct"`
	LSGateMinRupees float64    `json:"ls_gate_min_rupees"`
}

// NetsSWP reports whether weighted SWP flows enter net SIP. The boolean flag
// and the string mode are two spellings of the same knob; NormalizeSIP keeps
// them consistent and either enables netting.
func (o SIPOptions) NetsSWP() bool {
	return o.SIPNetMode == "sip_plus_swp" || o.IncludeSWP
}

// SIPApplyTo controls which SIP/SWP buckets scheme rules reweight.
type SIPApplyTo struct {
	SIPRegistration bool `json:"sip_registration"`
	SIPCancellation bool `json:"sip_cancellation"`
	SWPRegistration bool `json:"swp_registration"`
	SWPCancellation bool `json:"swp_cancellation"`
}

// SIPPenaltySlab applies when net SIP is negative. Sorted descending by
// RateBPS; the first slab where |net| >= ThresholdAmount or the AUM ratio
// is at or below ThresholdRatio (and negative) matches.
type SIPPenaltySlab struct {
	RateBPS         float64 `json:"rate_bps"`
	ThresholdAmount float64 `json:"threshold_amount"`
	ThresholdRatio  float64 `json:"threshold_ratio"`
}

// SIPConfig is the runtime configuration of the SIP scorer.
type SIPConfig struct {
	Options     SIPOptions   `json:"options"`
	SchemeRules []SchemeRule `json:"scheme_rules"`
	ApplyTo     SIPApplyTo   `json:"apply_to"`

	// BaseBPS is used directly when > 0; otherwise the base is derived as
	// points_per_rupee * 10000 / horizon_months.
	BaseBPS        float64 `json:"sip_base_bps"`
	PointsPerRupee float64 `json:"sip_points_per_rupee"`

	RatioBonus       []ThresholdBPS `json:"ratio_bonus"`
	AmountBonus      []ThresholdBPS `json:"amount_bonus"`
	AvgBonus         []ThresholdBPS `json:"avg_bonus"`
	ConsistencyBonus []ThresholdBPS `json:"consistency_bonus"`

	PenaltySlabs []SIPPenaltySlab `json:"sip_penalty"`

	TierThresholds []TierThreshold    `json:"tier_thresholds"`
	TierFactors    map[string]float64 `json:"tier_factors"` // monthly trail factor per tier

	// LumpsumPointsFloor caps the lumpsum-points penalty contribution.
	LumpsumPointsFloor float64 `json:"lumpsum_points_floor"`

	IgnoredRMs []string `json:"ignored_rms"`
}

// DefaultSIP returns the built-in SIP configuration.
func DefaultSIP() SIPConfig {
	return SIPConfig{
		Options: SIPOptions{
			RangeMode:       "month",
			FYMode:          "FY_APR",
			AuditMode:       "compact",
			SIPNetMode:      "sip_only",
			IncludeSWP:      false,
			SWPWeights:      SWPWeights{Registration: -1.0, Cancellation: 1.0},
			HorizonMonths:   24,
			LSGatePct:       -3.0,
			LSGateMinRupees: 50_000,
		},
		ApplyTo: SIPApplyTo{
			SIPRegistration: true,
			SIPCancellation: true,
		},
		BaseBPS: 125,
		RatioBonus: []ThresholdBPS{
			{Val: 0.10, BPS: 3},
			{Val: 0.07, BPS: 2},
			{Val: 0.05, BPS: 1},
		},
		AmountBonus: []ThresholdBPS{
			{Val: 500_000, BPS: 3},
			{Val: 250_000, BPS: 2},
			{Val: 100_000, BPS: 1},
		},
		AvgBonus: []ThresholdBPS{
			{Val: 25_000, BPS: 2},
			{Val: 10_000, BPS: 1},
		},
		ConsistencyBonus: []ThresholdBPS{
			{Val: 6, BPS: 2},
			{Val: 3, BPS: 1},
		},
		PenaltySlabs: []SIPPenaltySlab{
			{RateBPS: -150, ThresholdAmount: 250_000, ThresholdRatio: -0.02},
			{RateBPS: -125, ThresholdAmount: 0, ThresholdRatio: 0},
		},
		TierThresholds: []TierThreshold{
			{TierName: "T6", MinValue: 500_000},
			{TierName: "T5", MinValue: 250_000},
			{TierName: "T4", MinValue: 100_000},
			{TierName: "T3", MinValue: 50_000},
			{TierName: "T2", MinValue: 20_000},
			{TierName: "T1", MinValue: 1},
		},
		TierFactors: map[string]float64{
			"T6": 0.00050,
			"T5": 0.00040,
			"T4": 0.00030,
			"T3": 0.00020,
			"T2": 0.00010,
			"T1": 0.00005,
			"T0": 0,
		},
		LumpsumPointsFloor: -5000,
	}
}

// ValidateSIP checks a SIP payload, returning every violation.
func ValidateSIP(c SIPConfig) []FieldError {
	var errs []FieldError

	switch c.Options.RangeMode {
	case "month", "last5", "fy", "since":
	default:
		errs = append(errs, FieldError{"options.range_mode", fmt.Sprintf("must be one of month, last5, fy, since (got %q)", c.Options.RangeMode)})
	}
	if c.Options.FYMode != "FY_APR" && c.Options.FYMode != "CAL" {
		errs = append(errs, FieldError{"options.fy_mode", fmt.Sprintf("must be FY_APR or CAL (got %q)", c.Options.FYMode)})
	}
	if c.Options.AuditMode != "compact" && c.Options.AuditMode != "full" {
		errs = append(errs, FieldError{"options.audit_mode", fmt.Sprintf("must be compact or full (got %q)", c.Options.AuditMode)})
	}
	if c.Options.SIPNetMode != "sip_only" && c.Options.SIPNetMode != "sip_plus_swp" {
		errs = append(errs, FieldError{"options.sip_net_mode", fmt.Sprintf("must be sip_only or sip_plus_swp (got %q)", c.Options.SIPNetMode)})
	}
	if c.Options.HorizonMonths < 1 {
		errs = append(errs, FieldError{"options.horizon_months", "must be >= 1"})
	}

	if c.BaseBPS < 0 {
		errs = append(errs, FieldError{"sip_base_bps", "must be >= 0"})
	}
	if c.BaseBPS == 0 && c.PointsPerRupee <= 0 {
		errs = append(errs, FieldError{"sip_points_per_rupee", "required (> 0) when sip_base_bps is 0"})
	}

	for name, slabs := range map[string][]ThresholdBPS{
		"ratio_bonus":       c.RatioBonus,
		"amount_bonus":      c.AmountBonus,
		"avg_bonus":         c.AvgBonus,
		"consistency_bonus": c.ConsistencyBonus,
	} {
		for i, s := range slabs {
			if s.BPS < 0 {
				errs = append(errs, FieldError{fmt.Sprintf("%s[%d].bps", name, i), "must be >= 0"})
			}
		}
	}

	for i, s := range c.PenaltySlabs {
		if s.RateBPS > 0 {
			errs = append(errs, FieldError{fmt.Sprintf("sip_penalty[%d].rate_bps", i), "must be <= 0"})
		}
	}

	for i, tt := range c.TierThresholds {
		if tt.TierName == "" {
			errs = append(errs, FieldError{fmt.Sprintf("tier_thresholds[%d].tier_name", i), "must not be empty"})
		}
		if tt.MinValue < 0 {
			errs = append(errs, FieldError{fmt.Sprintf("tier_thresholds[%d].min_value", i), "must be >= 0"})
		}
	}

	for tier, f := range c.TierFactors {
		if f < 0 {
			errs = append(errs, FieldError{"tier_factors." + tier, "must be >= 0"})
		}
	}

	return errs
}

// NormalizeSIP sorts slabs into evaluation order and substitutes defaults
// for inconsistent stored fields.
func NormalizeSIP(c SIPConfig) (SIPConfig, bool) {
	fallback := false
	def := DefaultSIP()

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
	if c.Options.SIPNetMode != "sip_only" && c.Options.SIPNetMode != "sip_plus_swp" {
		c.Options.SIPNetMode = def.Options.SIPNetMode
		fallback = true
	}
	if c.Options.HorizonMonths < 1 {
		c.Options.HorizonMonths = def.Options.HorizonMonths
		fallback = true
	}
	// Reconcile the two SWP-netting spellings so stored configs read back
	// consistently whichever one the admin set.
	if c.Options.IncludeSWP {
		c.Options.SIPNetMode = "sip_plus_swp"
	} else if c.Options.SIPNetMode == "sip_plus_swp" {
		c.Options.IncludeSWP = true
	}
	if c.LumpsumPointsFloor > 0 {
		c.LumpsumPointsFloor = def.LumpsumPointsFloor
		fallback = true
	}

	// Bonus slabs evaluate first-match descending by threshold.
	for _, slabs := range [][]ThresholdBPS{c.RatioBonus, c.AmountBonus, c.AvgBonus, c.ConsistencyBonus} {
		sort.SliceStable(slabs, func(i, j int) bool { return slabs[i].Val > slabs[j].Val })
	}
	sort.SliceStable(c.PenaltySlabs, func(i, j int) bool {
		return c.PenaltySlabs[i].RateBPS < c.PenaltySlabs[j].RateBPS
	})
	sort.SliceStable(c.TierThresholds, func(i, j int) bool {
		return c.TierThresholds[i].MinValue > c.TierThresholds[j].MinValue
	})

	return c, fallback
}
