package model

import "time"

// RowMeta carries the fields every metric output row shares.
type RowMeta struct {
	EmployeeID     string    `json:"employee_id"`
	EmployeeName   string    `json:"employee_name"`
	Month          Month     `json:"month"`
	IsActive       bool      `json:"is_active"`
	PayoutEligible bool      `json:"payout_eligible"`
	MissingAUM     bool      `json:"missing_aum,omitempty"`
	ConfigFallback bool      `json:"config_fallback_used,omitempty"`
	ConfigHash     string    `json:"config_hash"`
	SchemaVersion  int       `json:"schema_version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TypeBucket is a raw-vs-weighted sum for one transaction bucket, emitted in
// the ByType audit block.
type TypeBucket struct {
	Type     TxnType `json:"type"`
	Count    int     `json:"count"`
	Raw      float64 `json:"raw"`
	Weighted float64 `json:"weighted"`
}

// CategoryBucket is a per-sub-category sum, including the blacklisted bucket.
type CategoryBucket struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Excluded bool    `json:"excluded,omitempty"`
}

// SchemeMatch records a scheme-rule hit for the audit trail.
type SchemeMatch struct {
	SchemeName string  `json:"scheme_name"`
	Keyword    string  `json:"keyword"`
	WeightPct  float64 `json:"weight_pct"`
}

// StreakState is the positive-month streak carried between lumpsum months.
// It is an input to the scorer, recomputed from persisted rows, never
// process-global state.
type StreakState struct {
	PositiveMonths int  `json:"positive_months"`
	HattrickPaid   bool `json:"hattrick_paid"`
	FiveStreakPaid bool `json:"five_streak_paid"`
}

// LumpsumRow is the per-RM-per-month output of the lumpsum scorer.
type LumpsumRow struct {
	RowMeta

	// Raw bucket sums.
	Purchase   float64 `json:"purchase"`
	Redemption float64 `json:"redemption"`
	SwitchIn   float64 `json:"switch_in"`
	SwitchOut  float64 `json:"switch_out"`
	COBIn      float64 `json:"cob_in"`
	COBOut     float64 `json:"cob_out"`

	// Weighted bucket sums.
	WeightedPurchase   float64 `json:"weighted_purchase"`
	WeightedRedemption float64 `json:"weighted_redemption"`
	WeightedSwitchIn   float64 `json:"weighted_switch_in"`
	WeightedSwitchOut  float64 `json:"weighted_switch_out"`
	WeightedCOBIn      float64 `json:"weighted_cob_in"`
	WeightedCOBOut     float64 `json:"weighted_cob_out"`
	DebtBonus          float64 `json:"debt_bonus"`

	NetPurchase    float64 `json:"net_purchase"`
	AUMStart       float64 `json:"aum_start"`
	GrowthPct      float64 `json:"growth_pct"`
	Rate           float64 `json:"rate"`
	MeetingCount   int     `json:"meeting_count"`
	Multiplier     float64 `json:"multiplier"`
	BaseIncentive  float64 `json:"base_incentive"`
	FinalIncentive float64 `json:"final_incentive"`
	PenaltyRupees  float64 `json:"penalty_rupees"`

	Streak       StreakState `json:"streak"`
	StreakBonus  float64     `json:"streak_bonus"`
	QtrBonus     float64     `json:"qtr_bonus,omitempty"`
	AnnualBonus  float64     `json:"annual_bonus,omitempty"`
	QtrProjected bool        `json:"qtr_projected,omitempty"`

	ByType     []TypeBucket     `json:"by_type,omitempty"`
	ByCategory []CategoryBucket `json:"by_category,omitempty"`
}

// SIPRow is the per-RM-per-month output of the SIP scorer. It is the
// authoritative source for both MF point fields on the public row.
type SIPRow struct {
	RowMeta

	GrossSIP          float64 `json:"gross_sip"`
	CancelSIP         float64 `json:"cancel_sip"`
	NetSIPCore        float64 `json:"net_sip_core"`
	SWPRegWeighted    float64 `json:"swp_reg_weighted"`
	SWPCancelWeighted float64 `json:"swp_cancel_weighted"`
	NetSIP            float64 `json:"net_sip"`
	AvgSIP            float64 `json:"avg_sip"`
	TxnCount          int     `json:"txn_count"`

	AUMStart float64 `json:"aum_start"`
	Ratio    float64 `json:"sip_aum_ratio"`

	ConsecutivePositive int  `json:"consecutive_positive_months"`
	GateApplied         bool `json:"ls_gate_applied"`

	RateBPS       float64 `json:"rate_bps"`
	SIPPoints     float64 `json:"sip_points"`
	LumpsumPoints float64 `json:"lumpsum_points"`
	TotalPoints   float64 `json:"total_points"`

	Tier           string             `json:"tier"`
	MonthlyFactor  float64            `json:"tier_monthly_factor"`
	AnnualFactor   float64            `json:"tier_annual_factor"`
	TrailAmountMon float64            `json:"trail_amount_month"`
	VPPointsCredit float64            `json:"vp_points_credit"`
	PenaltyBPS     float64            `json:"penalty_bps,omitempty"`
	BonusBreakdown map[string]float64 `json:"bonus_breakdown,omitempty"`
}

// PolicyClass classifies an insurance policy.
type PolicyClass string

const (
	PolicyFresh   PolicyClass = "fresh"
	PolicyRenewal PolicyClass = "renewal"
)

// PolicyScore is the per-policy output of the insurance scorer.
type PolicyScore struct {
	LeadID               string      `json:"lead_id"`
	PolicyNumber         string      `json:"policy_number"`
	EmployeeID           string      `json:"employee_id"`
	EmployeeName         string      `json:"employee_name"`
	PeriodMonth          Month       `json:"period_month"`
	Classification       PolicyClass `json:"policy_classification"`
	UpsellEligible       bool        `json:"upsell_eligible"`
	DaysToRenewal        *int        `json:"days_to_renewal,omitempty"`
	TermYears            int         `json:"term_years"`
	BasePoints           float64     `json:"base_points"`
	UpsellPoints         float64     `json:"upsell_points"`
	TenureWeight         float64     `json:"tenure_weight"`
	CategoryWeight       float64     `json:"category_weight"`
	DeductibleWeight     float64     `json:"deductible_weight"`
	AssociateWeight      float64     `json:"associate_weight"`
	CashbackWeight       float64     `json:"cashback_weight"`
	WeightFactor         float64     `json:"weight_factor"`
	TotalPoints          float64     `json:"total_points"`
	FreshPremiumEligible float64     `json:"fresh_premium_eligible"`
	RenewalPremium       float64     `json:"renewal_premium"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// InsuranceRow is the per-RM-per-month output of the insurance scorer.
type InsuranceRow struct {
	RowMeta

	PolicyCount    int     `json:"policy_count"`
	PointsPolicy   float64 `json:"points_policy"`
	PointsBonus    float64 `json:"points_bonus"`
	PointsTotal    float64 `json:"points_total"`
	FreshPremium   float64 `json:"fresh_premium_eligible"`
	RenewalPremium float64 `json:"renewal_premium"`

	StreakMonths int `json:"streak_months"`

	FreshPct     float64 `json:"fresh_pct"`
	RenewPct     float64 `json:"renew_pct"`
	SlabBonus    float64 `json:"slab_bonus_rupees"`
	QtrBonus     float64 `json:"qtr_bonus_rupees"`
	AnnualBonus  float64 `json:"annual_bonus_rupees"`
	PayoutAmount float64 `json:"payout_amount"`
}

// ReferralRow is the per-RM-per-month output of the referral scorer.
type ReferralRow struct {
	RowMeta

	Points    float64 `json:"points"`
	LeadCount int     `json:"lead_count"`
}

// ReferralCredit is a per-lead, per-role point award feeding ReferralRow.
type ReferralCredit struct {
	LeadID       string           `json:"lead_id"`
	EmployeeID   string           `json:"employee_id"`
	ReferralType string           `json:"referral_type"`
	Category     ReferralCategory `json:"category"`
	Month        Month            `json:"month"`
	Points       float64          `json:"points"`
}

// PublicRow is the canonical leaderboard document, one per RM per month.
type PublicRow struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	PeriodMonth  Month  `json:"period_month"`

	TotalPointsPublic float64 `json:"total_points_public"`
	TotalPointsFinal  float64 `json:"total_points_final"`
	MFPoints          float64 `json:"mf_points"`
	MFSIPPoints       float64 `json:"mf_sip_points"`
	MFLumpsumPoints   float64 `json:"mf_lumpsum_points"`
	InsPoints         float64 `json:"ins_points"`
	RefPoints         float64 `json:"ref_points"`

	NetSIP          float64 `json:"net_sip"`
	AUMStart        float64 `json:"aum_start"`
	InsFreshPremium float64 `json:"ins_fresh_premium"`

	PayoutEligible bool   `json:"payout_eligible"`
	IsActive       bool   `json:"is_active"`
	Profile        string `json:"profile"`
	TeamID         string `json:"team_id,omitempty"`
	ManagerID      string `json:"reporting_manager_id,omitempty"`

	Adjustments []Adjustment `json:"adjustments,omitempty"`

	Audit         *PublicAudit `json:"audit,omitempty"`
	ConfigHash    string       `json:"config_hash"`
	SchemaVersion int          `json:"schema_version"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// PublicAudit is the compact audit block embedded in a public row.
type PublicAudit struct {
	SIPRateBPS     float64 `json:"sip_rate_bps"`
	SIPGateApplied bool    `json:"sip_gate_applied"`
	LumpsumGrowth  float64 `json:"lumpsum_growth_pct"`
	InsPolicyCount int     `json:"ins_policy_count"`
	RefLeadCount   int     `json:"ref_lead_count"`
}
