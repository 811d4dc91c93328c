// Package model holds the domain types shared by the scoring pipeline:
// scoring periods, raw business events, and the per-metric output rows.
package model

import "time"

// SchemaVersion is stamped on every output row so downstream consumers can
// detect shape changes.
const SchemaVersion = 3

// RM is a relationship manager mirrored from the external user directory.
type RM struct {
	EmployeeID    string     `json:"employee_id"`
	DisplayName   string     `json:"display_name"`
	IsActive      bool       `json:"is_active"`
	InactiveSince *time.Time `json:"inactive_since,omitempty"`
	Profile       string     `json:"profile"`
	TeamID        string     `json:"team_id,omitempty"`
	ManagerID     string     `json:"reporting_manager_id,omitempty"`
}

// TxnType classifies a lumpsum transaction into one of six buckets.
type TxnType string

const (
	TxnPurchase   TxnType = "Purchase"
	TxnRedemption TxnType = "Redemption"
	TxnSwitchIn   TxnType = "Switch-In"
	TxnSwitchOut  TxnType = "Switch-Out"
	TxnCOBIn      TxnType = "COB-In"
	TxnCOBOut     TxnType = "COB-Out"
)

// Transaction is a raw lumpsum transaction. Amounts are un-weighted; weights
// are applied only at aggregation time.
type Transaction struct {
	RMName      string    `json:"rm_name"`
	Date        time.Time `json:"transaction_date"`
	Amount      float64   `json:"amount"`
	Type        TxnType   `json:"type"`
	SubCategory string    `json:"sub_category"`
	SchemeName  string    `json:"scheme_name"`
}

// SIPTxnType distinguishes SIP from SWP documents.
type SIPTxnType string

const (
	SIPTypeSIP SIPTxnType = "SIP"
	SIPTypeSWP SIPTxnType = "SWP"
)

// SIPTxnFor distinguishes registrations from cancellations.
type SIPTxnFor string

const (
	SIPForRegistration SIPTxnFor = "Registration"
	SIPForCancellation SIPTxnFor = "Cancellation"
)

// Reconciliation statuses that make a SIP/SWP document eligible for scoring.
const (
	ReconStatusReconciled      = "RECONCILED"
	ReconStatusReconciledMinor = "RECONCILED_WITH_MINOR"
)

// ValidationStatusApproved marks a validation event as approved.
const ValidationStatusApproved = "APPROVED"

// Validation is a single review event on a SIP/SWP document or fraction.
type Validation struct {
	Status      string    `json:"status"`
	ValidatedAt time.Time `json:"validated_at"`
}

// SIPFraction is an independently scored slice of a fractioned SIP document.
type SIPFraction struct {
	Amount               float64      `json:"amount"`
	ReconciliationStatus string       `json:"reconciliation_status,omitempty"`
	Validations          []Validation `json:"validations"`
}

// SIPTransaction is a raw SIP/SWP document as reconciled upstream.
type SIPTransaction struct {
	RMName               string        `json:"rm_name"`
	TransactionType      SIPTxnType    `json:"transaction_type"`
	TransactionFor       SIPTxnFor     `json:"transaction_for"`
	Amount               float64       `json:"amount"`
	SchemeName           string        `json:"scheme_name"`
	ReconciliationStatus string        `json:"reconciliation_status"`
	Validations          []Validation  `json:"validations"`
	Fractions            []SIPFraction `json:"fractions,omitempty"`
}

// ProcessingUser identifies the RM who processed an insurance policy.
type ProcessingUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// InsurancePolicy is a raw policy record from the CRM feed.
type InsurancePolicy struct {
	LeadID           string         `json:"lead_id"`
	PolicyNumber     string         `json:"policy_number"`
	ConversionDate   time.Time      `json:"conversion_date"`
	PolicyStart      time.Time      `json:"policy_start"`
	PolicyEnd        time.Time      `json:"policy_end"`
	RenewalDate      *time.Time     `json:"renewal_date,omitempty"`
	ThisYearPremium  float64        `json:"this_year_premium"`
	LastYearPremium  float64        `json:"last_year_premium"`
	PolicyType       string         `json:"policy_type"`
	Company          string         `json:"company,omitempty"`
	ConversionStatus string         `json:"conversion_status"`
	ProcessingUser   ProcessingUser `json:"processing_user"`
	DirectAssociate  string         `json:"direct_associate"`
	EldestMemberDOB  *time.Time     `json:"eldest_member_dob,omitempty"`
	CashbackAmount   float64        `json:"cashback_amount"`
	DeductibleAdded  bool           `json:"deductible_added"`
	ReferralFee      float64        `json:"referral_fee"`
}

// ReferralCategory is the business line of a referred lead.
type ReferralCategory string

const (
	ReferralInsurance  ReferralCategory = "Insurance"
	ReferralInvestment ReferralCategory = "Investment"
)

// ReferralLead is a converted lead carrying referral attribution.
type ReferralLead struct {
	LeadID            string           `json:"lead_id"`
	Category          ReferralCategory `json:"category"`
	ConverterName     string           `json:"converter_name"`
	ReferrerName      string           `json:"referrer_name,omitempty"`
	ConversionDate    time.Time        `json:"conversion_date"`
	IsFamilyHead      bool             `json:"is_family_head"`
	SpecialPermission bool             `json:"special_permission"`
}

// AUMSnapshot is a start-of-month AUM reading for one RM.
type AUMSnapshot struct {
	Month  Month   `json:"month"`
	RMName string  `json:"rm_name"`
	AUM    float64 `json:"aum"`
}

// MeetingCount is the number of client meetings an RM held in a month.
type MeetingCount struct {
	EmployeeID string `json:"employee_id"`
	RMName     string `json:"rm_name"`
	Month      Month  `json:"month"`
	Count      int    `json:"count"`
}

// AdjustmentType distinguishes point adjustments from rupee adjustments.
type AdjustmentType string

const (
	AdjustPoints AdjustmentType = "Points"
	AdjustRupees AdjustmentType = "Rupees"
)

// AdjustmentStatus is the approval state of a manual adjustment.
type AdjustmentStatus string

const (
	AdjustPending  AdjustmentStatus = "PENDING"
	AdjustApproved AdjustmentStatus = "APPROVED"
	AdjustRejected AdjustmentStatus = "REJECTED"
)

// Adjustment is a manual per-RM-per-month correction. Only APPROVED
// adjustments affect public totals, and only additively.
type Adjustment struct {
	ID         string           `json:"id"`
	EmployeeID string           `json:"employee_id"`
	Month      Month            `json:"month"`
	Reason     string           `json:"reason"`
	Value      float64          `json:"value"`
	Type       AdjustmentType   `json:"adjustment_type"`
	Status     AdjustmentStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
}

// CreditBucket is the profile bucket a leader credit rolls up under.
type CreditBucket string

const (
	BucketINS CreditBucket = "INS"
	BucketMF  CreditBucket = "MF"
)

// LeaderCredit is a 20%-of-points roll-up from one RM to the designated
// leader of a profile bucket, keyed idempotently.
type LeaderCredit struct {
	Source      string       `json:"source"`
	PeriodMonth Month        `json:"period_month"`
	Bucket      CreditBucket `json:"bucket"`
	Points      float64      `json:"points"`
	Expected    float64      `json:"expected"`
	Reconciled  bool         `json:"reconciled"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
