// Package audit persists per-row scoring audit documents. Writes are
// non-blocking for the scorer: failures log and the main row write proceeds.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/db"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

// Mode selects the audit payload verbosity.
type Mode string

const (
	ModeCompact Mode = "compact"
	ModeFull    Mode = "full"
)

// ParseMode falls back to compact for unknown values.
func ParseMode(s string) Mode {
	if Mode(s) == ModeFull {
		return ModeFull
	}
	return ModeCompact
}

// Record is one scorer's audit document for one RM-month.
type Record struct {
	Metric     string
	EmployeeID string
	Month      model.Month
	Payload    any
}

// Writer persists audit records to the metric audit collection.
type Writer struct {
	pool db.Pool
}

func NewWriter(pool db.Pool) *Writer {
	return &Writer{pool: pool}
}

// Write persists one record. Errors are returned for the caller to log;
// scorers treat them as non-fatal.
func (w *Writer) Write(ctx context.Context, mode Mode, rec Record) error {
	doc, err := json.Marshal(rec.Payload)
	if err != nil {
		return eris.Wrap(err, "audit: marshal payload")
	}
	_, err = w.pool.Exec(ctx,
		`INSERT INTO pli.metric_audit (metric, employee_id, month, mode, doc)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.Metric, rec.EmployeeID, rec.Month.String(), string(mode), doc)
	return eris.Wrap(err, "audit: insert record")
}

// WriteAll persists a batch, logging and continuing on individual failures.
func (w *Writer) WriteAll(ctx context.Context, mode Mode, recs []Record) {
	for _, rec := range recs {
		if err := w.Write(ctx, mode, rec); err != nil {
			zap.L().Warn("audit write failed",
				zap.String("metric", rec.Metric),
				zap.String("employee_id", rec.EmployeeID),
				zap.String("month", rec.Month.String()),
				zap.Error(err))
		}
	}
}

// LumpsumCompact is the compact lumpsum audit payload: bucket sums and the
// effective slab decisions, no scheme-match log.
type LumpsumCompact struct {
	ByType     []model.TypeBucket     `json:"by_type"`
	ByCategory []model.CategoryBucket `json:"by_category"`
	Rate       float64                `json:"rate"`
	Multiplier float64                `json:"multiplier"`
	ConfigHash string                 `json:"config_hash"`
}

// LumpsumFull adds effective weights, slabs, and the scheme-match log.
type LumpsumFull struct {
	LumpsumCompact
	Weights       scoreconfig.BucketWeights `json:"effective_weights"`
	RateSlabs     []scoreconfig.RateSlab    `json:"effective_rate_slabs"`
	MeetingSlabs  []scoreconfig.MeetingSlab `json:"effective_meeting_slabs"`
	SchemeMatches []model.SchemeMatch       `json:"scheme_matches"`
}

// SIPCompact is the compact SIP audit payload: the rate composition and the
// gate decision.
type SIPCompact struct {
	NetSIP         float64            `json:"net_sip"`
	RateBPS        float64            `json:"rate_bps"`
	BonusBreakdown map[string]float64 `json:"bonus_breakdown,omitempty"`
	GateApplied    bool               `json:"ls_gate_applied"`
	Tier           string             `json:"tier"`
	ConfigHash     string             `json:"config_hash"`
}

// SIPTxnAudit is one ingested SIP/SWP transaction in the full audit log.
type SIPTxnAudit struct {
	Type       string    `json:"type"`
	For        string    `json:"for"`
	SchemeName string    `json:"scheme_name,omitempty"`
	Amount     float64   `json:"amount"`
	Weighted   float64   `json:"weighted"`
	ExecDate   time.Time `json:"exec_date"`
}

// SIPFull adds the effective options, penalty slabs, and the ingested
// transaction log.
type SIPFull struct {
	SIPCompact
	Options      scoreconfig.SIPOptions       `json:"effective_options"`
	PenaltySlabs []scoreconfig.SIPPenaltySlab `json:"effective_penalty_slabs"`
	Transactions []SIPTxnAudit                `json:"transactions"`
}

// InsurancePolicyAudit is the per-policy insurance audit row.
type InsurancePolicyAudit struct {
	PolicyNumber   string  `json:"policy_number"`
	Classification string  `json:"policy_classification"`
	BasePoints     float64 `json:"base_points"`
	UpsellPoints   float64 `json:"upsell_points"`
	WeightFactor   float64 `json:"weight_factor"`
	DaysToRenewal  *int    `json:"days_to_renewal,omitempty"`
	FreshEligible  float64 `json:"fresh_premium_eligible"`
}

// InsuranceFull adds the effective renewal bands and payout slabs to the
// per-policy list.
type InsuranceFull struct {
	Policies    []InsurancePolicyAudit    `json:"policies"`
	RenewSlabs  []scoreconfig.DaysBand    `json:"effective_renew_slabs"`
	FreshSlabs  []scoreconfig.PremiumBand `json:"effective_fresh_slabs"`
	PayoutSlabs []scoreconfig.PayoutSlab  `json:"effective_payout_slabs"`
}

