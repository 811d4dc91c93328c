// Package scoreconfig manages the version-stamped runtime configuration
// documents every scorer reads on each run: typed per-metric payloads,
// built-in defaults, field-walk merging, structured validation, and the
// effective-config hash stamped on every output row.
package scoreconfig

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metric names a scoring module with its own config document.
type Metric string

const (
	MetricLumpsum   Metric = "lumpsum"
	MetricSIP       Metric = "sip"
	MetricInsurance Metric = "insurance"
	MetricReferral  Metric = "referral"
)

// DocumentID returns the `_id` under which a metric's config is stored.
func (m Metric) DocumentID() string {
	switch m {
	case MetricLumpsum:
		return "Leaderboard_Lumpsum"
	case MetricSIP:
		return "Leaderboard_SIP"
	case MetricInsurance:
		return "Leaderboard_Insurance"
	case MetricReferral:
		return "Leaderboard_Referral"
	default:
		return "Leaderboard_" + string(m)
	}
}

// ParseMetric maps an admin-API module name to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricLumpsum, MetricSIP, MetricInsurance, MetricReferral:
		return Metric(s), nil
	}
	return "", fmt.Errorf("scoreconfig: unknown metric %q", s)
}

// ConfigSchemaVersion is the shape version of the config documents.
const ConfigSchemaVersion = 2

// FieldError is a single validation failure. PUTs that fail validation
// return the full list and write nothing.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

// Document is a stored config document for one metric.
type Document struct {
	ID            string          `json:"_id"`
	Schema        string          `json:"schema"`
	SchemaVersion int             `json:"schema_version"`
	Version       int             `json:"version"`
	Status        string          `json:"status"`
	Payload       json.RawMessage `json:"payload"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	UpdatedBy     string          `json:"updatedBy"`
}

// ArchivedDocument is an audit-trail entry written on every PUT or reset.
type ArchivedDocument struct {
	Metric         Metric          `json:"metric"`
	ArchivedAt     time.Time       `json:"archived_at"`
	ReplacedBy     int             `json:"replaced_by"`
	ChangeReason   string          `json:"change_reason"`
	Actor          string          `json:"actor"`
	ConfigSnapshot json.RawMessage `json:"config_snapshot"`
	Version        int             `json:"version"`
}

// Effective is a merged, normalized config ready for a scorer run.
type Effective[T any] struct {
	Metric  Metric `json:"metric"`
	Version int    `json:"version"`
	// Config is the stored payload merged over the built-in defaults and
	// normalized (slabs sorted, enums checked).
	Config T `json:"config"`
	// Raw is the stored payload before merging, nil when no document exists.
	Raw json.RawMessage `json:"raw,omitempty"`
	// Hash is the stable digest of the effective config.
	Hash string `json:"hash"`
	// FallbackUsed reports that at least one stored field was inconsistent
	// and the built-in default was substituted for that field.
	FallbackUsed bool      `json:"config_fallback_used,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	UpdatedBy    string    `json:"updated_by"`
}

// Shared slab shapes.

// RateSlab maps a growth%-band to an incentive rate. Sorted ascending by
// MinPct before use; a nil MaxPct means the open-ended top slab.
type RateSlab struct {
	MinPct float64  `json:"min_pct"`
	MaxPct *float64 `json:"max_pct,omitempty"`
	Rate   float64  `json:"rate"`
}

// MeetingSlab maps a meeting count to a multiplier. Sorted ascending by
// MaxCount; a nil MaxCount is the catch-all last slab.
type MeetingSlab struct {
	MaxCount   *int    `json:"max_count"`
	Multiplier float64 `json:"multiplier"`
}

// SchemeRule reweights transactions whose scheme name matches a keyword.
// Rules are ordered, first match wins.
type SchemeRule struct {
	Keyword   string     `json:"keyword"`
	MatchType string     `json:"match_type"` // exact | contains | startswith
	WeightPct float64    `json:"weight_pct"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// ThresholdBPS is a bonus slab: the first entry (descending by Val) whose
// threshold the measure meets contributes BPS to the rate.
type ThresholdBPS struct {
	Val float64 `json:"val"`
	BPS float64 `json:"bps"`
}

// TierThreshold maps total points to a named tier. Sorted descending by
// MinValue before use.
type TierThreshold struct {
	TierName string  `json:"tier_name"`
	MinValue float64 `json:"min_value"`
}

// Ints and floats as pointers.
func IntPtr(v int) *int             { return &v }
func FloatPtr(v float64) *float64   { return &v }
