package store

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/db"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
)

// SaveLumpsumRows upserts one month's lumpsum output rows.
func (s *Store) SaveLumpsumRows(ctx context.Context, rows []model.LumpsumRow) error {
	if len(rows) == 0 {
		return nil
	}
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		doc, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "store: marshal lumpsum row")
		}
		data = append(data, []any{r.EmployeeID, r.Month.String(), r.NetPurchase, doc, r.UpdatedAt})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.lumpsum_rows",
		Columns:      []string{"employee_id", "month", "net_purchase", "doc", "updated_at"},
		ConflictKeys: []string{"employee_id", "month"},
	}, data)
	return eris.Wrap(err, "store: save lumpsum rows")
}

// LumpsumRow returns one persisted lumpsum row, or nil when absent.
func (s *Store) LumpsumRow(ctx context.Context, employeeID string, month model.Month) (*model.LumpsumRow, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM pli.lumpsum_rows WHERE employee_id = $1 AND month = $2`,
		employeeID, month.String()).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get lumpsum row %s %s", employeeID, month)
	}
	var row model.LumpsumRow
	if err := json.Unmarshal(doc, &row); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal lumpsum row")
	}
	return &row, nil
}

// LumpsumMonth returns all lumpsum rows for one month.
func (s *Store) LumpsumMonth(ctx context.Context, month model.Month) ([]model.LumpsumRow, error) {
	return scanDocs[model.LumpsumRow](ctx, s,
		`SELECT doc FROM pli.lumpsum_rows WHERE month = $1 ORDER BY employee_id`,
		"store: lumpsum month", month.String())
}

// LumpsumRange returns one RM's rows for months in [from, to], month-ascending.
func (s *Store) LumpsumRange(ctx context.Context, employeeID string, from, to model.Month) ([]model.LumpsumRow, error) {
	return scanDocs[model.LumpsumRow](ctx, s,
		`SELECT doc FROM pli.lumpsum_rows
		 WHERE employee_id = $1 AND month >= $2 AND month <= $3 ORDER BY month`,
		"store: lumpsum range", employeeID, from.String(), to.String())
}

// SaveSIPRows upserts one month's SIP output rows.
func (s *Store) SaveSIPRows(ctx context.Context, rows []model.SIPRow) error {
	if len(rows) == 0 {
		return nil
	}
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		doc, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "store: marshal sip row")
		}
		data = append(data, []any{r.EmployeeID, r.Month.String(), r.NetSIP, doc, r.UpdatedAt})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.sip_rows",
		Columns:      []string{"employee_id", "month", "net_sip", "doc", "updated_at"},
		ConflictKeys: []string{"employee_id", "month"},
	}, data)
	return eris.Wrap(err, "store: save sip rows")
}

// SIPRow returns one persisted SIP row, or nil when absent.
func (s *Store) SIPRow(ctx context.Context, employeeID string, month model.Month) (*model.SIPRow, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM pli.sip_rows WHERE employee_id = $1 AND month = $2`,
		employeeID, month.String()).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get sip row %s %s", employeeID, month)
	}
	var row model.SIPRow
	if err := json.Unmarshal(doc, &row); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal sip row")
	}
	return &row, nil
}

// SIPMonth returns all SIP rows for one month.
func (s *Store) SIPMonth(ctx context.Context, month model.Month) ([]model.SIPRow, error) {
	return scanDocs[model.SIPRow](ctx, s,
		`SELECT doc FROM pli.sip_rows WHERE month = $1 ORDER BY employee_id`,
		"store: sip month", month.String())
}

// SavePolicyScores upserts per-policy insurance scoring rows.
func (s *Store) SavePolicyScores(ctx context.Context, scores []model.PolicyScore) error {
	if len(scores) == 0 {
		return nil
	}
	data := make([][]any, 0, len(scores))
	for _, p := range scores {
		doc, err := json.Marshal(p)
		if err != nil {
			return eris.Wrap(err, "store: marshal policy score")
		}
		data = append(data, []any{p.LeadID, p.PolicyNumber, doc, p.UpdatedAt})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.insurance_policy_scores",
		Columns:      []string{"lead_id", "policy_number", "doc", "updated_at"},
		ConflictKeys: []string{"lead_id", "policy_number"},
	}, data)
	return eris.Wrap(err, "store: save policy scores")
}

// SaveInsuranceRows upserts one month's insurance output rows.
func (s *Store) SaveInsuranceRows(ctx context.Context, rows []model.InsuranceRow) error {
	if len(rows) == 0 {
		return nil
	}
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		doc, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "store: marshal insurance row")
		}
		data = append(data, []any{r.EmployeeID, r.Month.String(), doc, r.UpdatedAt})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.insurance_rows",
		Columns:      []string{"employee_id", "period_month", "doc", "updated_at"},
		ConflictKeys: []string{"employee_id", "period_month"},
	}, data)
	return eris.Wrap(err, "store: save insurance rows")
}

// InsuranceRow returns one persisted insurance row, or nil when absent.
func (s *Store) InsuranceRow(ctx context.Context, employeeID string, month model.Month) (*model.InsuranceRow, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM pli.insurance_rows WHERE employee_id = $1 AND period_month = $2`,
		employeeID, month.String()).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get insurance row %s %s", employeeID, month)
	}
	var row model.InsuranceRow
	if err := json.Unmarshal(doc, &row); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal insurance row")
	}
	return &row, nil
}

// InsuranceMonth returns all insurance rows for one month.
func (s *Store) InsuranceMonth(ctx context.Context, month model.Month) ([]model.InsuranceRow, error) {
	return scanDocs[model.InsuranceRow](ctx, s,
		`SELECT doc FROM pli.insurance_rows WHERE period_month = $1 ORDER BY employee_id`,
		"store: insurance month", month.String())
}

// InsuranceRange returns one RM's insurance rows for [from, to], ascending.
func (s *Store) InsuranceRange(ctx context.Context, employeeID string, from, to model.Month) ([]model.InsuranceRow, error) {
	return scanDocs[model.InsuranceRow](ctx, s,
		`SELECT doc FROM pli.insurance_rows
		 WHERE employee_id = $1 AND period_month >= $2 AND period_month <= $3 ORDER BY period_month`,
		"store: insurance range", employeeID, from.String(), to.String())
}

// SaveReferralCredits upserts per-lead referral awards.
func (s *Store) SaveReferralCredits(ctx context.Context, credits []model.ReferralCredit) error {
	if len(credits) == 0 {
		return nil
	}
	data := make([][]any, 0, len(credits))
	now := time.Now().UTC()
	for _, c := range credits {
		doc, err := json.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "store: marshal referral credit")
		}
		data = append(data, []any{c.LeadID, c.EmployeeID, c.ReferralType, c.Month.String(), doc, now})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.referral_credits",
		Columns:      []string{"lead_id", "employee_id", "referral_type", "month", "doc", "updated_at"},
		ConflictKeys: []string{"lead_id", "employee_id", "referral_type"},
	}, data)
	return eris.Wrap(err, "store: save referral credits")
}

// SaveReferralRows upserts one month's referral output rows.
func (s *Store) SaveReferralRows(ctx context.Context, rows []model.ReferralRow) error {
	if len(rows) == 0 {
		return nil
	}
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		doc, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "store: marshal referral row")
		}
		data = append(data, []any{r.EmployeeID, r.Month.String(), doc, r.UpdatedAt})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.referral_rows",
		Columns:      []string{"employee_id", "month", "doc", "updated_at"},
		ConflictKeys: []string{"employee_id", "month"},
	}, data)
	return eris.Wrap(err, "store: save referral rows")
}

// ReferralMonth returns all referral rows for one month.
func (s *Store) ReferralMonth(ctx context.Context, month model.Month) ([]model.ReferralRow, error) {
	return scanDocs[model.ReferralRow](ctx, s,
		`SELECT doc FROM pli.referral_rows WHERE month = $1 ORDER BY employee_id`,
		"store: referral month", month.String())
}

// SavePublicRows upserts one month's public leaderboard rows.
func (s *Store) SavePublicRows(ctx context.Context, rows []model.PublicRow) error {
	if len(rows) == 0 {
		return nil
	}
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		doc, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "store: marshal public row")
		}
		data = append(data, []any{r.EmployeeID, r.PeriodMonth.String(), doc, r.UpdatedAt})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.public_leaderboard",
		Columns:      []string{"employee_id", "period_month", "doc", "updated_at"},
		ConflictKeys: []string{"employee_id", "period_month"},
	}, data)
	return eris.Wrap(err, "store: save public rows")
}

// PublicRow returns one public row, or nil when absent.
func (s *Store) PublicRow(ctx context.Context, employeeID string, month model.Month) (*model.PublicRow, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM pli.public_leaderboard WHERE employee_id = $1 AND period_month = $2`,
		employeeID, month.String()).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "store: get public row %s %s", employeeID, month)
	}
	var row model.PublicRow
	if err := json.Unmarshal(doc, &row); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal public row")
	}
	return &row, nil
}

// PublicMonth returns all public rows for one month.
func (s *Store) PublicMonth(ctx context.Context, month model.Month) ([]model.PublicRow, error) {
	return scanDocs[model.PublicRow](ctx, s,
		`SELECT doc FROM pli.public_leaderboard WHERE period_month = $1 ORDER BY employee_id`,
		"store: public month", month.String())
}

// PublicRange returns one RM's public rows for [from, to], month-ascending.
func (s *Store) PublicRange(ctx context.Context, employeeID string, from, to model.Month) ([]model.PublicRow, error) {
	return scanDocs[model.PublicRow](ctx, s,
		`SELECT doc FROM pli.public_leaderboard
		 WHERE employee_id = $1 AND period_month >= $2 AND period_month <= $3 ORDER BY period_month`,
		"store: public range", employeeID, from.String(), to.String())
}

// SaveLeaderCredits upserts leader-credit rows with their reconcile state.
// Re-runs converge because the key carries (source, period_month, bucket).
func (s *Store) SaveLeaderCredits(ctx context.Context, credits []model.LeaderCredit, expected map[model.CreditBucket]float64) error {
	if len(credits) == 0 {
		return nil
	}
	credited := map[model.CreditBucket]float64{}
	for _, c := range credits {
		credited[c.Bucket] += c.Points
	}

	now := time.Now().UTC()
	data := make([][]any, 0, len(credits))
	for _, c := range credits {
		exp := expected[c.Bucket]
		reconciled := math.Abs(credited[c.Bucket]-exp) < 1e-6
		data = append(data, []any{
			c.Source, c.PeriodMonth.String(), string(c.Bucket),
			c.Points, exp, reconciled, now,
		})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.leader_credits",
		Columns:      []string{"source", "period_month", "bucket", "credited", "expected", "reconciled", "updated_at"},
		ConflictKeys: []string{"source", "period_month", "bucket"},
	}, data)
	return eris.Wrap(err, "store: save leader credits")
}

// LeaderCredits returns credit rows for one month.
func (s *Store) LeaderCredits(ctx context.Context, month model.Month) ([]model.LeaderCredit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, period_month, bucket, credited FROM pli.leader_credits WHERE period_month = $1`,
		month.String())
	if err != nil {
		return nil, eris.Wrapf(err, "store: leader credits %s", month)
	}
	defer rows.Close()

	var out []model.LeaderCredit
	for rows.Next() {
		var c model.LeaderCredit
		var m, bucket string
		if err := rows.Scan(&c.Source, &m, &bucket, &c.Points); err != nil {
			return nil, eris.Wrap(err, "store: scan leader credit")
		}
		c.PeriodMonth, _ = model.ParseMonth(m)
		c.Bucket = model.CreditBucket(bucket)
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate leader credits")
}

// ApprovedAdjustments returns APPROVED adjustments for one RM-month.
func (s *Store) ApprovedAdjustments(ctx context.Context, employeeID string, month model.Month) ([]model.Adjustment, error) {
	return scanDocs[model.Adjustment](ctx, s,
		`SELECT doc FROM pli.adjustments
		 WHERE employee_id = $1 AND month = $2 AND status = 'APPROVED' ORDER BY id`,
		"store: approved adjustments", employeeID, month.String())
}

// SaveAdjustment upserts a manual adjustment document.
func (s *Store) SaveAdjustment(ctx context.Context, adj model.Adjustment) error {
	doc, err := json.Marshal(adj)
	if err != nil {
		return eris.Wrap(err, "store: marshal adjustment")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pli.adjustments (id, employee_id, month, status, doc, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET status = $4, doc = $5, updated_at = $6`,
		adj.ID, adj.EmployeeID, adj.Month.String(), string(adj.Status), doc, time.Now().UTC())
	return eris.Wrap(err, "store: save adjustment")
}

// scanDocs runs a single-column JSONB query and decodes each row into T.
func scanDocs[T any](ctx context.Context, s *Store, sql, wrap string, args ...any) ([]T, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, wrap)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, wrap+": scan")
		}
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, eris.Wrap(err, wrap+": unmarshal")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), wrap+": iterate")
}
