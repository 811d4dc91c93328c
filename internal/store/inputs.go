package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/db"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
)

// LumpsumTransactions returns transactions with txn_date in [from, to).
func (s *Store) LumpsumTransactions(ctx context.Context, from, to time.Time) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT rm_name, txn_date, amount, txn_type, sub_category, scheme_name
		 FROM pli.lumpsum_txns WHERE txn_date >= $1 AND txn_date < $2`,
		from, to)
	if err != nil {
		return nil, eris.Wrap(err, "store: list lumpsum txns")
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var typ string
		if err := rows.Scan(&t.RMName, &t.Date, &t.Amount, &typ, &t.SubCategory, &t.SchemeName); err != nil {
			return nil, eris.Wrap(err, "store: scan lumpsum txn")
		}
		t.Type = model.TxnType(typ)
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate lumpsum txns")
}

// SIPTransactions returns all SIP/SWP documents. Validation-window and
// reconciliation filtering is fraction-aware and happens in the scorer.
func (s *Store) SIPTransactions(ctx context.Context) ([]model.SIPTransaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM pli.sip_txns`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list sip txns")
	}
	defer rows.Close()

	var out []model.SIPTransaction
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "store: scan sip txn")
		}
		var t model.SIPTransaction
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal sip txn")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate sip txns")
}

// MeetingCounts returns the month's meeting counts keyed by normalized RM name.
func (s *Store) MeetingCounts(ctx context.Context, month model.Month) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT rm_name, count FROM pli.meeting_counts WHERE month = $1`,
		month.String())
	if err != nil {
		return nil, eris.Wrapf(err, "store: meeting counts %s", month)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, eris.Wrap(err, "store: scan meeting count")
		}
		out[model.NormalizeName(name)] = count
	}
	return out, eris.Wrap(rows.Err(), "store: iterate meeting counts")
}

// InsurancePolicies returns raw policy documents whose conversion_date falls
// in [from, to).
func (s *Store) InsurancePolicies(ctx context.Context, from, to time.Time) ([]model.InsurancePolicy, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM pli.insurance_policies
		 WHERE (doc->>'conversion_date')::timestamptz >= $1
		   AND (doc->>'conversion_date')::timestamptz < $2`,
		from, to)
	if err != nil {
		return nil, eris.Wrap(err, "store: list insurance policies")
	}
	defer rows.Close()

	var out []model.InsurancePolicy
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "store: scan insurance policy")
		}
		var p model.InsurancePolicy
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal insurance policy")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate insurance policies")
}

// ReferralLeads returns converted leads in the window.
func (s *Store) ReferralLeads(ctx context.Context, from, to time.Time) ([]model.ReferralLead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM pli.referral_leads
		 WHERE (doc->>'conversion_date')::timestamptz >= $1
		   AND (doc->>'conversion_date')::timestamptz < $2`,
		from, to)
	if err != nil {
		return nil, eris.Wrap(err, "store: list referral leads")
	}
	defer rows.Close()

	var out []model.ReferralLead
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, eris.Wrap(err, "store: scan referral lead")
		}
		var l model.ReferralLead
		if err := json.Unmarshal(doc, &l); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal referral lead")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate referral leads")
}

// SaveAUMSnapshots upserts start-of-month AUM readings from the CRM feed.
func (s *Store) SaveAUMSnapshots(ctx context.Context, snaps []model.AUMSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	data := make([][]any, 0, len(snaps))
	for _, snap := range snaps {
		data = append(data, []any{snap.Month.String(), snap.RMName, snap.AUM})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.aum_snapshots",
		Columns:      []string{"month", "rm_name", "aum"},
		ConflictKeys: []string{"month", "rm_name"},
	}, data)
	return eris.Wrap(err, "store: save aum snapshots")
}

// SaveMeetingCounts upserts per-RM meeting counts for a month.
func (s *Store) SaveMeetingCounts(ctx context.Context, counts []model.MeetingCount) error {
	if len(counts) == 0 {
		return nil
	}
	data := make([][]any, 0, len(counts))
	for _, c := range counts {
		data = append(data, []any{c.Month.String(), c.RMName, c.Count})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.meeting_counts",
		Columns:      []string{"month", "rm_name", "count"},
		ConflictKeys: []string{"month", "rm_name"},
	}, data)
	return eris.Wrap(err, "store: save meeting counts")
}

// SaveInsurancePolicies upserts raw policy documents from the CRM feed.
func (s *Store) SaveInsurancePolicies(ctx context.Context, policies []model.InsurancePolicy) error {
	if len(policies) == 0 {
		return nil
	}
	data := make([][]any, 0, len(policies))
	for _, p := range policies {
		doc, err := json.Marshal(p)
		if err != nil {
			return eris.Wrap(err, "store: marshal insurance policy")
		}
		data = append(data, []any{p.LeadID, p.PolicyNumber, doc})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.insurance_policies",
		Columns:      []string{"lead_id", "policy_number", "doc"},
		ConflictKeys: []string{"lead_id", "policy_number"},
	}, data)
	return eris.Wrap(err, "store: save insurance policies")
}

// SaveReferralLeads upserts converted lead documents from the CRM feed.
func (s *Store) SaveReferralLeads(ctx context.Context, leads []model.ReferralLead) error {
	if len(leads) == 0 {
		return nil
	}
	data := make([][]any, 0, len(leads))
	for _, l := range leads {
		doc, err := json.Marshal(l)
		if err != nil {
			return eris.Wrap(err, "store: marshal referral lead")
		}
		data = append(data, []any{l.LeadID, doc})
	}
	err := s.bulkUpsert(ctx, db.UpsertConfig{
		Table:        "pli.referral_leads",
		Columns:      []string{"lead_id", "doc"},
		ConflictKeys: []string{"lead_id"},
	}, data)
	return eris.Wrap(err, "store: save referral leads")
}
