package scoreconfig

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/db"
)

// Store persists config documents in Postgres. Writes archive the replaced
// payload and bump the version in one transaction; scorers only ever read
// the head document.
type Store struct {
	pool db.Pool
}

func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the stored head document for a metric, or nil when no
// document has ever been written (scorers then run on pure defaults).
func (s *Store) Get(ctx context.Context, metric Metric) (*Document, error) {
	var doc Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, schema_version, version, status, payload, updated_at, updated_by
		 FROM pli.metric_config WHERE id = $1`,
		metric.DocumentID(),
	).Scan(&doc.ID, &doc.SchemaVersion, &doc.Version, &doc.Status, &doc.Payload, &doc.UpdatedAt, &doc.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "scoreconfig: get %s", metric)
	}
	doc.Schema = string(metric)
	return &doc, nil
}

// Put replaces the head document for a metric. The previous payload (when
// one exists) is archived and the version incremented atomically; a failed
// archive rolls back the whole PUT.
func (s *Store) Put(ctx context.Context, metric Metric, payload json.RawMessage, actor, reason string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "scoreconfig: begin put %s", metric)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	version, err := s.archiveHead(ctx, tx, metric, actor, reason)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO pli.metric_config (id, schema_version, version, status, payload, updated_at, updated_by)
		 VALUES ($1, $2, $3, 'active', $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   schema_version = $2, version = $3, status = 'active',
		   payload = $4, updated_at = $5, updated_by = $6`,
		metric.DocumentID(), ConfigSchemaVersion, version, payload, now, actor,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "scoreconfig: upsert %s", metric)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "scoreconfig: commit put %s", metric)
	}

	zap.L().Info("config document replaced",
		zap.String("metric", string(metric)),
		zap.Int("version", version),
		zap.String("actor", actor))
	return version, nil
}

// Reset deletes the stored document so the metric falls back to built-in
// defaults. The deleted payload is archived like any other replacement.
func (s *Store) Reset(ctx context.Context, metric Metric, actor string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrapf(err, "scoreconfig: begin reset %s", metric)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := s.archiveHead(ctx, tx, metric, actor, "reset to defaults"); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM pli.metric_config WHERE id = $1`, metric.DocumentID()); err != nil {
		return eris.Wrapf(err, "scoreconfig: delete %s", metric)
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrapf(err, "scoreconfig: commit reset %s", metric)
	}

	zap.L().Info("config document reset",
		zap.String("metric", string(metric)),
		zap.String("actor", actor))
	return nil
}

// archiveHead snapshots the current head (if any) into the audit table and
// returns the version the replacement should carry.
func (s *Store) archiveHead(ctx context.Context, tx pgx.Tx, metric Metric, actor, reason string) (int, error) {
	var version int
	var snapshot json.RawMessage
	err := tx.QueryRow(ctx,
		`SELECT version, payload FROM pli.metric_config WHERE id = $1 FOR UPDATE`,
		metric.DocumentID(),
	).Scan(&version, &snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return 1, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "scoreconfig: lock head %s", metric)
	}

	next := version + 1
	_, err = tx.Exec(ctx,
		`INSERT INTO pli.metric_config_audit
		 (metric, archived_at, replaced_by, change_reason, actor, config_snapshot, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(metric), time.Now().UTC(), next, reason, actor, snapshot, version,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "scoreconfig: archive %s v%d", metric, version)
	}
	return next, nil
}

// History returns archived documents for a metric, newest first.
func (s *Store) History(ctx context.Context, metric Metric, limit int) ([]ArchivedDocument, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT metric, archived_at, replaced_by, change_reason, actor, config_snapshot, version
		 FROM pli.metric_config_audit WHERE metric = $1
		 ORDER BY archived_at DESC LIMIT $2`,
		string(metric), limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "scoreconfig: history %s", metric)
	}
	defer rows.Close()

	var out []ArchivedDocument
	for rows.Next() {
		var a ArchivedDocument
		if err := rows.Scan(&a.Metric, &a.ArchivedAt, &a.ReplacedBy, &a.ChangeReason, &a.Actor, &a.ConfigSnapshot, &a.Version); err != nil {
			return nil, eris.Wrap(err, "scoreconfig: scan archive row")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "scoreconfig: history iterate")
}

// effective merges a stored document over defaults, normalizes the result
// and stamps the hash. Missing documents run on pure defaults at version 0.
func effective[T any](metric Metric, defaults T, doc *Document,
	normalize func(T) (T, bool)) (Effective[T], error) {

	eff := Effective[T]{Metric: metric, Config: defaults}
	if doc != nil {
		merged, err := MergeOver(defaults, doc.Payload)
		if err != nil {
			return eff, err
		}
		eff.Config = merged
		eff.Raw = doc.Payload
		eff.Version = doc.Version
		eff.UpdatedAt = doc.UpdatedAt
		eff.UpdatedBy = doc.UpdatedBy
	}

	normalized, fallback := normalize(eff.Config)
	eff.Config = normalized
	eff.FallbackUsed = fallback
	if fallback {
		zap.L().Warn("config fallback substituted for inconsistent stored fields",
			zap.String("metric", string(metric)),
			zap.Int("version", eff.Version))
	}

	hash, err := Hash(eff.Config)
	if err != nil {
		return eff, err
	}
	eff.Hash = hash
	return eff, nil
}

// FetchLumpsum loads the effective lumpsum config for a scorer run.
func (s *Store) FetchLumpsum(ctx context.Context) (Effective[LumpsumConfig], error) {
	doc, err := s.Get(ctx, MetricLumpsum)
	if err != nil {
		return Effective[LumpsumConfig]{}, err
	}
	return effective(MetricLumpsum, DefaultLumpsum(), doc, NormalizeLumpsum)
}

// FetchSIP loads the effective SIP config for a scorer run.
func (s *Store) FetchSIP(ctx context.Context) (Effective[SIPConfig], error) {
	doc, err := s.Get(ctx, MetricSIP)
	if err != nil {
		return Effective[SIPConfig]{}, err
	}
	return effective(MetricSIP, DefaultSIP(), doc, NormalizeSIP)
}

// FetchInsurance loads the effective insurance config for a scorer run.
func (s *Store) FetchInsurance(ctx context.Context) (Effective[InsuranceConfig], error) {
	doc, err := s.Get(ctx, MetricInsurance)
	if err != nil {
		return Effective[InsuranceConfig]{}, err
	}
	return effective(MetricInsurance, DefaultInsurance(), doc, NormalizeInsurance)
}

// FetchReferral loads the effective referral config for a scorer run.
func (s *Store) FetchReferral(ctx context.Context) (Effective[ReferralConfig], error) {
	doc, err := s.Get(ctx, MetricReferral)
	if err != nil {
		return Effective[ReferralConfig]{}, err
	}
	return effective(MetricReferral, DefaultReferral(), doc, NormalizeReferral)
}

// Validate runs the typed validation for a metric against a raw payload
// merged over defaults. Used by the admin PUT before any write.
func Validate(metric Metric, payload json.RawMessage) ([]FieldError, error) {
	switch metric {
	case MetricLumpsum:
		merged, err := MergeOver(DefaultLumpsum(), payload)
		if err != nil {
			return nil, err
		}
		return ValidateLumpsum(merged), nil
	case MetricSIP:
		merged, err := MergeOver(DefaultSIP(), payload)
		if err != nil {
			return nil, err
		}
		return ValidateSIP(merged), nil
	case MetricInsurance:
		merged, err := MergeOver(DefaultInsurance(), payload)
		if err != nil {
			return nil, err
		}
		return ValidateInsurance(merged), nil
	case MetricReferral:
		merged, err := MergeOver(DefaultReferral(), payload)
		if err != nil {
			return nil, err
		}
		return ValidateReferral(merged), nil
	}
	return nil, eris.Errorf("scoreconfig: unknown metric %q", metric)
}
