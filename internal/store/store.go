// Package store persists every leaderboard collection in Postgres under the
// pli schema. Scored rows are kept as JSONB documents alongside their key
// columns; re-running a month upserts the same keys so replacement is atomic
// per (employee_id, month).
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/db"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/resilience"
)

// Store wraps the shared connection pool for all collection accessors.
type Store struct {
	pool    db.Pool
	closeFn func()
	retry   resilience.RetryConfig
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// New connects a pgx pool and verifies it.
func New(ctx context.Context, connString string, poolCfg *PoolConfig) (*Store, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "store: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "store: ping")
	}
	return &Store{pool: pool, closeFn: pool.Close, retry: resilience.DefaultRetryConfig()}, nil
}

// NewWithPool wraps an existing pool (tests use pgxmock here).
func NewWithPool(pool db.Pool) *Store {
	return &Store{pool: pool, retry: resilience.DefaultRetryConfig()}
}

// WithRetry overrides the bulk-write retry policy, normally from the
// process-level retry block.
func (s *Store) WithRetry(cfg resilience.RetryConfig) *Store {
	s.retry = cfg
	return s
}

// bulkUpsert runs one BulkUpsert with bounded retries on transient pg
// failures. The upsert is transactional, so a retried attempt starts clean.
func (s *Store) bulkUpsert(ctx context.Context, cfg db.UpsertConfig, data [][]any) error {
	retryCfg := s.retry
	retryCfg.OnRetry = resilience.RetryLogger("store", cfg.Table)
	return resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		_, err := db.BulkUpsert(ctx, s.pool, cfg, data)
		return err
	})
}

// Pool exposes the underlying pool for subsystems that run their own
// queries (config store, job locks).
func (s *Store) Pool() db.Pool { return s.pool }

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "store: ping")
}

func (s *Store) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const migration = `
CREATE SCHEMA IF NOT EXISTS pli;

CREATE TABLE IF NOT EXISTS pli.rm_directory (
	employee_id          TEXT PRIMARY KEY,
	display_name         TEXT NOT NULL,
	is_active            BOOLEAN NOT NULL DEFAULT true,
	inactive_since       TIMESTAMPTZ,
	profile              TEXT NOT NULL DEFAULT '',
	team_id              TEXT,
	reporting_manager_id TEXT,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pli.aum_snapshots (
	month   TEXT NOT NULL,
	rm_name TEXT NOT NULL,
	aum     DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (month, rm_name)
);

CREATE TABLE IF NOT EXISTS pli.meeting_counts (
	month   TEXT NOT NULL,
	rm_name TEXT NOT NULL,
	count   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (month, rm_name)
);

CREATE TABLE IF NOT EXISTS pli.lumpsum_txns (
	id           BIGSERIAL PRIMARY KEY,
	rm_name      TEXT NOT NULL,
	txn_date     TIMESTAMPTZ NOT NULL,
	amount       DOUBLE PRECISION NOT NULL,
	txn_type     TEXT NOT NULL,
	sub_category TEXT NOT NULL DEFAULT '',
	scheme_name  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_lumpsum_txns_date ON pli.lumpsum_txns(txn_date);

CREATE TABLE IF NOT EXISTS pli.sip_txns (
	id      BIGSERIAL PRIMARY KEY,
	rm_name TEXT NOT NULL,
	doc     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS pli.insurance_policies (
	lead_id       TEXT NOT NULL,
	policy_number TEXT NOT NULL,
	doc           JSONB NOT NULL,
	PRIMARY KEY (lead_id, policy_number)
);

CREATE TABLE IF NOT EXISTS pli.referral_leads (
	lead_id TEXT PRIMARY KEY,
	doc     JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS pli.lumpsum_rows (
	employee_id  TEXT NOT NULL,
	month        TEXT NOT NULL,
	net_purchase DOUBLE PRECISION NOT NULL DEFAULT 0,
	doc          JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (employee_id, month)
);
CREATE INDEX IF NOT EXISTS idx_lumpsum_rows_month ON pli.lumpsum_rows(month);

CREATE TABLE IF NOT EXISTS pli.sip_rows (
	employee_id TEXT NOT NULL,
	month       TEXT NOT NULL,
	net_sip     DOUBLE PRECISION NOT NULL DEFAULT 0,
	doc         JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (employee_id, month)
);
CREATE INDEX IF NOT EXISTS idx_sip_rows_month ON pli.sip_rows(month);

CREATE TABLE IF NOT EXISTS pli.insurance_policy_scores (
	lead_id       TEXT NOT NULL,
	policy_number TEXT NOT NULL,
	doc           JSONB NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (lead_id, policy_number)
);

CREATE TABLE IF NOT EXISTS pli.insurance_rows (
	employee_id  TEXT NOT NULL,
	period_month TEXT NOT NULL,
	doc          JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (employee_id, period_month)
);
CREATE INDEX IF NOT EXISTS idx_insurance_rows_month ON pli.insurance_rows(period_month);

CREATE TABLE IF NOT EXISTS pli.referral_credits (
	lead_id       TEXT NOT NULL,
	employee_id   TEXT NOT NULL,
	referral_type TEXT NOT NULL,
	month         TEXT NOT NULL,
	doc           JSONB NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (lead_id, employee_id, referral_type)
);
CREATE INDEX IF NOT EXISTS idx_referral_credits_month ON pli.referral_credits(month);

CREATE TABLE IF NOT EXISTS pli.referral_rows (
	employee_id TEXT NOT NULL,
	month       TEXT NOT NULL,
	doc         JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (employee_id, month)
);

CREATE TABLE IF NOT EXISTS pli.public_leaderboard (
	employee_id  TEXT NOT NULL,
	period_month TEXT NOT NULL,
	doc          JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (employee_id, period_month)
);
CREATE INDEX IF NOT EXISTS idx_public_leaderboard_month ON pli.public_leaderboard(period_month);

CREATE TABLE IF NOT EXISTS pli.leader_credits (
	source       TEXT NOT NULL,
	period_month TEXT NOT NULL,
	bucket       TEXT NOT NULL,
	credited     DOUBLE PRECISION NOT NULL DEFAULT 0,
	expected     DOUBLE PRECISION NOT NULL DEFAULT 0,
	reconciled   BOOLEAN NOT NULL DEFAULT false,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source, period_month, bucket)
);

CREATE TABLE IF NOT EXISTS pli.adjustments (
	id          TEXT PRIMARY KEY,
	employee_id TEXT NOT NULL,
	month       TEXT NOT NULL,
	status      TEXT NOT NULL,
	doc         JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_adjustments_emp_month_status
	ON pli.adjustments(employee_id, month, status);

CREATE TABLE IF NOT EXISTS pli.metric_config (
	id             TEXT PRIMARY KEY,
	schema_version INTEGER NOT NULL,
	version        INTEGER NOT NULL,
	status         TEXT NOT NULL DEFAULT 'active',
	payload        JSONB NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_by     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS pli.metric_config_audit (
	id              BIGSERIAL PRIMARY KEY,
	metric          TEXT NOT NULL,
	archived_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	replaced_by     INTEGER NOT NULL,
	change_reason   TEXT NOT NULL DEFAULT '',
	actor           TEXT NOT NULL DEFAULT '',
	config_snapshot JSONB,
	version         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metric_config_audit_metric
	ON pli.metric_config_audit(metric, archived_at DESC);

CREATE TABLE IF NOT EXISTS pli.job_locks (
	key               TEXT PRIMARY KEY,
	owner_instance_id TEXT NOT NULL,
	acquired_at       TIMESTAMPTZ NOT NULL,
	expires_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pli.metric_audit (
	id          BIGSERIAL PRIMARY KEY,
	metric      TEXT NOT NULL,
	employee_id TEXT NOT NULL,
	month       TEXT NOT NULL,
	mode        TEXT NOT NULL,
	doc         JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_metric_audit_lookup
	ON pli.metric_audit(metric, month, employee_id);
`

// Migrate creates the pli schema and every collection table.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}
