// Package orchestrator re-runs scorer chains month-ascending under
// distributed job locks, so config edits can rebuild history without two
// instances scoring the same metric concurrently.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/db"
)

// ErrLockHeld reports that another live owner holds the job lock. Callers
// treat it as fatal for the run; prior state stays intact.
var ErrLockHeld = eris.New("orchestrator: job lock held by another instance")

// LockManager hands out per-job Postgres locks with a TTL. Stale rows are
// reaped on acquire, so a crashed owner blocks a key for at most one TTL.
type LockManager struct {
	pool  db.Pool
	owner string
	ttl   time.Duration
}

func NewLockManager(pool db.Pool, ttl time.Duration) *LockManager {
	return &LockManager{pool: pool, owner: uuid.NewString(), ttl: ttl}
}

// Owner returns this instance's lock owner id.
func (m *LockManager) Owner() string { return m.owner }

// Acquire takes the lock for key or returns ErrLockHeld.
func (m *LockManager) Acquire(ctx context.Context, key string) error {
	now := time.Now().UTC()
	if _, err := m.pool.Exec(ctx,
		`DELETE FROM pli.job_locks WHERE key = $1 AND expires_at < $2`, key, now); err != nil {
		return eris.Wrapf(err, "orchestrator: reap stale lock %s", key)
	}

	tag, err := m.pool.Exec(ctx,
		`INSERT INTO pli.job_locks (key, owner_instance_id, acquired_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO NOTHING`,
		key, m.owner, now, now.Add(m.ttl))
	if err != nil {
		return eris.Wrapf(err, "orchestrator: acquire lock %s", key)
	}
	if tag.RowsAffected() == 0 {
		return ErrLockHeld
	}

	zap.L().Info("job lock acquired",
		zap.String("key", key),
		zap.String("owner", m.owner),
		zap.Duration("ttl", m.ttl))
	return nil
}

// Release drops the lock if this instance still owns it.
func (m *LockManager) Release(ctx context.Context, key string) error {
	_, err := m.pool.Exec(ctx,
		`DELETE FROM pli.job_locks WHERE key = $1 AND owner_instance_id = $2`,
		key, m.owner)
	return eris.Wrapf(err, "orchestrator: release lock %s", key)
}
