package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

func TestLockManager_AcquireAndRelease(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	m := NewLockManager(mock, 90*time.Minute)

	mock.ExpectExec(`DELETE FROM pli\.job_locks WHERE key = \$1 AND expires_at < \$2`).
		WithArgs("score:sip", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO pli\.job_locks`).
		WithArgs("score:sip", m.Owner(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, m.Acquire(context.Background(), "score:sip"))

	mock.ExpectExec(`DELETE FROM pli\.job_locks WHERE key = \$1 AND owner_instance_id = \$2`).
		WithArgs("score:sip", m.Owner()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, m.Release(context.Background(), "score:sip"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLockManager_HeldLockIsFatal(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	m := NewLockManager(mock, 90*time.Minute)

	mock.ExpectExec(`DELETE FROM pli\.job_locks`).
		WithArgs("aggregate", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO pli\.job_locks`).
		WithArgs("aggregate", m.Owner(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err = m.Acquire(context.Background(), "aggregate")
	assert.ErrorIs(t, err, ErrLockHeld)
	require.NoError(t, mock.ExpectationsWereMet())
}

// fakeRunner records the months it was asked to score.
type fakeRunner struct {
	name string
	log  *[]string
}

func (f *fakeRunner) RunMonth(_ context.Context, month model.Month) error {
	*f.log = append(*f.log, f.name+":"+month.String())
	return nil
}

// openLocks is a LockManager whose pool always grants.
func openLocks(t *testing.T, keys int) (*LockManager, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	for i := 0; i < keys; i++ {
		mock.ExpectExec(`DELETE FROM pli\.job_locks`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec(`INSERT INTO pli\.job_locks`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	for i := 0; i < keys; i++ {
		mock.ExpectExec(`DELETE FROM pli\.job_locks`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
	}
	return NewLockManager(mock, time.Minute), mock
}

func TestReaggregate_MFChainMonthAscending(t *testing.T) {
	var log []string
	locks, mock := openLocks(t, 3)
	defer mock.Close()

	o := &Orchestrator{
		Locks:      locks,
		Lumpsum:    &fakeRunner{"lumpsum", &log},
		SIP:        &fakeRunner{"sip", &log},
		Aggregator: &fakeRunner{"aggregate", &log},
		Now:        func() time.Time { return time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC) },
	}

	from := model.Month{Year: 2025, Mon: time.September}
	require.NoError(t, o.Reaggregate(context.Background(), scoreconfig.MetricSIP, from))

	assert.Equal(t, []string{
		"lumpsum:2025-09", "sip:2025-09", "aggregate:2025-09",
		"lumpsum:2025-10", "sip:2025-10", "aggregate:2025-10",
	}, log)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReaggregate_InsuranceChain(t *testing.T) {
	var log []string
	locks, mock := openLocks(t, 2)
	defer mock.Close()

	o := &Orchestrator{
		Locks:      locks,
		Insurance:  &fakeRunner{"insurance", &log},
		Aggregator: &fakeRunner{"aggregate", &log},
		Now:        func() time.Time { return time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC) },
	}

	from := model.Month{Year: 2025, Mon: time.September}
	require.NoError(t, o.Reaggregate(context.Background(), scoreconfig.MetricInsurance, from))

	assert.Equal(t, []string{"insurance:2025-09", "aggregate:2025-09"}, log)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReaggregate_FutureStartMonthFails(t *testing.T) {
	o := &Orchestrator{
		Now: func() time.Time { return time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC) },
	}
	err := o.Reaggregate(context.Background(), scoreconfig.MetricReferral, model.Month{Year: 2025, Mon: time.October})
	assert.Error(t, err)
}
