package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/resilience"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewWithPool(mock), mock
}

func sept() model.Month { return model.Month{Year: 2025, Mon: time.September} }

func TestLumpsumRow_AbsentIsNil(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT doc FROM pli\.lumpsum_rows WHERE employee_id = \$1 AND month = \$2`).
		WithArgs("EMP404", "2025-09").
		WillReturnError(pgx.ErrNoRows)

	row, err := s.LumpsumRow(context.Background(), "EMP404", sept())
	require.NoError(t, err)
	assert.Nil(t, row)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublicMonth_DecodesDocs(t *testing.T) {
	s, mock := newMockStore(t)

	docs := pgxmock.NewRows([]string{"doc"}).
		AddRow(json.RawMessage(`{"employee_id":"EMP001","period_month":"2025-09","total_points_final":1500}`)).
		AddRow(json.RawMessage(`{"employee_id":"EMP002","period_month":"2025-09","total_points_final":2000}`))
	mock.ExpectQuery(`SELECT doc FROM pli\.public_leaderboard WHERE period_month = \$1 ORDER BY employee_id`).
		WithArgs("2025-09").
		WillReturnRows(docs)

	rows, err := s.PublicMonth(context.Background(), sept())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "EMP001", rows[0].EmployeeID)
	assert.Equal(t, 2000.0, rows[1].TotalPointsFinal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMeetingCounts_UpsertsViaTempTable(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_pli_meeting_counts"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_pli_meeting_counts"},
		[]string{"month", "rm_name", "count"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "pli"\."meeting_counts"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	err := s.SaveMeetingCounts(context.Background(), []model.MeetingCount{
		{Month: sept(), RMName: "Ishu Mavar", Count: 12},
		{Month: sept(), RMName: "Rohit Pawar", Count: 4},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMeetingCounts_EmptyIsNoop(t *testing.T) {
	s, mock := newMockStore(t)

	require.NoError(t, s.SaveMeetingCounts(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_RetriesTransientBegin(t *testing.T) {
	s, mock := newMockStore(t)
	s.WithRetry(resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})

	transient := resilience.NewTransientError(pgx.ErrTxClosed, 0)
	mock.ExpectBegin().WillReturnError(transient)
	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_pli_aum_snapshots"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_pli_aum_snapshots"},
		[]string{"month", "rm_name", "aum"}).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "pli"\."aum_snapshots"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.SaveAUMSnapshots(context.Background(), []model.AUMSnapshot{
		{Month: sept(), RMName: "Ishu Mavar", AUM: 10_000_000},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_NonTransientFailsOnce(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin().WillReturnError(assert.AnError)

	err := s.SaveReferralRows(context.Background(), []model.ReferralRow{
		{RowMeta: model.RowMeta{EmployeeID: "EMP001", Month: sept()}},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
