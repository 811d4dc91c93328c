package scoreconfig

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewStore(mock), mock
}

func TestStore_Get_NoDocument(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, schema_version, version, status, payload, updated_at, updated_by`).
		WithArgs("Leaderboard_SIP").
		WillReturnError(pgx.ErrNoRows)

	doc, err := s.Get(context.Background(), MetricSIP)
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Get_Found(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, schema_version, version, status, payload, updated_at, updated_by`).
		WithArgs("Leaderboard_Lumpsum").
		WillReturnRows(pgxmock.NewRows([]string{"id", "schema_version", "version", "status", "payload", "updated_at", "updated_by"}).
			AddRow("Leaderboard_Lumpsum", ConfigSchemaVersion, 4, "active", json.RawMessage(`{"blacklist":["liquid"]}`), now, "ops@firm.example"))

	doc, err := s.Get(context.Background(), MetricLumpsum)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, 4, doc.Version)
	assert.Equal(t, "lumpsum", doc.Schema)
	assert.Equal(t, "ops@firm.example", doc.UpdatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Put_ArchivesAndIncrementsVersion(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version, payload FROM pli.metric_config WHERE id = \$1 FOR UPDATE`).
		WithArgs("Leaderboard_SIP").
		WillReturnRows(pgxmock.NewRows([]string{"version", "payload"}).
			AddRow(2, json.RawMessage(`{"sip_base_bps":120}`)))
	mock.ExpectExec(`INSERT INTO pli.metric_config_audit`).
		WithArgs("sip", pgxmock.AnyArg(), 3, "raise base", "admin@firm.example", pgxmock.AnyArg(), 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO pli.metric_config`).
		WithArgs("Leaderboard_SIP", ConfigSchemaVersion, 3, pgxmock.AnyArg(), pgxmock.AnyArg(), "admin@firm.example").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	version, err := s.Put(context.Background(), MetricSIP, json.RawMessage(`{"sip_base_bps":140}`), "admin@firm.example", "raise base")
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Put_FirstWriteStartsAtVersionOne(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version, payload FROM pli.metric_config WHERE id = \$1 FOR UPDATE`).
		WithArgs("Leaderboard_Referral").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO pli.metric_config`).
		WithArgs("Leaderboard_Referral", ConfigSchemaVersion, 1, pgxmock.AnyArg(), pgxmock.AnyArg(), "admin@firm.example").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	version, err := s.Put(context.Background(), MetricReferral, json.RawMessage(`{}`), "admin@firm.example", "initial")
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Reset_ArchivesThenDeletes(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version, payload FROM pli.metric_config WHERE id = \$1 FOR UPDATE`).
		WithArgs("Leaderboard_Insurance").
		WillReturnRows(pgxmock.NewRows([]string{"version", "payload"}).
			AddRow(7, json.RawMessage(`{"upsell_divisor":500}`)))
	mock.ExpectExec(`INSERT INTO pli.metric_config_audit`).
		WithArgs("insurance", pgxmock.AnyArg(), 8, "reset to defaults", "admin@firm.example", pgxmock.AnyArg(), 7).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM pli.metric_config WHERE id = \$1`).
		WithArgs("Leaderboard_Insurance").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := s.Reset(context.Background(), MetricInsurance, "admin@firm.example")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FetchSIP_NoDocumentRunsOnDefaults(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, schema_version, version, status, payload, updated_at, updated_by`).
		WithArgs("Leaderboard_SIP").
		WillReturnError(pgx.ErrNoRows)

	eff, err := s.FetchSIP(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, eff.Version)
	assert.Equal(t, DefaultSIP().BaseBPS, eff.Config.BaseBPS)
	assert.False(t, eff.FallbackUsed)
	assert.Len(t, eff.Hash, 32)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_FetchLumpsum_MergesStoredPayload(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	payload := json.RawMessage(`{"weights":{"switch_in_pct":150},"options":{"audit_mode":"bogus"}}`)
	mock.ExpectQuery(`SELECT id, schema_version, version, status, payload, updated_at, updated_by`).
		WithArgs("Leaderboard_Lumpsum").
		WillReturnRows(pgxmock.NewRows([]string{"id", "schema_version", "version", "status", "payload", "updated_at", "updated_by"}).
			AddRow("Leaderboard_Lumpsum", ConfigSchemaVersion, 2, "active", payload, now, "ops@firm.example"))

	eff, err := s.FetchLumpsum(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, eff.Version)
	assert.Equal(t, 150.0, eff.Config.Weights.SwitchInPct)
	// Omitted keys inherit defaults.
	assert.Equal(t, 100.0, eff.Config.Weights.SwitchOutPct)
	// Bad enum falls back and flags the row.
	assert.True(t, eff.FallbackUsed)
	assert.Equal(t, "compact", eff.Config.Options.AuditMode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidate_ByMetric(t *testing.T) {
	errs, err := Validate(MetricSIP, json.RawMessage(`{"options":{"sip_net_mode":"bogus"}}`))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "options.sip_net_mode", errs[0].Field)

	errs, err = Validate(MetricReferral, json.RawMessage(`{"family_head_factor":2}`))
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "family_head_factor", errs[0].Field)

	_, err = Validate(Metric("bogus"), nil)
	assert.Error(t, err)
}

func TestStore_History(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT metric, archived_at, replaced_by, change_reason, actor, config_snapshot, version`).
		WithArgs("lumpsum", 50).
		WillReturnRows(pgxmock.NewRows([]string{"metric", "archived_at", "replaced_by", "change_reason", "actor", "config_snapshot", "version"}).
			AddRow(MetricLumpsum, now, 5, "tweak slabs", "admin@firm.example", json.RawMessage(`{}`), 4).
			AddRow(MetricLumpsum, now.Add(-time.Hour), 4, "initial", "admin@firm.example", json.RawMessage(`{}`), 3))

	history, err := s.History(context.Background(), MetricLumpsum, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 5, history[0].ReplacedBy)
	assert.Equal(t, 4, history[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
