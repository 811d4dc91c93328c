package identity

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/db"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
)

// Directory mirrors the external employee directory into Postgres. The core
// never mutates records beyond stamping inactive_since on observed
// active->inactive transitions and clearing it on reactivation.
type Directory struct {
	pool db.Pool
}

func NewDirectory(pool db.Pool) *Directory {
	return &Directory{pool: pool}
}

// LoadAll returns the mirrored directory for resolver construction.
func (d *Directory) LoadAll(ctx context.Context) ([]model.RM, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT employee_id, display_name, is_active, inactive_since, profile, team_id, reporting_manager_id
		 FROM pli.rm_directory`)
	if err != nil {
		return nil, eris.Wrap(err, "identity: load directory")
	}
	defer rows.Close()

	var out []model.RM
	for rows.Next() {
		var rec model.RM
		var inactive *time.Time
		var teamID, managerID *string
		if err := rows.Scan(&rec.EmployeeID, &rec.DisplayName, &rec.IsActive, &inactive, &rec.Profile, &teamID, &managerID); err != nil {
			return nil, eris.Wrap(err, "identity: scan directory row")
		}
		rec.InactiveSince = inactive
		if teamID != nil {
			rec.TeamID = *teamID
		}
		if managerID != nil {
			rec.ManagerID = *managerID
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "identity: iterate directory")
}

// SyncAll upserts a directory snapshot. Transitions:
//   - active -> inactive: stamp inactive_since = now (only if not already set)
//   - inactive -> active: clear inactive_since
func (d *Directory) SyncAll(ctx context.Context, snapshot []model.RM) error {
	current, err := d.LoadAll(ctx)
	if err != nil {
		return err
	}
	prior := make(map[string]model.RM, len(current))
	for _, rec := range current {
		prior[rec.EmployeeID] = rec
	}

	now := time.Now().UTC()
	transitions := 0
	for i := range snapshot {
		rec := &snapshot[i]
		old, known := prior[rec.EmployeeID]
		switch {
		case !rec.IsActive && (!known || old.IsActive):
			if rec.InactiveSince == nil {
				rec.InactiveSince = &now
			}
			transitions++
		case !rec.IsActive && known && !old.IsActive:
			// Already inactive: inactive_since monotonically holds.
			rec.InactiveSince = old.InactiveSince
		case rec.IsActive:
			rec.InactiveSince = nil
			if known && !old.IsActive {
				transitions++
			}
		}
	}

	cfg := db.UpsertConfig{
		Table:        "pli.rm_directory",
		Columns:      []string{"employee_id", "display_name", "is_active", "inactive_since", "profile", "team_id", "reporting_manager_id", "updated_at"},
		ConflictKeys: []string{"employee_id"},
	}
	rows := make([][]any, 0, len(snapshot))
	for _, rec := range snapshot {
		rows = append(rows, []any{
			rec.EmployeeID, rec.DisplayName, rec.IsActive, rec.InactiveSince,
			rec.Profile, rec.TeamID, rec.ManagerID, now,
		})
	}
	if _, err := db.BulkUpsert(ctx, d.pool, cfg, rows); err != nil {
		return eris.Wrap(err, "identity: sync directory")
	}

	zap.L().Info("directory synced",
		zap.Int("records", len(snapshot)),
		zap.Int("transitions", transitions))
	return nil
}
