// Package aum resolves start-of-month AUM figures for RMs. Snapshot names
// arrive from a different upstream than the directory, so the lookup walks
// progressively looser name matches before giving up. Missing AUM is not an
// error; it propagates as 0 and downstream ratios yield 0.
package aum

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/db"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
)

// Lookup answers AumFor queries against the snapshot collection, caching
// per (month, normalized name) for the life of the process.
type Lookup struct {
	pool db.Pool

	mu     sync.Mutex
	months map[model.Month][]model.AUMSnapshot
	cache  map[string]cacheEntry
}

type cacheEntry struct {
	value float64
	found bool
}

func NewLookup(pool db.Pool) *Lookup {
	return &Lookup{
		pool:   pool,
		months: make(map[model.Month][]model.AUMSnapshot),
		cache:  make(map[string]cacheEntry),
	}
}

// AumFor returns the RM's start-of-month AUM and whether a snapshot matched.
// Lookup sequence: exact upper-cased name, case-insensitive exact, loose
// regex over the raw name, then name variants (first two tokens, drop last
// token, first token only).
func (l *Lookup) AumFor(ctx context.Context, rmName string, month model.Month) (float64, bool, error) {
	key := month.String() + "|" + model.NormalizeName(rmName)

	l.mu.Lock()
	if e, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return e.value, e.found, nil
	}
	l.mu.Unlock()

	snaps, err := l.snapshots(ctx, month)
	if err != nil {
		return 0, false, err
	}

	value, found := match(snaps, rmName)
	if !found {
		zap.L().Warn("no AUM snapshot matched",
			zap.String("rm", rmName),
			zap.String("month", month.String()))
	}

	l.mu.Lock()
	l.cache[key] = cacheEntry{value: value, found: found}
	l.mu.Unlock()
	return value, found, nil
}

// snapshots loads and memoizes the month's snapshot rows.
func (l *Lookup) snapshots(ctx context.Context, month model.Month) ([]model.AUMSnapshot, error) {
	l.mu.Lock()
	if snaps, ok := l.months[month]; ok {
		l.mu.Unlock()
		return snaps, nil
	}
	l.mu.Unlock()

	rows, err := l.pool.Query(ctx,
		`SELECT month, rm_name, aum FROM pli.aum_snapshots WHERE month = $1`,
		month.String())
	if err != nil {
		return nil, eris.Wrapf(err, "aum: load snapshots %s", month)
	}
	defer rows.Close()

	var snaps []model.AUMSnapshot
	for rows.Next() {
		var s model.AUMSnapshot
		var m string
		if err := rows.Scan(&m, &s.RMName, &s.AUM); err != nil {
			return nil, eris.Wrap(err, "aum: scan snapshot")
		}
		s.Month = month
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "aum: iterate snapshots %s", month)
	}

	l.mu.Lock()
	l.months[month] = snaps
	l.mu.Unlock()
	return snaps, nil
}

// match implements the four-step name resolution over one month's snapshots.
func match(snaps []model.AUMSnapshot, rmName string) (float64, bool) {
	name := strings.TrimSpace(rmName)
	if name == "" {
		return 0, false
	}

	upper := strings.ToUpper(name)
	for _, s := range snaps {
		if strings.ToUpper(strings.TrimSpace(s.RMName)) == upper {
			return s.AUM, true
		}
	}

	norm := model.NormalizeName(name)
	for _, s := range snaps {
		if model.NormalizeName(s.RMName) == norm {
			return s.AUM, true
		}
	}

	// Loose regex over the raw snapshot name: every token of the query, in
	// order, anywhere in the name.
	if re, err := regexp.Compile(`(?i)` + strings.Join(splitTokens(name), `.*`)); err == nil {
		for _, s := range snaps {
			if re.MatchString(s.RMName) {
				return s.AUM, true
			}
		}
	}

	for _, variant := range model.NameVariants(name) {
		vNorm := model.NormalizeName(variant)
		for _, s := range snaps {
			if model.NormalizeName(s.RMName) == vNorm {
				return s.AUM, true
			}
		}
	}

	return 0, false
}

func splitTokens(name string) []string {
	fields := strings.Fields(name)
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = regexp.QuoteMeta(f)
	}
	return out
}
