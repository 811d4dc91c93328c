// Package identity resolves raw RM display names from upstream feeds to
// canonical directory records, and answers the post-departure eligibility
// question every scorer asks before writing a row.
package identity

import (
	"strings"
	"sync"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
)

// EligibilityWindowMonths is how many months an RM keeps earning incentives
// after going inactive, counted from the inactive_since month inclusive.
const EligibilityWindowMonths = 6

// Resolution is the directory view of one resolved RM.
type Resolution struct {
	EmployeeID    string
	CanonicalName string
	IsActive      bool
	InactiveSince *model.Month
	Profile       string
	TeamID        string
	ManagerID     string
	// Found is false when no directory record matched; callers fall back to
	// the raw name as the employee id.
	Found bool
}

// Resolver answers name lookups against an in-memory directory snapshot.
// Lookups cache by normalized name; the cache lives for the process.
type Resolver struct {
	mu      sync.RWMutex
	byExact map[string]model.RM // display name as stored
	byLower map[string]model.RM // lowercased-normalized
	byID    map[string]model.RM
	cache   map[string]Resolution // normalized name -> Resolution
}

// NewResolver builds a resolver over a directory snapshot.
func NewResolver(records []model.RM) *Resolver {
	r := &Resolver{
		byExact: make(map[string]model.RM, len(records)),
		byLower: make(map[string]model.RM, len(records)),
		byID:    make(map[string]model.RM, len(records)),
	}
	r.Replace(records)
	return r
}

// Replace swaps in a fresh directory snapshot and drops the lookup cache.
func (r *Resolver) Replace(records []model.RM) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byExact = make(map[string]model.RM, len(records))
	r.byLower = make(map[string]model.RM, len(records))
	r.byID = make(map[string]model.RM, len(records))
	for _, rec := range records {
		r.byExact[rec.DisplayName] = rec
		r.byLower[model.NormalizeName(rec.DisplayName)] = rec
		r.byID[rec.EmployeeID] = rec
	}
	r.cache = make(map[string]Resolution)
}

// Resolve maps a raw display name to its directory record. Matching order:
// exact, case-insensitive exact, title-cased.
func (r *Resolver) Resolve(displayName string) Resolution {
	key := model.NormalizeName(displayName)
	r.mu.RLock()
	if cached, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return cached
	}
	rec, found := r.byExact[strings.TrimSpace(displayName)]
	if !found {
		rec, found = r.byLower[key]
	}
	if !found {
		rec, found = r.byExact[model.TitleName(displayName)]
	}
	r.mu.RUnlock()

	res := Resolution{Found: found}
	if found {
		res.EmployeeID = rec.EmployeeID
		res.CanonicalName = rec.DisplayName
		res.IsActive = rec.IsActive
		res.Profile = rec.Profile
		res.TeamID = rec.TeamID
		res.ManagerID = rec.ManagerID
		if rec.InactiveSince != nil {
			m := model.MonthOf(*rec.InactiveSince)
			res.InactiveSince = &m
		}
	} else {
		// No directory record: score under the raw name so the RM still
		// appears on the board.
		res.EmployeeID = strings.TrimSpace(displayName)
		res.CanonicalName = model.TitleName(displayName)
	}

	r.mu.Lock()
	r.cache[key] = res
	r.mu.Unlock()
	return res
}

// ByEmployeeID returns the directory record for a canonical id.
func (r *Resolver) ByEmployeeID(id string) (model.RM, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	return rec, ok
}

// All returns the snapshot records in no particular order.
func (r *Resolver) All() []model.RM {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.RM, 0, len(r.byID))
	for _, rec := range r.byID {
		out = append(out, rec)
	}
	return out
}

// EligibleForMonth reports whether an RM may earn a payout for a month.
// Unknown RMs and active RMs are always eligible; an inactive RM stays
// eligible for the inactive month and the five that follow.
func (r *Resolver) EligibleForMonth(employeeID string, month model.Month) bool {
	r.mu.RLock()
	rec, ok := r.byID[employeeID]
	r.mu.RUnlock()
	if !ok {
		return true
	}
	return Eligible(rec, month)
}

// Eligible applies the post-departure window rule to one record.
func Eligible(rec model.RM, month model.Month) bool {
	if rec.IsActive || rec.InactiveSince == nil {
		return true
	}
	delta := month.Index() - model.MonthOf(*rec.InactiveSince).Index()
	return delta >= 0 && delta < EligibilityWindowMonths
}

// SkipList filters configured ignored_rms names before any scoring.
type SkipList struct {
	names map[string]struct{}
}

func NewSkipList(names []string) *SkipList {
	s := &SkipList{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.names[model.NormalizeName(n)] = struct{}{}
	}
	return s
}

// Contains reports whether a raw display name is on the skip list.
func (s *SkipList) Contains(displayName string) bool {
	if s == nil {
		return false
	}
	_, ok := s.names[model.NormalizeName(displayName)]
	return ok
}
