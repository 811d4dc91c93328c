package lumpsum

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/audit"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/aum"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/store"
)

// Runner drives one lumpsum scoring invocation: gather, group, score per RM
// with failure isolation, persist rows and audit documents.
type Runner struct {
	Store    *store.Store
	Configs  *scoreconfig.Store
	Resolver *identity.Resolver
	AUM      *aum.Lookup
	Audit    *audit.Writer
	Strategy PenaltyStrategy
}

// RunMonth scores one month for every RM with transactions in the window.
func (r *Runner) RunMonth(ctx context.Context, month model.Month) error {
	eff, err := r.Configs.FetchLumpsum(ctx)
	if err != nil {
		return err
	}
	scorer := NewScorer(eff, r.Strategy)
	skip := identity.NewSkipList(eff.Config.IgnoredRMs)

	from, to := window(eff.Config.Options, month)
	txns, err := r.Store.LumpsumTransactions(ctx, from, to)
	if err != nil {
		return err
	}
	meetings, err := r.Store.MeetingCounts(ctx, month)
	if err != nil {
		return err
	}

	byRM := make(map[string][]model.Transaction)
	for _, txn := range txns {
		if skip.Contains(txn.RMName) {
			continue
		}
		byRM[model.NormalizeName(txn.RMName)] = append(byRM[model.NormalizeName(txn.RMName)], txn)
	}

	names := make([]string, 0, len(byRM))
	for name := range byRM {
		names = append(names, name)
	}
	sort.Strings(names)

	fyMode := model.FYMode(eff.Config.Options.FYMode)
	auditMode := audit.ParseMode(eff.Config.Options.AuditMode)

	rows := make([]model.LumpsumRow, 0, len(names))
	records := make([]audit.Record, 0, len(names))
	for _, name := range names {
		row, rec, err := r.scoreRM(ctx, scorer, auditMode, month, fyMode, name, byRM[name], meetings)
		if err != nil {
			// Per-RM failures are isolated; the run continues.
			zap.L().Error("lumpsum scoring failed for RM",
				zap.String("rm", name),
				zap.String("month", month.String()),
				zap.Error(err))
			continue
		}
		rows = append(rows, row)
		records = append(records, rec)
	}

	if err := r.Store.SaveLumpsumRows(ctx, rows); err != nil {
		return err
	}
	r.Audit.WriteAll(ctx, auditMode, records)

	zap.L().Info("lumpsum month scored",
		zap.String("month", month.String()),
		zap.Int("rms", len(rows)),
		zap.String("config_hash", eff.Hash))
	return nil
}

func (r *Runner) scoreRM(ctx context.Context, scorer *Scorer, mode audit.Mode, month model.Month, fyMode model.FYMode,
	name string, txns []model.Transaction, meetings map[string]int) (row model.LumpsumRow, rec audit.Record, err error) {

	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("lumpsum: scoring panicked for %s: %v", name, p)
		}
	}()

	res := r.Resolver.Resolve(txns[0].RMName)
	aumStart, found, err := r.AUM.AumFor(ctx, txns[0].RMName, month)
	if err != nil {
		return model.LumpsumRow{}, audit.Record{}, err
	}

	in := Inputs{
		Month:        month,
		RM:           res,
		Transactions: txns,
		AUMStart:     aumStart,
		MissingAUM:   !found,
		MeetingCount: meetings[name],
	}

	prev, err := r.Store.LumpsumRow(ctx, res.EmployeeID, month.Prev())
	if err != nil {
		return model.LumpsumRow{}, audit.Record{}, err
	}
	if prev != nil {
		in.Streak = prev.Streak
	}

	if month.IsQuarterEnd(fyMode) {
		np, pos, err := r.aggregate(ctx, res.EmployeeID, month.QuarterStart(fyMode), month.Prev())
		if err != nil {
			return model.LumpsumRow{}, audit.Record{}, err
		}
		in.QTDNetPurchase, in.QTDPositiveMonths = np, pos
	}
	if month.IsFYEnd(fyMode) {
		np, pos, err := r.aggregate(ctx, res.EmployeeID, month.FYStart(fyMode), month.Prev())
		if err != nil {
			return model.LumpsumRow{}, audit.Record{}, err
		}
		in.FYTDNetPurchase, in.FYPositiveMonths = np, pos
	}

	row, _ = scorer.ScoreMonth(in)
	row.PayoutEligible = r.Resolver.EligibleForMonth(res.EmployeeID, month)

	compact := audit.LumpsumCompact{
		ByType:     row.ByType,
		ByCategory: row.ByCategory,
		Rate:       row.Rate,
		Multiplier: row.Multiplier,
		ConfigHash: row.ConfigHash,
	}
	payload := any(compact)
	if mode == audit.ModeFull {
		cfg := scorer.EffectiveConfig()
		payload = audit.LumpsumFull{
			LumpsumCompact: compact,
			Weights:        cfg.Weights,
			RateSlabs:      cfg.RateSlabs,
			MeetingSlabs:   cfg.MeetingSlabs,
			SchemeMatches:  scorer.SchemeMatches(txns),
		}
	}
	rec = audit.Record{
		Metric:     string(scoreconfig.MetricLumpsum),
		EmployeeID: row.EmployeeID,
		Month:      month,
		Payload:    payload,
	}
	return row, rec, nil
}

// aggregate sums persisted NetPurchase over [from, to] and counts positive
// months, for quarter/FY bonus projection.
func (r *Runner) aggregate(ctx context.Context, employeeID string, from, to model.Month) (float64, int, error) {
	if to.Before(from) {
		return 0, 0, nil
	}
	prior, err := r.Store.LumpsumRange(ctx, employeeID, from, to)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "lumpsum: aggregate %s..%s", from, to)
	}
	var np float64
	var positive int
	for _, row := range prior {
		np += row.NetPurchase
		if row.NetPurchase > 0 {
			positive++
		}
	}
	return np, positive, nil
}

// window derives the [from, to) transaction window for a scored month.
func window(opts scoreconfig.LumpsumOptions, month model.Month) (time.Time, time.Time) {
	switch opts.RangeMode {
	case "last5":
		return month.Start().AddDate(0, 0, -5), month.End()
	case "fy":
		return month.FYStart(model.FYMode(opts.FYMode)).Start(), month.End()
	case "since":
		if since, err := model.ParseMonth(opts.SinceMonth); err == nil {
			return since.Start(), month.End()
		}
	}
	return month.Start(), month.End()
}
