package sip

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

// Runner drives one SIP scoring invocation.
type Runner struct {
	Store    *store.Store
	Configs  *scoreconfig.Store
	Resolver *identity.Resolver
	AUM      *aum.Lookup
	Audit    *audit.Writer
}

// RunMonth scores one month for every RM with effective SIP/SWP transactions
// in the window.
func (r *Runner) RunMonth(ctx context.Context, month model.Month) error {
	eff, err := r.Configs.FetchSIP(ctx)
	if err != nil {
		return err
	}
	scorer := NewScorer(eff)
	skip := identity.NewSkipList(eff.Config.IgnoredRMs)

	docs, err := r.Store.SIPTransactions(ctx)
	if err != nil {
		return err
	}
	from, to := window(eff.Config.Options, month)
	txns := Ingest(eff.Config, docs, from, to)

	byRM := make(map[string][]Effective)
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

	auditMode := audit.ParseMode(eff.Config.Options.AuditMode)

	rows := make([]model.SIPRow, 0, len(names))
	records := make([]audit.Record, 0, len(names))
	for _, name := range names {
		row, rec, err := r.scoreRM(ctx, scorer, eff.Config, auditMode, month, name, byRM[name])
		if err != nil {
			zap.L().Error("sip scoring failed for RM",
				zap.String("rm", name),
				zap.String("month", month.String()),
				zap.Error(err))
			continue
		}
		rows = append(rows, row)
		records = append(records, rec)
	}

	if err := r.Store.SaveSIPRows(ctx, rows); err != nil {
		return err
	}
	r.Audit.WriteAll(ctx, auditMode, records)

	zap.L().Info("sip month scored",
		zap.String("month", month.String()),
		zap.Int("rms", len(rows)),
		zap.String("config_hash", eff.Hash))
	return nil
}

func (r *Runner) scoreRM(ctx context.Context, scorer *Scorer, cfg scoreconfig.SIPConfig, mode audit.Mode,
	month model.Month, name string, txns []Effective) (row model.SIPRow, rec audit.Record, err error) {

	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("sip: scoring panicked for %s: %v", name, p)
		}
	}()

	res := r.Resolver.Resolve(txns[0].RMName)
	aumStart, found, err := r.AUM.AumFor(ctx, txns[0].RMName, month)
	if err != nil {
		return model.SIPRow{}, audit.Record{}, err
	}

	in := Inputs{
		Month:        month,
		RM:           res,
		Transactions: txns,
		AUMStart:     aumStart,
		MissingAUM:   !found,
	}

	prev, err := r.Store.SIPRow(ctx, res.EmployeeID, month.Prev())
	if err != nil {
		return model.SIPRow{}, audit.Record{}, err
	}
	if prev != nil {
		in.PrevConsecutive = prev.ConsecutivePositive
	}

	lump, err := r.Store.LumpsumRow(ctx, res.EmployeeID, month)
	if err != nil {
		return model.SIPRow{}, audit.Record{}, err
	}
	in.Gate = ResolveGate(cfg.Options, lump)
	if !in.Gate.Found {
		zap.L().Info("sip gate not applied, no lumpsum row",
			zap.String("rm", name),
			zap.String("month", month.String()))
	}

	row = scorer.ScoreMonth(in)
	row.PayoutEligible = r.Resolver.EligibleForMonth(res.EmployeeID, month)

	compact := audit.SIPCompact{
		NetSIP:         row.NetSIP,
		RateBPS:        row.RateBPS,
		BonusBreakdown: row.BonusBreakdown,
		GateApplied:    row.GateApplied,
		Tier:           row.Tier,
		ConfigHash:     row.ConfigHash,
	}
	payload := any(compact)
	if mode == audit.ModeFull {
		payload = fullAudit(compact, cfg, txns)
	}
	rec = audit.Record{
		Metric:     string(scoreconfig.MetricSIP),
		EmployeeID: row.EmployeeID,
		Month:      month,
		Payload:    payload,
	}
	return row, rec, nil
}

// fullAudit wraps the compact payload with the effective options, penalty
// slabs, and the ingested transaction log.
func fullAudit(compact audit.SIPCompact, cfg scoreconfig.SIPConfig, txns []Effective) audit.SIPFull {
	log := make([]audit.SIPTxnAudit, 0, len(txns))
	for _, txn := range txns {
		log = append(log, audit.SIPTxnAudit{
			Type:       string(txn.Type),
			For:        string(txn.For),
			SchemeName: txn.SchemeName,
			Amount:     txn.Amount,
			Weighted:   txn.Weighted,
			ExecDate:   txn.ExecDate,
		})
	}
	return audit.SIPFull{
		SIPCompact:   compact,
		Options:      cfg.Options,
		PenaltySlabs: cfg.PenaltySlabs,
		Transactions: log,
	}
}

// window derives the [from, to) validation window for a scored month.
func window(opts scoreconfig.SIPOptions, month model.Month) (time.Time, time.Time) {
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
