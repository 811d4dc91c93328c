package insurance

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/audit"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/store"
)

// Runner drives one insurance scoring invocation.
type Runner struct {
	Store    *store.Store
	Configs  *scoreconfig.Store
	Resolver *identity.Resolver
	Audit    *audit.Writer
}

// RunMonth scores one month for every RM with converted policies in it.
func (r *Runner) RunMonth(ctx context.Context, month model.Month) error {
	eff, err := r.Configs.FetchInsurance(ctx)
	if err != nil {
		return err
	}
	scorer := NewScorer(eff)
	skip := identity.NewSkipList(eff.Config.IgnoredRMs)

	policies, err := r.Store.InsurancePolicies(ctx, month.Start(), month.End())
	if err != nil {
		return err
	}

	byRM := make(map[string][]model.PolicyScore)
	rawName := make(map[string]string)
	var allScores []model.PolicyScore
	for _, p := range policies {
		if skip.Contains(p.ProcessingUser.Name) || scorer.Blacklisted(p.Company) {
			continue
		}
		res := r.Resolver.Resolve(p.ProcessingUser.Name)
		score := scorer.ScorePolicy(p, res)
		allScores = append(allScores, score)
		key := model.NormalizeName(p.ProcessingUser.Name)
		byRM[key] = append(byRM[key], score)
		rawName[key] = p.ProcessingUser.Name
	}

	names := make([]string, 0, len(byRM))
	for name := range byRM {
		names = append(names, name)
	}
	sort.Strings(names)

	fyMode := model.FYMode(eff.Config.Options.FYMode)
	auditMode := audit.ParseMode(eff.Config.Options.AuditMode)

	rows := make([]model.InsuranceRow, 0, len(names))
	credits := make([]model.LeaderCredit, 0, len(names))
	expected := map[model.CreditBucket]float64{}
	records := make([]audit.Record, 0, len(names))
	for _, name := range names {
		row, rec, err := r.scoreRM(ctx, scorer, auditMode, month, fyMode, rawName[name], byRM[name])
		if err != nil {
			zap.L().Error("insurance scoring failed for RM",
				zap.String("rm", name),
				zap.String("month", month.String()),
				zap.Error(err))
			continue
		}
		rows = append(rows, row)
		records = append(records, rec)

		res := r.Resolver.Resolve(rawName[name])
		credit := scorer.LeaderCredit(row, res.Profile)
		credits = append(credits, credit)
		expected[credit.Bucket] += credit.Points
	}

	if err := r.Store.SavePolicyScores(ctx, allScores); err != nil {
		return err
	}
	if err := r.Store.SaveInsuranceRows(ctx, rows); err != nil {
		return err
	}
	if err := r.Store.SaveLeaderCredits(ctx, credits, expected); err != nil {
		return err
	}
	r.Audit.WriteAll(ctx, auditMode, records)

	zap.L().Info("insurance month scored",
		zap.String("month", month.String()),
		zap.Int("rms", len(rows)),
		zap.Int("policies", len(allScores)),
		zap.String("config_hash", eff.Hash))
	return nil
}

func (r *Runner) scoreRM(ctx context.Context, scorer *Scorer, mode audit.Mode, month model.Month, fyMode model.FYMode,
	name string, scores []model.PolicyScore) (row model.InsuranceRow, rec audit.Record, err error) {

	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("insurance: scoring panicked for %s: %v", name, p)
		}
	}()

	res := r.Resolver.Resolve(name)

	in := MonthInputs{
		Month:        month,
		RM:           res,
		Policies:     scores,
		IsQuarterEnd: month.IsQuarterEnd(fyMode),
		IsFYEnd:      month.IsFYEnd(fyMode),
	}

	prev, err := r.Store.InsuranceRow(ctx, res.EmployeeID, month.Prev())
	if err != nil {
		return model.InsuranceRow{}, audit.Record{}, err
	}
	if prev != nil {
		in.PrevStreak = prev.StreakMonths
	}

	if in.IsQuarterEnd {
		in.QTDFreshPremium, err = r.freshPremium(ctx, res.EmployeeID, month.QuarterStart(fyMode), month.Prev())
		if err != nil {
			return model.InsuranceRow{}, audit.Record{}, err
		}
	}
	if in.IsFYEnd {
		in.FYTDFreshPremium, err = r.freshPremium(ctx, res.EmployeeID, month.FYStart(fyMode), month.Prev())
		if err != nil {
			return model.InsuranceRow{}, audit.Record{}, err
		}
	}

	row = scorer.ScoreMonth(in)
	row.PayoutEligible = r.Resolver.EligibleForMonth(res.EmployeeID, month)

	policyAudits := make([]audit.InsurancePolicyAudit, 0, len(scores))
	for _, p := range scores {
		policyAudits = append(policyAudits, audit.InsurancePolicyAudit{
			PolicyNumber:   p.PolicyNumber,
			Classification: string(p.Classification),
			BasePoints:     p.BasePoints,
			UpsellPoints:   p.UpsellPoints,
			WeightFactor:   p.WeightFactor,
			DaysToRenewal:  p.DaysToRenewal,
			FreshEligible:  p.FreshPremiumEligible,
		})
	}
	payload := any(policyAudits)
	if mode == audit.ModeFull {
		cfg := scorer.EffectiveConfig()
		payload = audit.InsuranceFull{
			Policies:    policyAudits,
			RenewSlabs:  cfg.RenewSlabs,
			FreshSlabs:  cfg.FreshSlabs,
			PayoutSlabs: cfg.PayoutSlabs,
		}
	}
	rec = audit.Record{
		Metric:     string(scoreconfig.MetricInsurance),
		EmployeeID: row.EmployeeID,
		Month:      month,
		Payload:    payload,
	}
	return row, rec, nil
}

// freshPremium sums persisted eligible fresh premium over [from, to].
func (r *Runner) freshPremium(ctx context.Context, employeeID string, from, to model.Month) (float64, error) {
	if to.Before(from) {
		return 0, nil
	}
	prior, err := r.Store.InsuranceRange(ctx, employeeID, from, to)
	if err != nil {
		return 0, eris.Wrapf(err, "insurance: fresh premium %s..%s", from, to)
	}
	var sum float64
	for _, row := range prior {
		sum += row.FreshPremium
	}
	return sum, nil
}
