package referral

import (
	"context"

	"go.uber.org/zap"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/store"
)

// Runner drives one referral scoring invocation.
type Runner struct {
	Store    *store.Store
	Configs  *scoreconfig.Store
	Resolver *identity.Resolver
}

// RunMonth scores one month's converted leads into per-lead credits and
// monthly rows.
func (r *Runner) RunMonth(ctx context.Context, month model.Month) error {
	eff, err := r.Configs.FetchReferral(ctx)
	if err != nil {
		return err
	}
	scorer := NewScorer(eff)
	skip := identity.NewSkipList(eff.Config.IgnoredRMs)

	leads, err := r.Store.ReferralLeads(ctx, month.Start(), month.End())
	if err != nil {
		return err
	}

	var credits []model.ReferralCredit
	for _, lead := range leads {
		converter := r.Resolver.Resolve(lead.ConverterName)
		var referrer identity.Resolution
		referrerEligible := false
		if lead.ReferrerName != "" && !skip.Contains(lead.ReferrerName) {
			referrer = r.Resolver.Resolve(lead.ReferrerName)
			referrerEligible = r.Resolver.EligibleForMonth(referrer.EmployeeID, month)
		}
		converterEligible := !skip.Contains(lead.ConverterName) &&
			r.Resolver.EligibleForMonth(converter.EmployeeID, month)

		credits = append(credits, scorer.ScoreLead(lead, converter, referrer, converterEligible, referrerEligible)...)
	}

	rows := scorer.Rollup(month, credits, func(employeeID string) identity.Resolution {
		if rec, ok := r.Resolver.ByEmployeeID(employeeID); ok {
			return identity.Resolution{
				EmployeeID:    rec.EmployeeID,
				CanonicalName: rec.DisplayName,
				IsActive:      rec.IsActive,
				Profile:       rec.Profile,
				Found:         true,
			}
		}
		return identity.Resolution{EmployeeID: employeeID, CanonicalName: employeeID}
	})
	for i := range rows {
		rows[i].PayoutEligible = r.Resolver.EligibleForMonth(rows[i].EmployeeID, month)
	}

	if err := r.Store.SaveReferralCredits(ctx, credits); err != nil {
		return err
	}
	if err := r.Store.SaveReferralRows(ctx, rows); err != nil {
		return err
	}

	zap.L().Info("referral month scored",
		zap.String("month", month.String()),
		zap.Int("leads", len(leads)),
		zap.Int("credits", len(credits)),
		zap.Int("rms", len(rows)),
		zap.String("config_hash", eff.Hash))
	return nil
}
