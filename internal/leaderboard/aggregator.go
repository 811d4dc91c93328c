// Package leaderboard composes the per-metric scorer outputs into the public
// leaderboard rows, applies approved adjustments, and rolls leader credits
// up per profile bucket.
package leaderboard

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/store"
)

// readConcurrency bounds the per-RM adjustment fan-out.
const readConcurrency = 6

// Aggregator builds public rows for one month from the four metric
// collections.
type Aggregator struct {
	Store    *store.Store
	Configs  *scoreconfig.Store
	Resolver *identity.Resolver
}

// metricRows is one month's output of all four scorers, keyed by employee.
type metricRows struct {
	lumpsum   map[string]model.LumpsumRow
	sip       map[string]model.SIPRow
	insurance map[string]model.InsuranceRow
	referral  map[string]model.ReferralRow
}

// RunMonth composes and persists the public rows and leader credits for one
// month.
func (a *Aggregator) RunMonth(ctx context.Context, month model.Month) error {
	hash, investmentProfiles, err := a.effectiveStamp(ctx)
	if err != nil {
		return err
	}

	rows, err := a.readMetricRows(ctx, month)
	if err != nil {
		return err
	}

	employees := union(keys(rows.lumpsum), keys(rows.sip), keys(rows.insurance), keys(rows.referral))

	public := make([]model.PublicRow, len(employees))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, id := range employees {
		i, id := i, id
		g.Go(func() error {
			adjs, err := a.Store.ApprovedAdjustments(gctx, id, month)
			if err != nil {
				return eris.Wrapf(err, "leaderboard: adjustments for %s", id)
			}
			public[i] = a.compose(month, id, rows, adjs, hash)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	credits, expected := a.leaderCredits(month, public, investmentProfiles)

	if err := a.Store.SavePublicRows(ctx, public); err != nil {
		return err
	}
	if err := a.Store.SaveLeaderCredits(ctx, credits, expected); err != nil {
		return err
	}

	zap.L().Info("leaderboard month aggregated",
		zap.String("month", month.String()),
		zap.Int("rms", len(public)),
		zap.String("config_hash", hash))
	return nil
}

// compose builds one public row from the metric rows at hand.
func (a *Aggregator) compose(month model.Month, employeeID string, rows *metricRows,
	adjs []model.Adjustment, hash string) model.PublicRow {

	row := model.PublicRow{
		EmployeeID:    employeeID,
		PeriodMonth:   month,
		ConfigHash:    hash,
		SchemaVersion: model.SchemaVersion,
		UpdatedAt:     time.Now().UTC(),
	}
	auditBlock := model.PublicAudit{}

	if rec, ok := a.Resolver.ByEmployeeID(employeeID); ok {
		row.EmployeeName = rec.DisplayName
		row.IsActive = rec.IsActive
		row.Profile = rec.Profile
		row.TeamID = rec.TeamID
		row.ManagerID = rec.ManagerID
	}

	if sip, ok := rows.sip[employeeID]; ok {
		// The SIP scorer is authoritative for both MF point fields.
		row.MFSIPPoints = sip.SIPPoints
		row.MFLumpsumPoints = sip.LumpsumPoints
		row.NetSIP = sip.NetSIP
		row.AUMStart = sip.AUMStart
		if row.EmployeeName == "" {
			row.EmployeeName = sip.EmployeeName
		}
		auditBlock.SIPRateBPS = sip.RateBPS
		auditBlock.SIPGateApplied = sip.GateApplied
	}
	if lump, ok := rows.lumpsum[employeeID]; ok {
		if row.AUMStart == 0 {
			row.AUMStart = lump.AUMStart
		}
		if row.EmployeeName == "" {
			row.EmployeeName = lump.EmployeeName
		}
		auditBlock.LumpsumGrowth = lump.GrowthPct
	}
	if ins, ok := rows.insurance[employeeID]; ok {
		row.InsPoints = ins.PointsTotal
		row.InsFreshPremium = ins.FreshPremium
		if row.EmployeeName == "" {
			row.EmployeeName = ins.EmployeeName
		}
		auditBlock.InsPolicyCount = ins.PolicyCount
	}
	if ref, ok := rows.referral[employeeID]; ok {
		row.RefPoints = ref.Points
		if row.EmployeeName == "" {
			row.EmployeeName = ref.EmployeeName
		}
		auditBlock.RefLeadCount = ref.LeadCount
	}

	row.MFPoints = row.MFSIPPoints + row.MFLumpsumPoints
	row.TotalPointsPublic = row.MFPoints + row.InsPoints + row.RefPoints
	row.PayoutEligible = a.Resolver.EligibleForMonth(employeeID, month)

	row.TotalPointsFinal = row.TotalPointsPublic
	for _, adj := range adjs {
		if adj.Type == model.AdjustPoints {
			row.TotalPointsFinal += adj.Value
		}
	}
	row.Adjustments = adjs
	row.Audit = &auditBlock
	return row
}

// leaderCredits splits each RM's base total 20% into their profile bucket.
func (a *Aggregator) leaderCredits(month model.Month, public []model.PublicRow,
	investmentProfiles []string) ([]model.LeaderCredit, map[model.CreditBucket]float64) {

	credits := make([]model.LeaderCredit, 0, len(public))
	expected := map[model.CreditBucket]float64{}
	now := time.Now().UTC()
	for _, row := range public {
		bucket := model.BucketINS
		for _, p := range investmentProfiles {
			if strings.EqualFold(p, row.Profile) {
				bucket = model.BucketMF
				break
			}
		}
		credit := model.LeaderCredit{
			Source:      row.EmployeeID,
			PeriodMonth: month,
			Bucket:      bucket,
			Points:      row.TotalPointsPublic * 0.20,
			UpdatedAt:   now,
		}
		credits = append(credits, credit)
		expected[bucket] += credit.Points
	}
	return credits, expected
}

// readMetricRows fetches the four per-metric month collections concurrently.
func (a *Aggregator) readMetricRows(ctx context.Context, month model.Month) (*metricRows, error) {
	rows := &metricRows{
		lumpsum:   map[string]model.LumpsumRow{},
		sip:       map[string]model.SIPRow{},
		insurance: map[string]model.InsuranceRow{},
		referral:  map[string]model.ReferralRow{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := a.Store.LumpsumMonth(gctx, month)
		for _, r := range list {
			rows.lumpsum[r.EmployeeID] = r
		}
		return err
	})
	g.Go(func() error {
		list, err := a.Store.SIPMonth(gctx, month)
		for _, r := range list {
			rows.sip[r.EmployeeID] = r
		}
		return err
	})
	g.Go(func() error {
		list, err := a.Store.InsuranceMonth(gctx, month)
		for _, r := range list {
			rows.insurance[r.EmployeeID] = r
		}
		return err
	})
	g.Go(func() error {
		list, err := a.Store.ReferralMonth(gctx, month)
		for _, r := range list {
			rows.referral[r.EmployeeID] = r
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// effectiveStamp derives the public-row config hash from the four effective
// configs, and surfaces the insurance investment-profile list for bucketing.
func (a *Aggregator) effectiveStamp(ctx context.Context) (string, []string, error) {
	lump, err := a.Configs.FetchLumpsum(ctx)
	if err != nil {
		return "", nil, err
	}
	sip, err := a.Configs.FetchSIP(ctx)
	if err != nil {
		return "", nil, err
	}
	ins, err := a.Configs.FetchInsurance(ctx)
	if err != nil {
		return "", nil, err
	}
	ref, err := a.Configs.FetchReferral(ctx)
	if err != nil {
		return "", nil, err
	}

	hash, err := scoreconfig.Hash(map[string]string{
		"lumpsum":   lump.Hash,
		"sip":       sip.Hash,
		"insurance": ins.Hash,
		"referral":  ref.Hash,
	})
	if err != nil {
		return "", nil, eris.Wrap(err, "leaderboard: combined config hash")
	}
	return hash, ins.Config.InvestmentProfiles, nil
}

func keys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// union merges id slices, deduplicated and sorted for deterministic output.
func union(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}
