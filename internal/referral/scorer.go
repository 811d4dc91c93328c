// Package referral awards fixed points for converted referral leads, split
// between the converting RM and the referring RM, and rolls the per-lead
// credits into monthly rows.
package referral

import (
	"sort"
	"time"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/identity"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

// Credit roles.
const (
	RoleSelfSourced = "self_sourced"
	RoleConverter   = "converter"
	RoleReferrer    = "referrer"
)

// Scorer computes per-lead referral credits.
type Scorer struct {
	cfg      scoreconfig.ReferralConfig
	hash     string
	fallback bool
}

func NewScorer(eff scoreconfig.Effective[scoreconfig.ReferralConfig]) *Scorer {
	return &Scorer{cfg: eff.Config, hash: eff.Hash, fallback: eff.FallbackUsed}
}

// ScoreLead awards credits for one converted lead. The converter and the
// referrer pass the inactivity gate independently; a credit is only emitted
// for a participant still inside their eligibility window.
func (s *Scorer) ScoreLead(lead model.ReferralLead, converter, referrer identity.Resolution,
	converterEligible, referrerEligible bool) []model.ReferralCredit {

	month := model.MonthOf(lead.ConversionDate)
	selfSourced := lead.ReferrerName != "" &&
		model.NormalizeName(lead.ConverterName) == model.NormalizeName(lead.ReferrerName)

	var credits []model.ReferralCredit
	add := func(rm identity.Resolution, role string, points float64) {
		if points == 0 {
			return
		}
		credits = append(credits, model.ReferralCredit{
			LeadID:       lead.LeadID,
			EmployeeID:   rm.EmployeeID,
			ReferralType: role,
			Category:     lead.Category,
			Month:        month,
			Points:       s.scale(lead, points),
		})
	}

	switch {
	case selfSourced:
		if converterEligible {
			add(converter, RoleSelfSourced, s.pick(lead.Category, s.cfg.SelfSourced))
		}
	case lead.ReferrerName == "":
		// Only investment leads pay a no-referrer conversion.
		if converterEligible && lead.Category == model.ReferralInvestment {
			add(converter, RoleConverter, s.cfg.NoReferrerConverter)
		} else if converterEligible {
			add(converter, RoleConverter, s.pick(lead.Category, s.cfg.ConverterSplit))
		}
	default:
		if converterEligible {
			add(converter, RoleConverter, s.pick(lead.Category, s.cfg.ConverterSplit))
		}
		if referrerEligible {
			add(referrer, RoleReferrer, s.pick(lead.Category, s.cfg.ReferrerSplit))
		}
	}
	return credits
}

func (s *Scorer) pick(cat model.ReferralCategory, p scoreconfig.ReferralScenarioPoints) float64 {
	if cat == model.ReferralInvestment {
		return p.Investment
	}
	return p.Insurance
}

// scale applies the family-head discount to investment leads converted for a
// non-head member without special permission.
func (s *Scorer) scale(lead model.ReferralLead, points float64) float64 {
	if lead.Category == model.ReferralInvestment && !lead.IsFamilyHead && !lead.SpecialPermission {
		return points * s.cfg.FamilyHeadFactor
	}
	return points
}

// Rollup aggregates credits into monthly rows, one per employee.
func (s *Scorer) Rollup(month model.Month, credits []model.ReferralCredit,
	resolve func(employeeID string) identity.Resolution) []model.ReferralRow {

	type agg struct {
		points float64
		leads  map[string]struct{}
	}
	byEmp := map[string]*agg{}
	for _, c := range credits {
		a := byEmp[c.EmployeeID]
		if a == nil {
			a = &agg{leads: map[string]struct{}{}}
			byEmp[c.EmployeeID] = a
		}
		a.points += c.Points
		a.leads[c.LeadID] = struct{}{}
	}

	emps := make([]string, 0, len(byEmp))
	for emp := range byEmp {
		emps = append(emps, emp)
	}
	sort.Strings(emps)

	rows := make([]model.ReferralRow, 0, len(byEmp))
	for _, emp := range emps {
		a := byEmp[emp]
		res := resolve(emp)
		rows = append(rows, model.ReferralRow{
			RowMeta: model.RowMeta{
				EmployeeID:     emp,
				EmployeeName:   res.CanonicalName,
				Month:          month,
				IsActive:       res.IsActive,
				PayoutEligible: true,
				ConfigFallback: s.fallback,
				ConfigHash:     s.hash,
				SchemaVersion:  model.SchemaVersion,
				UpdatedAt:      time.Now().UTC(),
			},
			Points:    a.points,
			LeadCount: len(a.leads),
		})
	}
	return rows
}
