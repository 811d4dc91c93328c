// Package insurance scores converted policies per RM-month: per-policy base
// points with fresh/renewal classification, multiplicative weight factors,
// monthly aggregation with streak bonuses, and rupee payout slabs.
package insurance

import (
	"math"
	"strings"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
)

// Classification is the derived shape of one policy before scoring.
type Classification struct {
	Class          model.PolicyClass
	UpsellEligible bool
	DaysToRenewal  *int
	TermYears      int
}

// Classify derives classification, renewal distance, and term from a raw
// policy. Portability with no renewal date is a fresh sale; portability with
// a renewal date is a renewal, upsell-eligible only when last year's premium
// is known.
func Classify(p model.InsurancePolicy) Classification {
	c := Classification{
		DaysToRenewal: daysToRenewal(p),
		TermYears:     termYears(p),
	}

	typ := strings.ToLower(p.PolicyType)
	status := strings.ToLower(p.ConversionStatus)

	switch {
	case strings.Contains(typ, "portability") || strings.Contains(status, "portability"):
		if p.RenewalDate == nil {
			c.Class = model.PolicyFresh
			return c
		}
		c.Class = model.PolicyRenewal
		c.UpsellEligible = p.LastYearPremium > 0
	case (strings.Contains(typ, "health") || strings.Contains(typ, "personal accident")) && c.DaysToRenewal == nil:
		// Health books arrive without renewal metadata; treated as renewals
		// with no days-to-renewal (base 0, never the cliff slab).
		c.Class = model.PolicyRenewal
	case strings.Contains(status, "renew") || strings.Contains(typ, "renew"):
		c.Class = model.PolicyRenewal
		c.UpsellEligible = p.LastYearPremium > 0
	default:
		c.Class = model.PolicyFresh
	}
	return c
}

// daysToRenewal is the signed distance from conversion to the renewal date,
// nil when the policy carries none.
func daysToRenewal(p model.InsurancePolicy) *int {
	if p.RenewalDate == nil {
		return nil
	}
	days := int(p.RenewalDate.Sub(p.ConversionDate).Hours() / 24)
	return &days
}

// termYears rounds the policy term up to whole years, with a few days of
// grace so a 366-day annual policy stays one year.
func termYears(p model.InsurancePolicy) int {
	days := p.PolicyEnd.Sub(p.PolicyStart).Hours() / 24
	if days <= 0 {
		return 1
	}
	if days <= 370 {
		return 1
	}
	return int(math.Ceil(days / 365))
}
