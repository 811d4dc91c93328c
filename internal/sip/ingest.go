// Package sip scores monthly SIP/SWP flows per RM: fraction-aware ingestion
// with validation and reconciliation filters, net-SIP aggregation, rate
// composition in basis points, the cross-metric lumpsum gate, and tier
// assignment with trail factors.
package sip

import (
	"strings"
	"time"

	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/model"
	"github.com/Vilakshanb/leaderboard-backend-sub000/internal/scoreconfig"
)

// Effective is one normalized transaction after ingestion: a signed,
// scheme-weighted amount attributed to an RM and a bucket.
type Effective struct {
	RMName     string
	Type       model.SIPTxnType
	For        model.SIPTxnFor
	Amount     float64 // raw magnitude
	Weighted   float64 // after scheme weight
	ExecDate   time.Time
	SchemeName string
}

// Ingest normalizes raw SIP/SWP documents for a scoring window. Fractioned
// documents score each fraction independently; the fraction's exec date is
// its latest APPROVED validation inside [from, to), with the reconciliation
// filter applied at fraction level and falling back to the document.
func Ingest(cfg scoreconfig.SIPConfig, docs []model.SIPTransaction, from, to time.Time) []Effective {
	var out []Effective
	for _, doc := range docs {
		if len(doc.Fractions) > 0 {
			for _, fr := range doc.Fractions {
				recon := fr.ReconciliationStatus
				if recon == "" {
					recon = doc.ReconciliationStatus
				}
				if !reconciled(recon) {
					continue
				}
				exec, ok := latestApproved(fr.Validations, from, to)
				if !ok {
					continue
				}
				out = append(out, effective(cfg, doc, fr.Amount, exec))
			}
			continue
		}

		if !reconciled(doc.ReconciliationStatus) {
			continue
		}
		exec, ok := latestApproved(doc.Validations, from, to)
		if !ok {
			continue
		}
		out = append(out, effective(cfg, doc, doc.Amount, exec))
	}
	return out
}

func effective(cfg scoreconfig.SIPConfig, doc model.SIPTransaction, amount float64, exec time.Time) Effective {
	weighted := amount
	if schemeApplies(cfg.ApplyTo, doc.TransactionType, doc.TransactionFor) {
		weighted = amount * schemeWeight(cfg.SchemeRules, doc.SchemeName, exec)
	}
	return Effective{
		RMName:     doc.RMName,
		Type:       doc.TransactionType,
		For:        doc.TransactionFor,
		Amount:     amount,
		Weighted:   weighted,
		ExecDate:   exec,
		SchemeName: doc.SchemeName,
	}
}

func reconciled(status string) bool {
	return status == model.ReconStatusReconciled || status == model.ReconStatusReconciledMinor
}

// latestApproved returns the newest APPROVED validation timestamp within
// [from, to).
func latestApproved(validations []model.Validation, from, to time.Time) (time.Time, bool) {
	var latest time.Time
	var found bool
	for _, v := range validations {
		if v.Status != model.ValidationStatusApproved {
			continue
		}
		if v.ValidatedAt.Before(from) || !v.ValidatedAt.Before(to) {
			continue
		}
		if !found || v.ValidatedAt.After(latest) {
			latest = v.ValidatedAt
			found = true
		}
	}
	return latest, found
}

func schemeApplies(a scoreconfig.SIPApplyTo, typ model.SIPTxnType, f model.SIPTxnFor) bool {
	switch {
	case typ == model.SIPTypeSIP && f == model.SIPForRegistration:
		return a.SIPRegistration
	case typ == model.SIPTypeSIP && f == model.SIPForCancellation:
		return a.SIPCancellation
	case typ == model.SIPTypeSWP && f == model.SIPForRegistration:
		return a.SWPRegistration
	case typ == model.SIPTypeSWP && f == model.SIPForCancellation:
		return a.SWPCancellation
	}
	return false
}

// schemeWeight walks the ordered rules, first match wins, no match is 1.0.
func schemeWeight(rules []scoreconfig.SchemeRule, schemeName string, at time.Time) float64 {
	for _, rule := range rules {
		if rule.StartDate != nil && at.Before(*rule.StartDate) {
			continue
		}
		if rule.EndDate != nil && !at.Before(*rule.EndDate) {
			continue
		}
		if matchScheme(rule, schemeName) {
			return rule.WeightPct / 100
		}
	}
	return 1.0
}

func matchScheme(rule scoreconfig.SchemeRule, schemeName string) bool {
	name := strings.ToLower(schemeName)
	kw := strings.ToLower(rule.Keyword)
	switch rule.MatchType {
	case "exact":
		return name == kw
	case "startswith":
		return strings.HasPrefix(name, kw)
	default: // contains
		return strings.Contains(name, kw)
	}
}
