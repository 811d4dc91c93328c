package scoreconfig

import "fmt"

// ReferralScenarioPoints holds the fixed point values of one referral
// scenario, split by lead category.
type ReferralScenarioPoints struct {
	Insurance  float64 `json:"insurance"`
	Investment float64 `json:"investment"`
}

// ReferralConfig is the runtime configuration of the referral scorer.
type ReferralConfig struct {
	// SelfSourced pays the converter when they are also the referrer.
	SelfSourced ReferralScenarioPoints `json:"self_sourced"`
	// ConverterSplit pays the converter when someone else referred the lead.
	ConverterSplit ReferralScenarioPoints `json:"converter_split"`
	// ReferrerSplit pays the referrer when someone else converts the lead.
	ReferrerSplit ReferralScenarioPoints `json:"referrer_split"`
	// NoReferrerConverter pays the converter of an investment lead that has
	// no referrer at all.
	NoReferrerConverter float64 `json:"no_referrer_converter"`
	// FamilyHeadFactor scales investment points when the lead is not the
	// family head and no special permission was granted.
	FamilyHeadFactor float64 `json:"family_head_factor"`

	IgnoredRMs []string `json:"ignored_rms"`
}

// DefaultReferral returns the built-in referral configuration.
func DefaultReferral() ReferralConfig {
	return ReferralConfig{
		SelfSourced:         ReferralScenarioPoints{Insurance: 100, Investment: 200},
		ConverterSplit:      ReferralScenarioPoints{Insurance: 50, Investment: 0},
		ReferrerSplit:       ReferralScenarioPoints{Insurance: 30, Investment: 50},
		NoReferrerConverter: 50,
		FamilyHeadFactor:    0.30,
	}
}

// ValidateReferral checks a referral payload, returning every violation.
func ValidateReferral(c ReferralConfig) []FieldError {
	var errs []FieldError

	check := func(field string, v float64) {
		if v < 0 {
			errs = append(errs, FieldError{field, "must be >= 0"})
		}
	}
	check("self_sourced.insurance", c.SelfSourced.Insurance)
	check("self_sourced.investment", c.SelfSourced.Investment)
	check("converter_split.insurance", c.ConverterSplit.Insurance)
	check("converter_split.investment", c.ConverterSplit.Investment)
	check("referrer_split.insurance", c.ReferrerSplit.Insurance)
	check("referrer_split.investment", c.ReferrerSplit.Investment)
	check("no_referrer_converter", c.NoReferrerConverter)

	if c.FamilyHeadFactor < 0 || c.FamilyHeadFactor > 1 {
		errs = append(errs, FieldError{"family_head_factor", fmt.Sprintf("must be between 0 and 1 (got %v)", c.FamilyHeadFactor)})
	}

	return errs
}

// NormalizeReferral substitutes defaults for inconsistent stored fields.
func NormalizeReferral(c ReferralConfig) (ReferralConfig, bool) {
	fallback := false
	def := DefaultReferral()

	if c.FamilyHeadFactor < 0 || c.FamilyHeadFactor > 1 {
		c.FamilyHeadFactor = def.FamilyHeadFactor
		fallback = true
	}

	return c, fallback
}
