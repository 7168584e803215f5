package service

import (
	"github.com/labsense-server/internal/domain"
)

// ConstraintApplies reports whether a rule's demographic constraint is
// satisfied by the given profile. The gate is conservative: a rule with a
// non-empty constraint never fires without a profile that affirmatively
// satisfies it, so missing demographics suppress gated rules rather than
// widening them.
func ConstraintApplies(c *domain.DemographicConstraint, p *domain.PatientProfile) bool {
	if c == nil || c.IsEmpty() {
		return true
	}
	if p == nil {
		return false
	}

	if c.RequiredSex != "" {
		// A withheld sex never satisfies a sex requirement.
		if p.Sex == domain.SexPreferNotSay || p.Sex != c.RequiredSex {
			return false
		}
	}
	if c.MinAge != nil && p.Age < *c.MinAge {
		return false
	}
	if c.MaxAge != nil && p.Age > *c.MaxAge {
		return false
	}
	if c.RequiresPregnant != nil {
		// UNKNOWN satisfies neither polarity.
		if *c.RequiresPregnant && p.Pregnancy != domain.PregnancyPregnant {
			return false
		}
		if !*c.RequiresPregnant && p.Pregnancy != domain.PregnancyNotPregnant {
			return false
		}
	}
	return true
}
