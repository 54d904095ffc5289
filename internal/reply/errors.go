package reply

import (
	"fmt"
	"math"
)

// ConfigurationError reports a rule with an out-of-range priority or a bad platform set.
// It is never transient; the offending rule has to be fixed by the operator.
type ConfigurationError struct {
	RuleID string
	Index  int
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid rule %q (index %d): %s: %s", e.RuleID, e.Index, e.Field, e.Reason)
}

// ValidateRules checks priority range and platform set of every rule and
// returns the first violation as a *ConfigurationError.
func ValidateRules(rules []AutomationRule) error {
	for i := range rules {
		if err := validateRule(i, &rules[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRulesAll is ValidateRules without stopping at the first violation.
func ValidateRulesAll(rules []AutomationRule) []*ConfigurationError {
	var errs []*ConfigurationError
	for i := range rules {
		if err := validateRule(i, &rules[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateRule(i int, r *AutomationRule) *ConfigurationError {
	if math.IsNaN(r.Priority) || r.Priority < 0 || r.Priority > 1 {
		return &ConfigurationError{RuleID: r.ID, Index: i, Field: "priority", Reason: fmt.Sprintf("%v is outside [0, 1]", r.Priority)}
	}
	if len(r.Platforms) == 0 {
		return &ConfigurationError{RuleID: r.ID, Index: i, Field: "platforms", Reason: "must not be empty"}
	}
	for _, p := range r.Platforms {
		if !p.Valid() {
			return &ConfigurationError{RuleID: r.ID, Index: i, Field: "platforms", Reason: fmt.Sprintf("unknown platform %q", p)}
		}
	}
	return nil
}
