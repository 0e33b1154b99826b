package config

import "fmt"

// ValidationError reports a malformed or dangling configuration reference.
// It is fatal at load time: the engine never starts on an invalid config.
type ValidationError struct {
	Field  string // offending field, e.g. "transition_rules[2].to_mode"
	Rule   int    // offending rule index, -1 when not rule-scoped
	Reason string
}

// NewRuleError builds a ValidationError scoped to one transition rule.
func NewRuleError(rule int, field, reason string) *ValidationError {
	return &ValidationError{
		Field:  fmt.Sprintf("transition_rules[%d].%s", rule, field),
		Rule:   rule,
		Reason: reason,
	}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid config: " + e.Reason
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}
