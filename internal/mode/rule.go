package mode

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kborowski/pivot/internal/config"
)

// Rule is a validated, immutable transition edge. Runtime-mutable firing
// state lives in the CooldownTracker, keyed by the rule's declaration index.
type Rule struct {
	Index    int // declaration order, ties broken in favor of earlier rules
	FromMode string
	ToMode   string
	Type     config.TransitionType
	Keywords []string
	Priority int
	Cooldown time.Duration

	// Time-based firing conditions.
	DwellTimeout time.Duration // fire after this long in FromMode (0 = unused)
	AtSchedule   cron.Schedule // fire at scheduled instants (nil = unused)
	atExpr       string
}

// compileRule validates a RuleConfig and produces the immutable Rule.
func compileRule(index int, rc config.RuleConfig) (Rule, error) {
	r := Rule{
		Index:    index,
		FromMode: rc.FromMode,
		ToMode:   rc.ToMode,
		Type:     rc.TransitionType,
		Keywords: rc.TriggerKeywords,
		Priority: rc.Priority,
	}

	if rc.CooldownSeconds < 0 {
		return r, config.NewRuleError(index, "cooldown_seconds", "must be non-negative")
	}
	r.Cooldown = secondsToDuration(rc.CooldownSeconds)

	switch rc.TransitionType {
	case config.TransitionInputTriggered:
		if len(rc.TriggerKeywords) == 0 {
			return r, config.NewRuleError(index, "trigger_keywords", "input-triggered rules require at least one keyword")
		}
	case config.TransitionTimeBased:
		// A rule with neither timeout nor schedule falls back to the
		// from-mode's dwell; the registry checks one actually exists.
		if rc.TimeoutSeconds > 0 {
			r.DwellTimeout = secondsToDuration(rc.TimeoutSeconds)
		}
		if rc.AtSchedule != "" {
			parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
			schedule, err := parser.Parse(rc.AtSchedule)
			if err != nil {
				return r, config.NewRuleError(index, "at_schedule", fmt.Sprintf("invalid cron expression %q: %v", rc.AtSchedule, err))
			}
			r.AtSchedule = schedule
			r.atExpr = rc.AtSchedule
		}
	case config.TransitionManual:
		// Only fires through the manual switch gate; nothing more to check.
	case config.TransitionContextAware:
		// Inert edge class: accepted so configs written for a relevance
		// scorer still load, but the evaluator never emits it.
	default:
		return r, config.NewRuleError(index, "transition_type", fmt.Sprintf("unknown transition type %q", rc.TransitionType))
	}

	return r, nil
}

// Wildcard reports whether the rule applies from any current mode.
func (r *Rule) Wildcard() bool {
	return r.FromMode == config.Wildcard
}

// AppliesFrom reports whether the rule is an edge out of the given mode.
func (r *Rule) AppliesFrom(current string) bool {
	return r.Wildcard() || r.FromMode == current
}

// ScheduleMatches reports whether t falls in the same minute as one of the
// rule's cron activations. Repetition within a window is the cooldown's job.
func (r *Rule) ScheduleMatches(t time.Time) bool {
	if r.AtSchedule == nil {
		return false
	}
	truncated := t.Truncate(time.Minute)
	return r.AtSchedule.Next(truncated.Add(-time.Minute)).Equal(truncated)
}

func (r *Rule) String() string {
	s := fmt.Sprintf("rule[%d] %s->%s (%s, priority %d", r.Index, r.FromMode, r.ToMode, r.Type, r.Priority)
	if r.atExpr != "" {
		s += fmt.Sprintf(", at %q", r.atExpr)
	}
	return s + ")"
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
