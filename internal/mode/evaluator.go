package mode

import (
	"time"

	"github.com/kborowski/pivot/internal/config"
	"github.com/kborowski/pivot/internal/inputs"
)

// Candidate is a rule whose applicability condition is satisfied this tick,
// together with what triggered it.
type Candidate struct {
	Rule    *Rule
	Trigger string // matched keyword for input rules, "timeout"/"schedule" for time rules
}

// Evaluator converts a tick's token batch into the set of candidate rules.
// Manual rules never appear in its output; they fire only through the gate.
type Evaluator struct {
	reg     *Registry
	matcher Matcher
}

// NewEvaluator builds the trigger evaluator for a registry.
func NewEvaluator(reg *Registry, matcher Matcher) *Evaluator {
	return &Evaluator{reg: reg, matcher: matcher}
}

// Evaluate returns, in declaration order, every rule satisfied this tick.
// current is the active mode, batch the ordered tokens since the last tick,
// now the tick instant, and enteredAt when the active mode was entered
// (for dwell timeouts). Malformed tokens are dropped, never fatal.
func (e *Evaluator) Evaluate(current string, batch []inputs.Token, now, enteredAt time.Time) []Candidate {
	var cands []Candidate
	for i := range e.reg.rules {
		rule := &e.reg.rules[i]
		if !rule.AppliesFrom(current) {
			continue
		}

		switch rule.Type {
		case config.TransitionInputTriggered:
			if kw, ok := e.matchBatch(rule, batch); ok {
				cands = append(cands, Candidate{Rule: rule, Trigger: kw})
			}
		case config.TransitionTimeBased:
			dwell := rule.DwellTimeout
			if dwell == 0 && rule.AtSchedule == nil {
				// Bare time rule: inherit the current mode's dwell timeout.
				dwell = e.reg.modes[current].DwellTimeout
			}
			if dwell > 0 && now.Sub(enteredAt) >= dwell {
				cands = append(cands, Candidate{Rule: rule, Trigger: "timeout"})
			} else if rule.ScheduleMatches(now) {
				cands = append(cands, Candidate{Rule: rule, Trigger: "schedule"})
			}
		}
	}
	return cands
}

func (e *Evaluator) matchBatch(rule *Rule, batch []inputs.Token) (string, bool) {
	for _, tok := range batch {
		if !tok.Valid() {
			continue
		}
		if !e.matcher.Match(tok.Text, rule.Keywords) {
			continue
		}
		if kw, ok := e.matcher.MatchedKeyword(tok.Text, rule.Keywords); ok {
			return kw, true
		}
		return "", true
	}
	return "", false
}
