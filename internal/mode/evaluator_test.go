package mode

import (
	"testing"
	"time"

	"github.com/kborowski/pivot/internal/config"
	"github.com/kborowski/pivot/internal/inputs"
)

func evalFixture(t *testing.T, rules []config.RuleConfig) *Evaluator {
	t.Helper()
	cfg := twoModeConfig()
	cfg.TransitionRules = rules
	reg, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewEvaluator(reg, NewMatcher(cfg.TriggerMatching))
}

func batch(texts ...string) []inputs.Token {
	now := time.Now()
	out := make([]inputs.Token, len(texts))
	for i, s := range texts {
		out[i] = inputs.Token{Text: s, ReceivedAt: now.Add(time.Duration(i) * time.Millisecond)}
	}
	return out
}

func TestEvaluateKeywordMatch(t *testing.T) {
	e := evalFixture(t, []config.RuleConfig{
		{FromMode: "welcome", ToMode: "conversation", TransitionType: config.TransitionInputTriggered,
			TriggerKeywords: []string{"chat"}, Priority: 2},
	})

	now := time.Now()
	cands := e.Evaluate("welcome", batch("hum", "let's chat"), now, now)
	if len(cands) != 1 {
		t.Fatalf("candidates = %d, want 1", len(cands))
	}
	if cands[0].Trigger != "chat" {
		t.Errorf("trigger = %q, want chat", cands[0].Trigger)
	}
}

func TestEvaluateFromModeFilter(t *testing.T) {
	e := evalFixture(t, []config.RuleConfig{
		{FromMode: "welcome", ToMode: "conversation", TransitionType: config.TransitionInputTriggered,
			TriggerKeywords: []string{"chat"}, Priority: 1},
	})

	now := time.Now()
	if cands := e.Evaluate("conversation", batch("let's chat"), now, now); len(cands) != 0 {
		t.Fatalf("rule fired from wrong mode: %v", cands)
	}
}

func TestEvaluateWildcardAppliesFromAnyMode(t *testing.T) {
	e := evalFixture(t, []config.RuleConfig{
		{FromMode: "*", ToMode: "welcome", TransitionType: config.TransitionInputTriggered,
			TriggerKeywords: []string{"reset"}, Priority: 5},
	})

	now := time.Now()
	for _, current := range []string{"welcome", "conversation"} {
		if cands := e.Evaluate(current, batch("reset please"), now, now); len(cands) != 1 {
			t.Errorf("wildcard rule not candidate from %q", current)
		}
	}
}

func TestEvaluateManualRulesExcluded(t *testing.T) {
	e := evalFixture(t, []config.RuleConfig{
		{FromMode: "welcome", ToMode: "conversation", TransitionType: config.TransitionManual, Priority: 9},
	})

	now := time.Now()
	if cands := e.Evaluate("welcome", batch("conversation"), now, now); len(cands) != 0 {
		t.Fatalf("manual rule must never fire spontaneously: %v", cands)
	}
}

func TestEvaluateDropsMalformedTokens(t *testing.T) {
	e := evalFixture(t, []config.RuleConfig{
		{FromMode: "welcome", ToMode: "conversation", TransitionType: config.TransitionInputTriggered,
			TriggerKeywords: []string{"chat"}, Priority: 1},
	})

	now := time.Now()
	toks := []inputs.Token{{Text: "   "}, {Text: ""}, {Text: "chat", ReceivedAt: now}}
	if cands := e.Evaluate("welcome", toks, now, now); len(cands) != 1 {
		t.Fatalf("malformed tokens should be skipped, not abort: %d candidates", len(cands))
	}
}

func TestEvaluateDwellTimeout(t *testing.T) {
	e := evalFixture(t, []config.RuleConfig{
		{FromMode: "conversation", ToMode: "welcome", TransitionType: config.TransitionTimeBased,
			TimeoutSeconds: 10, Priority: 1},
	})

	entered := time.Now()

	if cands := e.Evaluate("conversation", nil, entered.Add(5*time.Second), entered); len(cands) != 0 {
		t.Error("dwell rule fired before timeout")
	}
	cands := e.Evaluate("conversation", nil, entered.Add(10*time.Second), entered)
	if len(cands) != 1 || cands[0].Trigger != "timeout" {
		t.Fatalf("dwell rule did not fire at timeout: %v", cands)
	}
}

func TestEvaluateModeDwellFallback(t *testing.T) {
	cfg := twoModeConfig()
	m := cfg.Modes["welcome"]
	m.TimeoutSeconds = 10
	cfg.Modes["welcome"] = m
	cfg.TransitionRules = []config.RuleConfig{
		// No timeout of its own: inherits the from-mode's dwell.
		{FromMode: "welcome", ToMode: "conversation", TransitionType: config.TransitionTimeBased, Priority: 1},
	}
	reg, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	e := NewEvaluator(reg, NewMatcher(cfg.TriggerMatching))

	entered := time.Now()

	if cands := e.Evaluate("welcome", nil, entered.Add(5*time.Second), entered); len(cands) != 0 {
		t.Error("bare time rule fired before the mode's dwell elapsed")
	}
	cands := e.Evaluate("welcome", nil, entered.Add(10*time.Second), entered)
	if len(cands) != 1 || cands[0].Trigger != "timeout" {
		t.Fatalf("bare time rule did not inherit the mode dwell: %v", cands)
	}
}

func TestEvaluateWildcardDwellOnlyFromTimedModes(t *testing.T) {
	cfg := twoModeConfig()
	m := cfg.Modes["conversation"]
	m.TimeoutSeconds = 10
	cfg.Modes["conversation"] = m
	cfg.TransitionRules = []config.RuleConfig{
		{FromMode: config.Wildcard, ToMode: "welcome", TransitionType: config.TransitionTimeBased, Priority: 1},
	}
	reg, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	e := NewEvaluator(reg, NewMatcher(cfg.TriggerMatching))

	entered := time.Now()
	long := entered.Add(time.Hour)

	if cands := e.Evaluate("conversation", nil, long, entered); len(cands) != 1 {
		t.Errorf("wildcard rule silent from a mode with a dwell: %v", cands)
	}
	// welcome carries no dwell, so the wildcard rule never fires from it.
	if cands := e.Evaluate("welcome", nil, long, entered); len(cands) != 0 {
		t.Errorf("wildcard rule fired from a mode without a dwell: %v", cands)
	}
}

func TestEvaluateContextAwareNeverFires(t *testing.T) {
	cfg := twoModeConfig()
	cfg.TransitionRules = []config.RuleConfig{
		{FromMode: "welcome", ToMode: "conversation", TransitionType: config.TransitionContextAware,
			TriggerKeywords: []string{"chat"}, Priority: 9},
	}
	reg, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("context_aware rule rejected at load: %v", err)
	}
	e := NewEvaluator(reg, NewMatcher(cfg.TriggerMatching))

	entered := time.Now()
	if cands := e.Evaluate("welcome", batch("let's chat"), entered.Add(time.Hour), entered); len(cands) != 0 {
		t.Errorf("context_aware rule produced candidates: %v", cands)
	}
}

func TestEvaluateCronSchedule(t *testing.T) {
	e := evalFixture(t, []config.RuleConfig{
		{FromMode: "*", ToMode: "welcome", TransitionType: config.TransitionTimeBased,
			AtSchedule: "30 21 * * *", Priority: 1},
	})

	entered := time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC)

	at := time.Date(2026, 3, 14, 21, 30, 12, 0, time.UTC)
	cands := e.Evaluate("conversation", nil, at, entered)
	if len(cands) != 1 || cands[0].Trigger != "schedule" {
		t.Fatalf("cron rule did not fire inside its window: %v", cands)
	}

	off := time.Date(2026, 3, 14, 21, 31, 0, 0, time.UTC)
	if cands := e.Evaluate("conversation", nil, off, entered); len(cands) != 0 {
		t.Fatalf("cron rule fired outside its window: %v", cands)
	}
}
