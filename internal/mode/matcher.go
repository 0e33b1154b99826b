package mode

import (
	"strings"
	"unicode"

	"github.com/kborowski/pivot/internal/config"
)

// Matcher decides whether an input token satisfies a rule's trigger keywords.
// Matching is case-insensitive; granularity and keyword combination are
// configurable (default: substring containment, any keyword suffices).
type Matcher struct {
	strategy config.MatchStrategy
	combine  config.MatchCombine
}

// NewMatcher builds a Matcher from the trigger_matching config section.
func NewMatcher(mc config.MatchingConfig) Matcher {
	m := Matcher{strategy: mc.Strategy, combine: mc.Combine}
	if m.strategy == "" {
		m.strategy = config.MatchSubstring
	}
	if m.combine == "" {
		m.combine = config.CombineAny
	}
	return m
}

// Match reports whether text satisfies the keyword set under the configured
// strategy and combination policy.
func (m Matcher) Match(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	text = strings.ToLower(text)

	for _, kw := range keywords {
		hit := m.matchOne(text, strings.ToLower(strings.TrimSpace(kw)))
		if hit && m.combine == config.CombineAny {
			return true
		}
		if !hit && m.combine == config.CombineAll {
			return false
		}
	}
	return m.combine == config.CombineAll
}

// MatchedKeyword returns the first keyword the text satisfies, for reporting.
func (m Matcher) MatchedKeyword(text string, keywords []string) (string, bool) {
	text = strings.ToLower(text)
	for _, kw := range keywords {
		if m.matchOne(text, strings.ToLower(strings.TrimSpace(kw))) {
			return kw, true
		}
	}
	return "", false
}

func (m Matcher) matchOne(text, keyword string) bool {
	if keyword == "" {
		return false
	}
	switch m.strategy {
	case config.MatchWord:
		return containsWords(text, keyword)
	default:
		return strings.Contains(text, keyword)
	}
}

// containsWords reports whether the keyword's words appear as a consecutive
// run of whole words inside the text.
func containsWords(text, keyword string) bool {
	split := func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) }
	words := strings.FieldsFunc(text, split)
	target := strings.FieldsFunc(keyword, split)
	if len(target) == 0 || len(words) < len(target) {
		return false
	}

outer:
	for i := 0; i+len(target) <= len(words); i++ {
		for j, t := range target {
			if words[i+j] != t {
				continue outer
			}
		}
		return true
	}
	return false
}
