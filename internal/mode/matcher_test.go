package mode

import (
	"testing"

	"github.com/kborowski/pivot/internal/config"
)

func TestMatcherSubstringAny(t *testing.T) {
	m := NewMatcher(config.MatchingConfig{})

	tests := []struct {
		text     string
		keywords []string
		want     bool
	}{
		{"let's chat", []string{"chat"}, true},
		{"LET'S CHAT NOW", []string{"chat"}, true}, // case-insensitive
		{"let's chat", []string{"CHAT"}, true},
		{"chatting away", []string{"chat"}, true}, // substring containment
		{"hello there", []string{"chat", "talk"}, false},
		{"want to talk?", []string{"chat", "talk"}, true}, // any keyword suffices
		{"anything", nil, false},
		{"", []string{"chat"}, false},
	}

	for _, tt := range tests {
		if got := m.Match(tt.text, tt.keywords); got != tt.want {
			t.Errorf("Match(%q, %v) = %v, want %v", tt.text, tt.keywords, got, tt.want)
		}
	}
}

func TestMatcherWordBoundary(t *testing.T) {
	m := NewMatcher(config.MatchingConfig{Strategy: config.MatchWord})

	tests := []struct {
		text     string
		keywords []string
		want     bool
	}{
		{"let's chat now", []string{"chat"}, true},
		{"chatting away", []string{"chat"}, false}, // not a whole word
		{"please follow me home", []string{"follow me"}, true},
		{"follow the me", []string{"follow me"}, false}, // words must be consecutive
		{"Reset, please!", []string{"reset"}, true},     // punctuation is a boundary
	}

	for _, tt := range tests {
		if got := m.Match(tt.text, tt.keywords); got != tt.want {
			t.Errorf("Match(%q, %v) = %v, want %v", tt.text, tt.keywords, got, tt.want)
		}
	}
}

func TestMatcherCombineAll(t *testing.T) {
	m := NewMatcher(config.MatchingConfig{Combine: config.CombineAll})

	if !m.Match("emergency: fire alarm", []string{"emergency", "fire"}) {
		t.Error("all keywords present, want match")
	}
	if m.Match("emergency drill", []string{"emergency", "fire"}) {
		t.Error("one keyword missing, want no match")
	}
}

func TestMatchedKeyword(t *testing.T) {
	m := NewMatcher(config.MatchingConfig{})
	kw, ok := m.MatchedKeyword("let's talk about it", []string{"chat", "talk"})
	if !ok || kw != "talk" {
		t.Errorf("MatchedKeyword = %q, %v", kw, ok)
	}
}
