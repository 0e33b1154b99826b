package mode

// Arbitrate picks the single winning transition among candidates, or nil.
// eligible is a cooldown snapshot: candidates it rejects are silently
// excluded. Selection over the rest:
//
//  1. highest priority,
//  2. exact from_mode beats wildcard (specificity),
//  3. earliest declaration wins.
//
// Pure and deterministic: same inputs, same (non-)result.
func Arbitrate(candidates []Candidate, eligible func(*Rule) bool) *Candidate {
	var winner *Candidate
	for i := range candidates {
		c := &candidates[i]
		if !eligible(c.Rule) {
			continue
		}
		if winner == nil || beats(c.Rule, winner.Rule) {
			winner = c
		}
	}
	return winner
}

// beats reports whether a should replace the current best b.
func beats(a, b *Rule) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.Wildcard() != b.Wildcard() {
		return !a.Wildcard()
	}
	return a.Index < b.Index
}
