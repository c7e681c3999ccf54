package topic

import "strings"

const maxMatchedTerms = 3

type Classifier struct {
	matcher TermMatcher
}

func NewClassifier(matcher TermMatcher) *Classifier {
	if matcher == nil {
		matcher = NewStandardMatcher()
	}
	return &Classifier{matcher: matcher}
}

// Match returns one result per word group the title belongs to, in group
// order. A global filter or a standalone filter word vetoes every group.
func (c *Classifier) Match(title string, rules *Rules) []MatchResult {
	if strings.TrimSpace(title) == "" || rules.Empty() {
		return nil
	}

	folded := c.matcher.Fold(title)

	for _, filter := range rules.GlobalFilters {
		if f := c.matcher.Fold(filter); f != "" && strings.Contains(folded, f) {
			return nil
		}
	}
	if c.anyMatch(rules.FilterWords, folded) {
		return nil
	}

	var results []MatchResult
	for i := range rules.Groups {
		if matched, ok := c.matchGroup(&rules.Groups[i], folded); ok {
			results = append(results, MatchResult{Topic: rules.Groups[i].Key, Matched: matched})
		}
	}
	return results
}

func (c *Classifier) matchGroup(group *WordGroup, folded string) ([]string, bool) {
	if c.anyMatch(group.Filters, folded) {
		return nil, false
	}

	for _, term := range group.Required {
		if !c.matcher.Match(term, folded) {
			return nil, false
		}
	}

	var normal []Term
	if len(group.Normal) > 0 {
		for _, term := range group.Normal {
			if c.matcher.Match(term, folded) {
				normal = append(normal, term)
			}
		}
		if len(normal) == 0 {
			return nil, false
		}
	}

	matched := make([]string, 0, maxMatchedTerms)
	seen := make(map[string]bool)
	for _, terms := range [][]Term{group.Required, normal} {
		for _, term := range terms {
			display := term.Display()
			if seen[display] {
				continue
			}
			seen[display] = true
			matched = append(matched, display)
		}
	}
	if len(matched) == 0 {
		return nil, false
	}
	if len(matched) > maxMatchedTerms {
		matched = matched[:maxMatchedTerms]
	}
	return matched, true
}

func (c *Classifier) anyMatch(terms []Term, folded string) bool {
	for _, term := range terms {
		if c.matcher.Match(term, folded) {
			return true
		}
	}
	return false
}
