package topic

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

const (
	MatcherStandard = "standard"
	MatcherFallback = "fallback"
)

// TermMatcher folds titles and tests terms against folded text. The
// implementation is chosen once at startup.
type TermMatcher interface {
	Fold(s string) string
	Match(term Term, folded string) bool
}

// NewTermMatcher returns the matcher registered under name.
func NewTermMatcher(name string) (TermMatcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MatcherStandard:
		return NewStandardMatcher(), nil
	case MatcherFallback:
		return FallbackMatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown term matcher %q", name)
	}
}

// StandardMatcher applies Unicode case folding and width folding, so that
// full-width and half-width forms of the same letters compare equal.
type StandardMatcher struct{}

func NewStandardMatcher() *StandardMatcher {
	return &StandardMatcher{}
}

func (m *StandardMatcher) Fold(s string) string {
	// A cases.Caser keeps state between calls, so one is made per call.
	return width.Fold.String(cases.Fold().String(s))
}

func (m *StandardMatcher) Match(term Term, folded string) bool {
	return matchTerm(m, term, folded)
}

// FallbackMatcher folds with strings.ToLower only.
type FallbackMatcher struct{}

func (FallbackMatcher) Fold(s string) string {
	return strings.ToLower(s)
}

func (m FallbackMatcher) Match(term Term, folded string) bool {
	return matchTerm(m, term, folded)
}

func matchTerm(m TermMatcher, term Term, folded string) bool {
	switch t := term.(type) {
	case RegexTerm:
		if t.re == nil {
			return strings.Contains(folded, m.Fold(t.Pattern))
		}
		return t.re.MatchString(folded)
	case LiteralTerm:
		return t.Literal != "" && strings.Contains(folded, m.Fold(t.Literal))
	default:
		return false
	}
}
