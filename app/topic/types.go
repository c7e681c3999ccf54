package topic

import (
	"regexp"
)

// Uncategorized is the category of a group whose name line carries no "@category".
const Uncategorized = "uncategorized"

// Term is a matchable unit of the word-group grammar. It is either a
// LiteralTerm or a RegexTerm.
type Term interface {
	// Text returns the literal or the regex source. Terms are identified by it.
	Text() string
	// Display returns the alias when set, otherwise Text.
	Display() string
	isTerm()
}

type LiteralTerm struct {
	Literal string
	Alias   string
}

func (t LiteralTerm) Text() string { return t.Literal }

func (t LiteralTerm) Display() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Literal
}

func (LiteralTerm) isTerm() {}

type RegexTerm struct {
	Pattern string
	Alias   string
	re      *regexp.Regexp
}

func (t RegexTerm) Text() string { return t.Pattern }

func (t RegexTerm) Display() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Pattern
}

func (RegexTerm) isTerm() {}

// Regexp returns the compiled, case-insensitive expression.
func (t RegexTerm) Regexp() *regexp.Regexp { return t.re }

type WordGroup struct {
	Key      string
	Category string
	Required []Term
	Normal   []Term
	Filters  []Term
	MaxCount int
}

// Keywords returns the display strings of the normal and required terms,
// deduplicated, in that order.
func (g *WordGroup) Keywords() []string {
	keywords := make([]string, 0, len(g.Normal)+len(g.Required))
	seen := make(map[string]bool, cap(keywords))
	for _, terms := range [][]Term{g.Normal, g.Required} {
		for _, term := range terms {
			display := term.Display()
			if seen[display] {
				continue
			}
			seen[display] = true
			keywords = append(keywords, display)
		}
	}
	return keywords
}

// Rules is the parsed form of a word-group configuration text.
type Rules struct {
	Groups        []WordGroup
	FilterWords   []Term
	GlobalFilters []string
}

func (r *Rules) Empty() bool {
	return r == nil || len(r.Groups) == 0
}

type MatchResult struct {
	Topic   string   `json:"topic"`
	Matched []string `json:"matched"`
}
