package topic

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
)

const (
	SectionGlobalFilter = "GLOBAL_FILTER"
	SectionWordGroups   = "WORD_GROUPS"
)

var ErrConfigNotFound = errors.New("word group config not found")

var (
	blockSeparator = regexp.MustCompile(`\n\s*\n`)
	aliasSeparator = regexp.MustCompile(`\s*=>\s*`)
	regexToken     = regexp.MustCompile(`^/(.+)/([gimsux]*)$`)
)

// LoadFile reads and parses the word-group file at path. A missing file is
// reported as ErrConfigNotFound.
func LoadFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read word group config: %w", err)
	}
	return Parse(string(data)), nil
}

// Parse turns configuration text into rules. It never fails: malformed blocks
// are dropped and invalid regexes degrade to literal terms.
func Parse(text string) *Rules {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	rules := &Rules{}
	section := SectionWordGroups

	for _, block := range blockSeparator.Split(text, -1) {
		lines := splitLines(block)
		if len(lines) == 0 {
			continue
		}

		if name, ok := sectionHeader(lines[0]); ok {
			section = name
			lines = lines[1:]
		}

		if section == SectionGlobalFilter {
			for _, line := range lines {
				if strings.HasPrefix(line, "!") || strings.HasPrefix(line, "+") ||
					strings.HasPrefix(line, "@") || strings.HasPrefix(line, "#") {
					continue
				}
				rules.GlobalFilters = append(rules.GlobalFilters, line)
			}
			continue
		}

		group, filters := parseBlock(lines)
		if group == nil {
			rules.FilterWords = append(rules.FilterWords, filters...)
			continue
		}
		rules.Groups = append(rules.Groups, *group)
	}

	return rules
}

func splitLines(block string) []string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func sectionHeader(line string) (string, bool) {
	if len(line) < 2 || !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return "", false
	}
	name := strings.ToUpper(strings.TrimSpace(line[1 : len(line)-1]))
	if name != SectionGlobalFilter && name != SectionWordGroups {
		return "", false
	}
	return name, true
}

type blockBuilder struct {
	name     string
	category string
	maxCount int
	required []Term
	normal   []Term
	filters  []Term
}

// parseBlock builds one word group. When the block has no required and no
// normal terms the group is nil and its filter terms are returned on their own.
func parseBlock(lines []string) (*WordGroup, []Term) {
	b := &blockBuilder{category: Uncategorized}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "#"):
			b.setName(strings.TrimSpace(line[1:]))
		case strings.HasPrefix(line, "@"):
			if count, err := strconv.Atoi(strings.TrimSpace(line[1:])); err == nil && count > 0 {
				b.maxCount = count
			}
		case shouldSplit(line):
			for _, part := range strings.Split(line, "|") {
				for _, token := range strings.Split(part, ",") {
					b.addToken(token)
				}
			}
		default:
			b.addToken(line)
		}
	}

	if len(b.required) == 0 && len(b.normal) == 0 {
		return nil, b.filters
	}

	key := b.name
	if key == "" {
		if len(b.normal) > 0 {
			key = b.normal[0].Display()
		} else {
			key = b.required[0].Display()
		}
	}

	return &WordGroup{
		Key:      key,
		Category: b.category,
		Required: b.required,
		Normal:   b.normal,
		Filters:  b.filters,
		MaxCount: b.maxCount,
	}, nil
}

func (b *blockBuilder) setName(namePart string) {
	if name, category, ok := strings.Cut(namePart, " @"); ok {
		b.name = strings.TrimSpace(name)
		if category = strings.TrimSpace(category); category != "" {
			b.category = category
		}
		return
	}
	b.name = namePart
}

func (b *blockBuilder) addToken(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}

	switch {
	case strings.HasPrefix(token, "!"):
		b.filters = appendTerm(b.filters, token[1:])
	case strings.HasSuffix(token, "!"):
		b.filters = appendTerm(b.filters, token[:len(token)-1])
	case strings.HasPrefix(token, "+"):
		b.required = appendTerm(b.required, token[1:])
	case strings.HasSuffix(token, "+"):
		b.required = appendTerm(b.required, token[:len(token)-1])
	default:
		b.normal = appendTerm(b.normal, token)
	}
}

func appendTerm(terms []Term, token string) []Term {
	if token = strings.TrimSpace(token); token == "" {
		return terms
	}
	return append(terms, ParseTerm(token))
}

// shouldSplit reports whether a line holds several "|" or "," separated
// tokens. A line that is a single regex token is kept whole.
func shouldSplit(line string) bool {
	if !strings.ContainsAny(line, "|,") {
		return false
	}
	bare := strings.TrimSpace(strings.Trim(line, "+!"))
	if word, _, ok := strings.Cut(bare, "=>"); ok {
		bare = strings.TrimSpace(word)
	}
	return !regexToken.MatchString(bare)
}

// ParseTerm parses a single token: "word", "word => alias", "/pattern/flags"
// or "/pattern/flags => alias".
func ParseTerm(token string) Term {
	word := strings.TrimSpace(token)
	alias := ""
	if aliasSeparator.MatchString(word) {
		parts := aliasSeparator.Split(word, 2)
		word = strings.TrimSpace(parts[0])
		if len(parts) > 1 {
			alias = strings.TrimSpace(parts[1])
		}
	}

	if m := regexToken.FindStringSubmatch(word); m != nil {
		re, err := regexp.Compile("(?i)" + m[1])
		if err == nil {
			return RegexTerm{Pattern: m[1], Alias: alias, re: re}
		}
		slog.Debug("Invalid regex term, matching as literal", "token", word, "error", err)
	}

	return LiteralTerm{Literal: word, Alias: alias}
}
