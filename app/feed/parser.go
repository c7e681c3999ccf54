package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

const maxSummaryRunes = 500

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses an RSS, Atom or JSON feed. Items without a title or link are
// skipped.
func (p *Parser) Run(data []byte) (*Metadata, []Item, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
	}

	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		normalized := p.normalizeItem(item)
		if normalized.Title == "" || normalized.Link == "" {
			continue
		}
		items = append(items, normalized)
	}

	return metadata, items, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	normalized := Item{
		GUID:       cmp.Or(item.GUID, item.Link),
		Title:      strings.TrimSpace(item.Title),
		Link:       strings.TrimSpace(item.Link),
		Summary:    truncateRunes(strings.TrimSpace(item.Description), maxSummaryRunes),
		Categories: item.Categories,
	}

	switch {
	case item.PublishedParsed != nil:
		normalized.PublishedAt = item.PublishedParsed
	case item.UpdatedParsed != nil:
		normalized.PublishedAt = item.UpdatedParsed
	}

	if len(item.Authors) > 0 && item.Authors[0] != nil {
		normalized.Author = p.formatAuthor(item.Authors[0].Name, item.Authors[0].Email)
	} else if item.Author != nil {
		normalized.Author = p.formatAuthor(item.Author.Name, item.Author.Email)
	}

	return normalized
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	}
	return cmp.Or(name, email)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
