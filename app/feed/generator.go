package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/trend-comb/app/aggregate"
)

type Generator struct {
	baseURL string
	version string
}

// NewGenerator returns a generator whose self links are rooted at baseURL.
func NewGenerator(baseURL, version string) *Generator {
	return &Generator{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
	}
}

// Run renders one topic bucket as an RSS 2.0 channel.
func (g *Generator) Run(bucket aggregate.TopicBucket, generatedAt time.Time) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", fmt.Sprintf("Trend-Comb: %s", bucket.Name), 4)
	g.writeElement(&buf, "link", g.baseURL, 4)

	description := fmt.Sprintf("Trending items matching %s", bucket.Name)
	if len(bucket.Keywords) > 0 {
		description = fmt.Sprintf("%s (%s)", description, strings.Join(bucket.Keywords, ", "))
	}
	g.writeElement(&buf, "description", description, 4)

	selfLink := fmt.Sprintf("%s/api/topics/%s/rss", g.baseURL, url.PathEscape(bucket.Name))
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(selfLink)))

	g.writeElement(&buf, "lastBuildDate", generatedAt.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Trend-Comb/%s", g.version), 4)
	if bucket.Category != "" {
		g.writeElement(&buf, "category", bucket.Category, 4)
	}

	for _, entry := range bucket.Items {
		g.writeItem(&buf, entry)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, entry aggregate.Entry) {
	buf.WriteString("    <item>\n")

	guid := cmp.Or(entry.URL, entry.ID)
	buf.WriteString(fmt.Sprintf("      <guid isPermaLink=\"%t\">", g.isURL(guid)))
	xml.EscapeText(buf, []byte(guid))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", entry.Title, 6)
	g.writeElement(buf, "link", cmp.Or(entry.URL, entry.MobileURL), 6)
	g.writeElement(buf, "description", cmp.Or(entry.Summary, entry.SourceName), 6)

	published := entry.FirstSeenAt
	if entry.PublishedAt != nil {
		published = *entry.PublishedAt
	}
	if !published.IsZero() {
		g.writeElement(buf, "pubDate", published.Format(time.RFC1123Z), 6)
	}

	g.writeElement(buf, "author", entry.Author, 6)
	g.writeElement(buf, "category", entry.SourceName, 6)

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
