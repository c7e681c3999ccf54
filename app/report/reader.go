package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/trend-comb/app/database"
)

const generatedLabel = "生成时间"

var generatedLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"01-02 15:04",
}

// Reader reads the headlines out of the crawler's HTML report. The report
// only ever holds the current day, so the date argument of QueryItems is
// ignored.
type Reader struct {
	path string
	loc  *time.Location
}

func NewReader(path string, loc *time.Location) *Reader {
	if loc == nil {
		loc = time.Local
	}
	return &Reader{path: path, loc: loc}
}

func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) QueryItems(ctx context.Context, date, kind string, sourceIDs []string) ([]database.RawItem, error) {
	if kind != database.KindNews {
		return nil, database.ErrDataNotFound
	}

	file, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, database.ErrDataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat report: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	generatedAt, ok := r.generatedAt(doc, info.ModTime())
	if !ok {
		generatedAt = info.ModTime().In(r.loc)
	}

	var items []database.RawItem
	seen := make(map[string]bool)

	doc.Find(".word-group").Each(func(_ int, group *goquery.Selection) {
		group.Find(".news-item").Each(func(position int, news *goquery.Selection) {
			source := strings.TrimSpace(news.Find(".source-name").First().Text())
			link := news.Find("a.news-link").First()
			title := strings.TrimSpace(link.Text())
			if title == "" {
				return
			}
			href, _ := link.Attr("href")

			if len(sourceIDs) > 0 && !slices.Contains(sourceIDs, source) {
				return
			}

			key := source + "\x00" + title
			if seen[key] {
				return
			}
			seen[key] = true

			rank := position + 1
			item := database.RawItem{
				ID:         fmt.Sprintf("report:%d", len(items)+1),
				Kind:       database.KindNews,
				SourceID:   source,
				SourceName: source,
				Title:      title,
				URL:        strings.TrimSpace(href),
				Rank:       &rank,
				Ranks:      []int{rank},
				LastSeenAt: generatedAt,
				CrawlCount: 1,
			}
			// A "new" item was first seen when the report was generated, so it
			// is marked new only while the report is under an hour old.
			if news.HasClass("new") {
				item.FirstSeenAt = generatedAt
			}
			items = append(items, item)
		})
	})

	return items, nil
}

// generatedAt reads the generation time printed in the report header.
func (r *Reader) generatedAt(doc *goquery.Document, modTime time.Time) (time.Time, bool) {
	var value string
	doc.Find(".info-label").EachWithBreak(func(_ int, label *goquery.Selection) bool {
		if strings.TrimSpace(label.Text()) != generatedLabel {
			return true
		}
		value = strings.TrimSpace(label.NextFiltered(".info-value").Text())
		return false
	})
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range generatedLayouts {
		t, err := time.ParseInLocation(layout, value, r.loc)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = t.AddDate(modTime.In(r.loc).Year(), 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// FreshnessKey is the report's modification time.
func (r *Reader) FreshnessKey(date string) (int64, error) {
	info, err := os.Stat(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat report: %w", err)
	}
	return info.ModTime().UnixNano(), nil
}
