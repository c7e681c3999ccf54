package database

import (
	"time"
)

const (
	KindNews = "news"
	KindRSS  = "rss"
)

// RawItem is one crawled headline as stored by the crawler. IDs are unique
// per kind and day.
type RawItem struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	SourceID    string     `json:"sourceId"`
	SourceName  string     `json:"sourceName"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	MobileURL   string     `json:"mobileUrl,omitempty"`
	Rank        *int       `json:"rank,omitempty"`
	Ranks       []int      `json:"ranks,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Author      string     `json:"author,omitempty"`
	FirstSeenAt time.Time  `json:"firstSeenAt"`
	LastSeenAt  time.Time  `json:"lastSeenAt"`
	CrawlCount  int        `json:"crawlCount"`
}

type SourceSetting struct {
	Kind     string
	ID       string
	Name     string
	Enabled  bool
	Position int
}

type TopicSetting struct {
	Name     string
	Enabled  bool
	Position int
}

// FeedEntry is a fetched feed item ready to be stored in the daily rss database.
type FeedEntry struct {
	FeedID      string
	Title       string
	URL         string
	PublishedAt *time.Time
	Summary     string
	Author      string
}
