package feed

import (
	"time"
)

type Metadata struct {
	Title       string
	Link        string
	Description string
	Language    string
}

type Item struct {
	GUID        string
	Title       string
	Link        string
	Summary     string
	PublishedAt *time.Time
	Author      string
	Categories  []string
}
