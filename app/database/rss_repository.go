package database

import (
	"context"
	"fmt"
	"time"
)

const crawlTimeLayout = "15:04"

type FeedSource struct {
	ID   string
	Name string
	URL  string
}

// StoreFeedEntries writes one crawl's feed entries into the rss database of
// date, creating it when missing. Entries already stored for a feed (same
// url) get their last crawl time and crawl count bumped.
func (r *ItemRepository) StoreFeedEntries(ctx context.Context, date string, crawledAt time.Time, feeds []FeedSource, entries []FeedEntry) (int, error) {
	db, err := NewConnection(r.DBPath(KindRSS, date))
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if _, _, err := RunMigrations(db, SchemaRSS); err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, feed := range feeds {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rss_feeds (id, name, feed_url)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				feed_url = excluded.feed_url,
				updated_at = CURRENT_TIMESTAMP
		`, feed.ID, feed.Name, feed.URL)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert feed %s: %w", feed.ID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rss_items (title, feed_id, url, published_at, summary, author, first_crawl_time, last_crawl_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url, feed_id) DO UPDATE SET
			title = excluded.title,
			last_crawl_time = excluded.last_crawl_time,
			crawl_count = rss_items.crawl_count + 1,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare item upsert: %w", err)
	}
	defer stmt.Close()

	crawlTime := crawledAt.In(r.loc).Format(crawlTimeLayout)
	stored := 0
	for _, entry := range entries {
		if entry.Title == "" || entry.URL == "" {
			continue
		}
		var published any
		if entry.PublishedAt != nil {
			published = entry.PublishedAt.In(r.loc).Format(time.RFC3339)
		}
		_, err := stmt.ExecContext(ctx, entry.Title, entry.FeedID, entry.URL, published,
			entry.Summary, entry.Author, crawlTime, crawlTime)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert item %s: %w", entry.URL, err)
		}
		stored++
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rss_crawl_records (crawl_time, total_items)
		VALUES (?, ?)
		ON CONFLICT(crawl_time) DO UPDATE SET total_items = excluded.total_items
	`, crawlTime, stored)
	if err != nil {
		return 0, fmt.Errorf("failed to record crawl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return stored, nil
}
