package database

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var ErrDataNotFound = errors.New("no data for date")

var (
	fullTimeLayouts = []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		time.RFC1123Z,
		time.RFC1123,
	}
	clockLayouts = []string{"15:04:05", "15:04", "15-04"}
)

// ItemRepository reads the crawler's daily databases laid out as
// {dataDir}/{news|rss}/{YYYY-MM-DD}.db.
type ItemRepository struct {
	dataDir string
	loc     *time.Location
}

func NewItemRepository(dataDir string, loc *time.Location) *ItemRepository {
	if loc == nil {
		loc = time.Local
	}
	return &ItemRepository{dataDir: dataDir, loc: loc}
}

func (r *ItemRepository) DBPath(kind, date string) string {
	return filepath.Join(r.dataDir, kind, date+".db")
}

// QueryItems returns the items of one kind stored for date, optionally
// limited to the given source IDs. A missing database or table is reported
// as ErrDataNotFound.
func (r *ItemRepository) QueryItems(ctx context.Context, date, kind string, sourceIDs []string) ([]RawItem, error) {
	table := "news_items"
	if kind == KindRSS {
		table = "rss_items"
	} else if kind != KindNews {
		return nil, fmt.Errorf("unknown item kind %q", kind)
	}

	path := r.DBPath(kind, date)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s %s", ErrDataNotFound, kind, date)
		}
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}

	db, err := OpenReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	exists, err := tableExists(ctx, db, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s %s has no %s table", ErrDataNotFound, kind, date, table)
	}

	if kind == KindRSS {
		return r.queryRSS(ctx, db, date, sourceIDs)
	}
	return r.queryNews(ctx, db, date, sourceIDs)
}

func (r *ItemRepository) queryNews(ctx context.Context, db *DB, date string, platformIDs []string) ([]RawItem, error) {
	query := `
		SELECT n.id, n.platform_id, COALESCE(p.name, ''), n.title,
		       n.rank, COALESCE(n.url, ''), COALESCE(n.mobile_url, ''),
		       COALESCE(n.first_crawl_time, ''), COALESCE(n.last_crawl_time, ''),
		       COALESCE(n.crawl_count, 1)
		FROM news_items n
		LEFT JOIN platforms p ON n.platform_id = p.id`
	where, args := inClause("n.platform_id", platformIDs)
	rows, err := db.QueryContext(ctx, query+where+" ORDER BY n.id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query news items: %w", err)
	}
	defer rows.Close()

	var items []RawItem
	for rows.Next() {
		var (
			id          int64
			rank        sql.NullInt64
			first, last string
			item        RawItem
		)
		err := rows.Scan(&id, &item.SourceID, &item.SourceName, &item.Title,
			&rank, &item.URL, &item.MobileURL, &first, &last, &item.CrawlCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan news item row: %w", err)
		}

		item.ID = KindNews + ":" + strconv.FormatInt(id, 10)
		item.Kind = KindNews
		item.SourceName = cmp.Or(item.SourceName, item.SourceID)
		if rank.Valid && rank.Int64 > 0 {
			value := int(rank.Int64)
			item.Rank = &value
		}
		item.FirstSeenAt, item.LastSeenAt = r.seenTimes(date, first, last)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating news item rows: %w", err)
	}

	history, err := r.rankHistory(ctx, db)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if ranks, ok := history[items[i].ID]; ok {
			items[i].Ranks = ranks
		} else if items[i].Rank != nil {
			items[i].Ranks = []int{*items[i].Rank}
		}
	}

	return items, nil
}

func (r *ItemRepository) rankHistory(ctx context.Context, db *DB) (map[string][]int, error) {
	exists, err := tableExists(ctx, db, "rank_history")
	if err != nil || !exists {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT news_item_id, rank FROM rank_history
		ORDER BY news_item_id, crawl_time
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rank history: %w", err)
	}
	defer rows.Close()

	history := make(map[string][]int)
	for rows.Next() {
		var id, rank int64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan rank history row: %w", err)
		}
		key := KindNews + ":" + strconv.FormatInt(id, 10)
		history[key] = append(history[key], int(rank))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rank history rows: %w", err)
	}

	return history, nil
}

func (r *ItemRepository) queryRSS(ctx context.Context, db *DB, date string, feedIDs []string) ([]RawItem, error) {
	query := `
		SELECT i.id, i.feed_id, COALESCE(f.name, ''), i.title,
		       COALESCE(i.url, ''), COALESCE(i.published_at, ''),
		       COALESCE(i.summary, ''), COALESCE(i.author, ''),
		       COALESCE(i.first_crawl_time, ''), COALESCE(i.last_crawl_time, ''),
		       COALESCE(i.crawl_count, 1)
		FROM rss_items i
		LEFT JOIN rss_feeds f ON i.feed_id = f.id`
	where, args := inClause("i.feed_id", feedIDs)
	rows, err := db.QueryContext(ctx, query+where+" ORDER BY i.published_at DESC, i.id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rss items: %w", err)
	}
	defer rows.Close()

	var items []RawItem
	for rows.Next() {
		var (
			id                     int64
			published, first, last string
			item                   RawItem
		)
		err := rows.Scan(&id, &item.SourceID, &item.SourceName, &item.Title,
			&item.URL, &published, &item.Summary, &item.Author,
			&first, &last, &item.CrawlCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rss item row: %w", err)
		}

		item.ID = KindRSS + ":" + strconv.FormatInt(id, 10)
		item.Kind = KindRSS
		item.SourceName = cmp.Or(item.SourceName, item.SourceID)
		if t, ok := parseTimestamp(published, r.loc); ok {
			item.PublishedAt = &t
		}
		item.FirstSeenAt, item.LastSeenAt = r.seenTimes(date, first, last)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rss item rows: %w", err)
	}

	return items, nil
}

// FreshnessKey returns the newest modification time, in nanoseconds, of the
// databases stored for date. It is zero when none exist.
func (r *ItemRepository) FreshnessKey(date string) (int64, error) {
	var newest int64
	for _, kind := range []string{KindNews, KindRSS} {
		base := r.DBPath(kind, date)
		for _, path := range []string{base, base + "-wal"} {
			info, err := os.Stat(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return 0, fmt.Errorf("failed to stat database: %w", err)
			}
			newest = max(newest, info.ModTime().UnixNano())
		}
	}
	return newest, nil
}

// AvailableDates lists the dates with a database of the given kind, newest first.
func (r *ItemRepository) AvailableDates(kind string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(r.dataDir, kind, "*.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to find database files: %w", err)
	}

	var dates []string
	for _, file := range files {
		date := strings.TrimSuffix(filepath.Base(file), ".db")
		if _, err := time.Parse(DateLayout, date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	slices.Sort(dates)
	slices.Reverse(dates)
	return dates, nil
}

func (r *ItemRepository) seenTimes(date, first, last string) (time.Time, time.Time) {
	firstSeen, okFirst := parseCrawlTime(date, first, r.loc)
	lastSeen, okLast := parseCrawlTime(date, last, r.loc)

	switch {
	case !okFirst && !okLast:
		day, err := time.ParseInLocation(DateLayout, date, r.loc)
		if err != nil {
			return time.Time{}, time.Time{}
		}
		return day, day
	case !okFirst:
		firstSeen = lastSeen
	case !okLast:
		lastSeen = firstSeen
	}
	return firstSeen, lastSeen
}

// parseCrawlTime accepts full timestamps as well as bare clock times, which
// are taken to be on date.
func parseCrawlTime(date, value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, ok := parseTimestamp(value, loc); ok {
		return t, true
	}
	for _, layout := range clockLayouts {
		if t, err := time.ParseInLocation(DateLayout+" "+layout, date+" "+value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range fullTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func tableExists(ctx context.Context, db *DB, table string) (bool, error) {
	var name string
	err := db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return true, nil
}

func inClause(column string, values []string) (string, []any) {
	if len(values) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return " WHERE " + column + " IN (" + strings.Join(placeholders, ",") + ")", args
}
