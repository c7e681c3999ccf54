package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/trend-comb/app/database"
	"github.com/lysyi3m/trend-comb/app/feed"
	"github.com/lysyi3m/trend-comb/app/registry"
)

const defaultFeedConcurrency = 4

type RegistryProvider interface {
	Registry(ctx context.Context) (*registry.Registry, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type FeedStore interface {
	StoreFeedEntries(ctx context.Context, date string, crawledAt time.Time, feeds []database.FeedSource, entries []database.FeedEntry) (int, error)
}

// FeedRunner crawls the enabled RSS sources of the registry itself and
// writes them into the day's rss database.
type FeedRunner struct {
	registry    RegistryProvider
	fetcher     Fetcher
	parser      *feed.Parser
	store       FeedStore
	loc         *time.Location
	concurrency int
	now         func() time.Time
}

func NewFeedRunner(registry RegistryProvider, fetcher Fetcher, store FeedStore, loc *time.Location) *FeedRunner {
	if loc == nil {
		loc = time.Local
	}
	return &FeedRunner{
		registry:    registry,
		fetcher:     fetcher,
		parser:      feed.NewParser(),
		store:       store,
		loc:         loc,
		concurrency: defaultFeedConcurrency,
		now:         time.Now,
	}
}

func (r *FeedRunner) Run(ctx context.Context) (string, error) {
	reg, err := r.registry.Registry(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load registry: %w", err)
	}

	var sources []database.FeedSource
	for _, e := range reg.Enabled(registry.KindRSS) {
		if e.URL == "" {
			continue
		}
		sources = append(sources, database.FeedSource{ID: e.ID, Name: e.Name, URL: e.URL})
	}
	if len(sources) == 0 {
		return "no feeds configured", nil
	}

	var (
		mu      sync.Mutex
		entries []database.FeedEntry
		failed  int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, source := range sources {
		g.Go(func() error {
			feedEntries, err := r.fetchFeed(gctx, source)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("Failed to fetch feed", "feed", source.ID, "url", source.URL, "error", err)
				failed++
				return nil
			}
			entries = append(entries, feedEntries...)
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if failed == len(sources) {
		return "", fmt.Errorf("all %d feeds failed", failed)
	}

	now := r.now().In(r.loc)
	stored, err := r.store.StoreFeedEntries(ctx, now.Format(database.DateLayout), now, sources, entries)
	if err != nil {
		return "", fmt.Errorf("failed to store feed entries: %w", err)
	}

	return fmt.Sprintf("fetched %d items from %d feeds (%d failed)", stored, len(sources), failed), nil
}

func (r *FeedRunner) fetchFeed(ctx context.Context, source database.FeedSource) ([]database.FeedEntry, error) {
	data, err := r.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		return nil, err
	}

	_, items, err := r.parser.Run(data)
	if err != nil {
		return nil, err
	}

	entries := make([]database.FeedEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, database.FeedEntry{
			FeedID:      source.ID,
			Title:       item.Title,
			URL:         item.Link,
			PublishedAt: item.PublishedAt,
			Summary:     item.Summary,
			Author:      item.Author,
		})
	}

	slog.Debug("Feed fetched", "feed", source.ID, "items", len(entries))
	return entries, nil
}
