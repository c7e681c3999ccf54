package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/trend-comb/app/aggregate"
	"github.com/lysyi3m/trend-comb/app/cache"
	"github.com/lysyi3m/trend-comb/app/database"
	"github.com/lysyi3m/trend-comb/app/registry"
	"github.com/lysyi3m/trend-comb/app/topic"
)

var _ cache.Source = (*Pipeline)(nil)

var ErrSettingsUnavailable = errors.New("settings store not configured")

// ItemSource supplies the raw items of one day.
type ItemSource interface {
	QueryItems(ctx context.Context, date, kind string, sourceIDs []string) ([]database.RawItem, error)
	FreshnessKey(date string) (int64, error)
}

// DateLister is implemented by item sources that keep more than one day.
type DateLister interface {
	AvailableDates(kind string) ([]string, error)
}

type SettingsStore interface {
	GetSourceSettings(ctx context.Context) ([]database.SourceSetting, error)
	SaveSourceSettings(ctx context.Context, settings []database.SourceSetting) error
	GetTopicSettings(ctx context.Context) ([]database.TopicSetting, error)
	SaveTopicSettings(ctx context.Context, settings []database.TopicSetting) error
}

type Config struct {
	Items        ItemSource
	Rules        *topic.Loader
	Classifier   *topic.Classifier
	SourcesFile  string
	Settings     SettingsStore
	Location     *time.Location
	QueryTimeout time.Duration
}

type Pipeline struct {
	items        ItemSource
	rules        *topic.Loader
	classifier   *topic.Classifier
	aggregator   *aggregate.Aggregator
	sourcesFile  string
	settings     SettingsStore
	loc          *time.Location
	queryTimeout time.Duration
	now          func() time.Time

	// settingsMu serializes user saves with the write-back at the end of
	// a build.
	settingsMu      sync.Mutex
	settingsVersion atomic.Int64
}

func New(c Config) *Pipeline {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	classifier := c.Classifier
	if classifier == nil {
		classifier = topic.NewClassifier(topic.NewStandardMatcher())
	}

	return &Pipeline{
		items:        c.Items,
		rules:        c.Rules,
		classifier:   classifier,
		aggregator:   aggregate.NewAggregator(classifier),
		sourcesFile:  c.SourcesFile,
		settings:     c.Settings,
		loc:          loc,
		queryTimeout: c.QueryTimeout,
		now:          time.Now,
	}
}

func (p *Pipeline) Date(now time.Time) string {
	return now.In(p.loc).Format(database.DateLayout)
}

// FreshnessKey reports the current upstream versions without building.
func (p *Pipeline) FreshnessKey(ctx context.Context) (cache.Key, error) {
	date := p.Date(p.now())

	dataVersion, err := p.items.FreshnessKey(date)
	if err != nil {
		return cache.Key{}, err
	}
	configVersion, err := p.configVersion()
	if err != nil {
		return cache.Key{}, err
	}

	return cache.Key{Date: date, DataVersion: dataVersion, ConfigVersion: configVersion}, nil
}

// configVersion sums the versions of every configuration input, so it grows
// whenever any one of them does.
func (p *Pipeline) configVersion() (int64, error) {
	version := p.settingsVersion.Load()

	if p.rules != nil {
		rulesVersion, err := p.rules.Version()
		if err != nil {
			return 0, err
		}
		version += rulesVersion
	}

	if p.sourcesFile != "" {
		info, err := os.Stat(p.sourcesFile)
		switch {
		case err == nil:
			version += info.ModTime().UnixNano()
		case !errors.Is(err, fs.ErrNotExist):
			return 0, fmt.Errorf("failed to stat sources file: %w", err)
		}
	}

	return version, nil
}

// Build reads the current inputs and aggregates them into a new view.
func (p *Pipeline) Build(ctx context.Context, now time.Time) (*aggregate.View, cache.Key, error) {
	date := p.Date(now)

	// Versions are read before the inputs so that changes made during the
	// build are seen by the next poll.
	dataVersion, err := p.items.FreshnessKey(date)
	if err != nil {
		return nil, cache.Key{}, err
	}
	configVersion, err := p.configVersion()
	if err != nil {
		return nil, cache.Key{}, err
	}

	rules, err := p.currentRules()
	if err != nil {
		return nil, cache.Key{}, err
	}

	startVersion := p.settingsVersion.Load()
	reg, err := p.Registry(ctx)
	if err != nil {
		return nil, cache.Key{}, err
	}

	var items []database.RawItem
	for _, kind := range []string{database.KindNews, database.KindRSS} {
		kindItems, err := p.queryItems(ctx, date, kind)
		if err != nil {
			return nil, cache.Key{}, err
		}
		items = append(items, kindItems...)
	}

	order, err := p.TopicOrder(ctx)
	if err != nil {
		return nil, cache.Key{}, err
	}

	view := p.aggregator.Run(aggregate.Input{
		Items:      items,
		Rules:      rules,
		Registry:   reg,
		TopicOrder: order,
		Now:        now,
		Date:       date,
	})

	p.persistComputed(ctx, startVersion, reg, view, order)

	return view, cache.Key{Date: date, DataVersion: dataVersion, ConfigVersion: configVersion}, nil
}

func (p *Pipeline) queryItems(ctx context.Context, date, kind string) ([]database.RawItem, error) {
	if p.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.queryTimeout)
		defer cancel()
	}

	items, err := p.items.QueryItems(ctx, date, kind, nil)
	if errors.Is(err, database.ErrDataNotFound) {
		slog.Debug("No items for date", "date", date, "kind", kind)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s items: %w", kind, err)
	}
	return items, nil
}

func (p *Pipeline) currentRules() (*topic.Rules, error) {
	if p.rules == nil {
		return &topic.Rules{}, nil
	}
	rules, _, err := p.rules.Rules()
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// MatchTitle classifies one title against the current word groups.
func (p *Pipeline) MatchTitle(title string) ([]topic.MatchResult, error) {
	rules, err := p.currentRules()
	if err != nil {
		return nil, err
	}
	results := p.classifier.Match(title, rules)
	if results == nil {
		results = []topic.MatchResult{}
	}
	return results, nil
}

// Registry merges the sources file with the saved source settings.
func (p *Pipeline) Registry(ctx context.Context) (*registry.Registry, error) {
	var entries []registry.Entry
	if p.sourcesFile != "" {
		var err error
		entries, err = registry.LoadFile(p.sourcesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load sources: %w", err)
		}
	}

	var overrides []registry.Override
	if p.settings != nil {
		saved, err := p.settings.GetSourceSettings(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range saved {
			overrides = append(overrides, registry.Override{ID: s.ID, Kind: s.Kind, Name: s.Name, Enabled: s.Enabled})
		}
	}

	return registry.New(registry.Merge(entries, overrides)), nil
}

func (p *Pipeline) TopicOrder(ctx context.Context) ([]aggregate.TopicOrder, error) {
	if p.settings == nil {
		return nil, nil
	}
	saved, err := p.settings.GetTopicSettings(ctx)
	if err != nil {
		return nil, err
	}
	order := make([]aggregate.TopicOrder, 0, len(saved))
	for _, s := range saved {
		order = append(order, aggregate.TopicOrder{Name: s.Name, Enabled: s.Enabled})
	}
	return order, nil
}

// SaveSourceSettings stores user source overrides. The next poll rebuilds
// the view.
func (p *Pipeline) SaveSourceSettings(ctx context.Context, overrides []registry.Override) error {
	if p.settings == nil {
		return ErrSettingsUnavailable
	}
	p.settingsMu.Lock()
	defer p.settingsMu.Unlock()
	if err := p.settings.SaveSourceSettings(ctx, sourceSettings(overrides)); err != nil {
		return err
	}
	p.bumpSettingsVersion()
	return nil
}

// SaveTopicOrder stores a user topic order. The next poll rebuilds the view.
func (p *Pipeline) SaveTopicOrder(ctx context.Context, order []aggregate.TopicOrder) error {
	if p.settings == nil {
		return ErrSettingsUnavailable
	}
	p.settingsMu.Lock()
	defer p.settingsMu.Unlock()
	if err := p.settings.SaveTopicSettings(ctx, topicSettings(order)); err != nil {
		return err
	}
	p.bumpSettingsVersion()
	return nil
}

func (p *Pipeline) bumpSettingsVersion() {
	p.settingsVersion.Add(1)
}

// Dates lists the days available for kind, newest first.
func (p *Pipeline) Dates(kind string) ([]string, error) {
	lister, ok := p.items.(DateLister)
	if !ok {
		return []string{p.Date(p.now())}, nil
	}
	return lister.AvailableDates(kind)
}

// persistComputed writes the merged registry and the effective topic order
// back to the settings store when they differ from what is saved, so new
// sources and topics show up there. Nothing is written if the settings were
// saved after startVersion was read. Failures are logged only.
func (p *Pipeline) persistComputed(ctx context.Context, startVersion int64, reg *registry.Registry, view *aggregate.View, saved []aggregate.TopicOrder) {
	if p.settings == nil {
		return
	}

	p.settingsMu.Lock()
	defer p.settingsMu.Unlock()
	if p.settingsVersion.Load() != startVersion {
		slog.Debug("Settings changed during build, skipping write-back")
		return
	}

	if reg.Len() > 0 {
		p.persistSources(ctx, reg)
	}
	if len(view.Topics) > 0 {
		p.persistTopics(ctx, view, saved)
	}
}

func (p *Pipeline) persistSources(ctx context.Context, reg *registry.Registry) {
	current, err := p.settings.GetSourceSettings(ctx)
	if err != nil {
		slog.Warn("Failed to read source settings", "error", err)
		return
	}
	computed := make([]registry.Override, 0, reg.Len())
	for _, e := range reg.Entries() {
		computed = append(computed, registry.Override{ID: e.ID, Kind: e.Kind, Name: e.Name, Enabled: e.Enabled})
	}
	if !slices.EqualFunc(current, sourceSettings(computed), sameSourceSetting) {
		if err := p.settings.SaveSourceSettings(ctx, sourceSettings(computed)); err != nil {
			slog.Warn("Failed to save source settings", "error", err)
		}
	}
}

func (p *Pipeline) persistTopics(ctx context.Context, view *aggregate.View, saved []aggregate.TopicOrder) {
	order := make([]aggregate.TopicOrder, 0, len(view.Topics))
	for _, bucket := range view.Topics {
		order = append(order, aggregate.TopicOrder{Name: bucket.Name, Enabled: bucket.Enabled})
	}
	if !slices.Equal(saved, order) {
		if err := p.settings.SaveTopicSettings(ctx, topicSettings(order)); err != nil {
			slog.Warn("Failed to save topic settings", "error", err)
		}
	}
}

func sameSourceSetting(a, b database.SourceSetting) bool {
	return a.Kind == b.Kind && a.ID == b.ID && a.Name == b.Name && a.Enabled == b.Enabled
}

func sourceSettings(overrides []registry.Override) []database.SourceSetting {
	settings := make([]database.SourceSetting, 0, len(overrides))
	for i, o := range overrides {
		settings = append(settings, database.SourceSetting{Kind: o.Kind, ID: o.ID, Name: o.Name, Enabled: o.Enabled, Position: i})
	}
	return settings
}

func topicSettings(order []aggregate.TopicOrder) []database.TopicSetting {
	settings := make([]database.TopicSetting, 0, len(order))
	for i, o := range order {
		settings = append(settings, database.TopicSetting{Name: o.Name, Enabled: o.Enabled, Position: i})
	}
	return settings
}
