package aggregate

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/trend-comb/app/database"
	"github.com/lysyi3m/trend-comb/app/topic"
)

// NewWindow is how recently an item must have been first seen to count as new.
const NewWindow = time.Hour

type Aggregator struct {
	classifier *topic.Classifier
}

func NewAggregator(classifier *topic.Classifier) *Aggregator {
	return &Aggregator{classifier: classifier}
}

type topicBuilder struct {
	bucket   TopicBucket
	maxCount int
	titles   map[string]bool
}

type sourceBuilder struct {
	bucket SourceBucket
	order  int
	ids    map[string]bool
}

// Run classifies every item and builds the topic and source views. It does
// not modify its input.
func (a *Aggregator) Run(in Input) *View {
	topics, index := a.topicBuckets(in)
	sources := make(map[string]*sourceBuilder)
	var sourceKeys []string

	view := &View{
		GeneratedAt: in.Now,
		Date:        in.Date,
		TotalItems:  len(in.Items),
	}

	for _, item := range in.Items {
		matches := a.classifier.Match(item.Title, in.Rules)
		if len(matches) == 0 {
			continue
		}
		view.MatchedItems++

		entry := Entry{
			RawItem: item,
			IsNew:   isNew(item.FirstSeenAt, in.Now),
			Matches: matches,
		}

		for _, match := range matches {
			b, ok := index[match.Topic]
			if !ok || b.titles[item.Title] {
				continue
			}
			b.titles[item.Title] = true
			b.bucket.Items = append(b.bucket.Items, entry)
		}

		source, skip := a.resolveSource(in, item)
		if skip {
			continue
		}
		key := source.bucket.Name
		s, ok := sources[key]
		if !ok {
			s = source
			sources[key] = s
			sourceKeys = append(sourceKeys, key)
		}
		if s.ids[item.ID] {
			continue
		}
		s.ids[item.ID] = true
		s.bucket.Items = append(s.bucket.Items, entry)
	}

	view.Topics = make([]TopicBucket, 0, len(topics))
	for _, b := range topics {
		slices.SortStableFunc(b.bucket.Items, compareEntries)
		if b.maxCount > 0 && len(b.bucket.Items) > b.maxCount {
			b.bucket.Items = b.bucket.Items[:b.maxCount]
		}
		if b.bucket.Items == nil {
			b.bucket.Items = []Entry{}
		}
		b.bucket.Count = len(b.bucket.Items)
		view.Topics = append(view.Topics, b.bucket)
	}

	ordered := make([]*sourceBuilder, 0, len(sourceKeys))
	for _, key := range sourceKeys {
		s := sources[key]
		slices.SortStableFunc(s.bucket.Items, compareEntries)
		s.bucket.Count = len(s.bucket.Items)
		ordered = append(ordered, s)
	}
	slices.SortStableFunc(ordered, func(a, b *sourceBuilder) int {
		return cmp.Or(
			cmp.Compare(a.order, b.order),
			cmp.Compare(b.bucket.Count, a.bucket.Count),
			strings.Compare(a.bucket.Name, b.bucket.Name),
		)
	})
	view.Sources = make([]SourceBucket, 0, len(ordered))
	for _, s := range ordered {
		view.Sources = append(view.Sources, s.bucket)
	}

	return view
}

// topicBuckets creates one bucket per word group, in configuration order or
// in the saved order when one is given. Groups sharing a key share a bucket.
func (a *Aggregator) topicBuckets(in Input) ([]*topicBuilder, map[string]*topicBuilder) {
	var configured []*topicBuilder
	index := make(map[string]*topicBuilder)

	if in.Rules != nil {
		for _, group := range in.Rules.Groups {
			if _, ok := index[group.Key]; ok {
				continue
			}
			b := &topicBuilder{
				bucket: TopicBucket{
					Name:     group.Key,
					Category: group.Category,
					Keywords: group.Keywords(),
					Enabled:  true,
				},
				maxCount: group.MaxCount,
				titles:   make(map[string]bool),
			}
			index[group.Key] = b
			configured = append(configured, b)
		}
	}

	if len(in.TopicOrder) == 0 {
		return configured, index
	}

	ordered := make([]*topicBuilder, 0, len(configured))
	placed := make(map[string]bool, len(configured))
	for _, o := range in.TopicOrder {
		b, ok := index[o.Name]
		if !ok || placed[o.Name] {
			continue
		}
		b.bucket.Enabled = o.Enabled
		placed[o.Name] = true
		ordered = append(ordered, b)
	}
	for _, b := range configured {
		if !placed[b.bucket.Name] {
			ordered = append(ordered, b)
		}
	}
	return ordered, index
}

// resolveSource returns the bucket for an item's source, or skip when the
// source is disabled. Sources missing from the registry sort last.
func (a *Aggregator) resolveSource(in Input, item database.RawItem) (*sourceBuilder, bool) {
	s := &sourceBuilder{
		bucket: SourceBucket{
			ID:   item.SourceID,
			Kind: item.Kind,
			Name: cmp.Or(item.SourceName, item.SourceID),
		},
		order: math.MaxInt,
		ids:   make(map[string]bool),
	}

	if entry, ok := in.Registry.Resolve(item.Kind, item.SourceID); ok {
		if !entry.Enabled {
			return nil, true
		}
		s.bucket.Name = cmp.Or(entry.Name, s.bucket.Name)
		s.bucket.Known = true
		s.order = entry.Order
	}
	return s, false
}

// compareEntries orders ranked items by rank, then the rest by publication
// time and first-seen time, newest first.
func compareEntries(a, b Entry) int {
	switch {
	case a.Rank != nil && b.Rank != nil:
		return cmp.Compare(*a.Rank, *b.Rank)
	case a.Rank != nil:
		return -1
	case b.Rank != nil:
		return 1
	}

	switch {
	case a.PublishedAt != nil && b.PublishedAt != nil:
		if c := b.PublishedAt.Compare(*a.PublishedAt); c != 0 {
			return c
		}
	case a.PublishedAt != nil:
		return -1
	case b.PublishedAt != nil:
		return 1
	}

	return b.FirstSeenAt.Compare(a.FirstSeenAt)
}

func isNew(firstSeen, now time.Time) bool {
	if firstSeen.IsZero() || firstSeen.After(now) {
		return false
	}
	return now.Sub(firstSeen) <= NewWindow
}
