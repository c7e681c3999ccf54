package aggregate

import (
	"time"

	"github.com/lysyi3m/trend-comb/app/database"
	"github.com/lysyi3m/trend-comb/app/registry"
	"github.com/lysyi3m/trend-comb/app/topic"
)

// Entry is a raw item decorated with its classification.
type Entry struct {
	database.RawItem
	IsNew   bool                `json:"isNew"`
	Matches []topic.MatchResult `json:"matches"`
}

type TopicBucket struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
	Enabled  bool     `json:"enabled"`
	Count    int      `json:"count"`
	Items    []Entry  `json:"items"`
}

type SourceBucket struct {
	ID    string  `json:"id"`
	Kind  string  `json:"kind"`
	Name  string  `json:"name"`
	Known bool    `json:"known"`
	Count int     `json:"count"`
	Items []Entry `json:"items"`
}

// View is one complete aggregation. It is never modified after Run returns.
type View struct {
	GeneratedAt  time.Time      `json:"generatedAt"`
	Date         string         `json:"date"`
	TotalItems   int            `json:"totalItems"`
	MatchedItems int            `json:"matchedItems"`
	Topics       []TopicBucket  `json:"topics"`
	Sources      []SourceBucket `json:"sources"`
}

// Topic returns the bucket named name.
func (v *View) Topic(name string) (*TopicBucket, bool) {
	if v == nil {
		return nil, false
	}
	for i := range v.Topics {
		if v.Topics[i].Name == name {
			return &v.Topics[i], true
		}
	}
	return nil, false
}

type TopicOrder struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type Input struct {
	Items      []database.RawItem
	Rules      *topic.Rules
	Registry   *registry.Registry
	TopicOrder []TopicOrder
	Now        time.Time
	Date       string
}
