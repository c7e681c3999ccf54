package api

import (
	"context"
	"time"

	"github.com/lysyi3m/trend-comb/app/aggregate"
	"github.com/lysyi3m/trend-comb/app/cache"
	"github.com/lysyi3m/trend-comb/app/crawl"
	"github.com/lysyi3m/trend-comb/app/feed"
	"github.com/lysyi3m/trend-comb/app/pipeline"
	"github.com/lysyi3m/trend-comb/app/registry"
	"github.com/lysyi3m/trend-comb/app/topic"
)

const timeLayout = "2006-01-02 15:04:05"

type CacheInterface interface {
	Snapshot() *cache.Snapshot
	Status() cache.Status
	Refresh(ctx context.Context) (bool, error)
	Schedule()
}

type PipelineInterface interface {
	MatchTitle(title string) ([]topic.MatchResult, error)
	Registry(ctx context.Context) (*registry.Registry, error)
	TopicOrder(ctx context.Context) ([]aggregate.TopicOrder, error)
	SaveSourceSettings(ctx context.Context, overrides []registry.Override) error
	SaveTopicOrder(ctx context.Context, order []aggregate.TopicOrder) error
	Dates(kind string) ([]string, error)
}

type CrawlerInterface interface {
	Trigger() crawl.Result
	Status() crawl.Status
}

type GeneratorInterface interface {
	Run(bucket aggregate.TopicBucket, generatedAt time.Time) (string, error)
}

var (
	_ CacheInterface     = (*cache.Controller)(nil)
	_ PipelineInterface  = (*pipeline.Pipeline)(nil)
	_ CrawlerInterface   = (*crawl.Orchestrator)(nil)
	_ GeneratorInterface = (*feed.Generator)(nil)
)

type Handler struct {
	cache     CacheInterface
	pipeline  PipelineInterface
	crawler   CrawlerInterface
	generator GeneratorInterface
	version   string
}

type sourceSettingsRequest struct {
	Sources []registry.Override `json:"sources" binding:"required"`
}

type topicSettingsRequest struct {
	Topics []aggregate.TopicOrder `json:"topics" binding:"required"`
}
