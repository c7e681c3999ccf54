package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/trend-comb/app/aggregate"
	"github.com/lysyi3m/trend-comb/app/cache"
	"github.com/lysyi3m/trend-comb/app/crawl"
	"github.com/lysyi3m/trend-comb/app/database"
	"github.com/lysyi3m/trend-comb/app/pipeline"
	"github.com/lysyi3m/trend-comb/app/registry"
)

func NewHandler(cache CacheInterface, pipeline PipelineInterface, crawler CrawlerInterface,
	generator GeneratorInterface, version string) *Handler {
	return &Handler{
		cache:     cache,
		pipeline:  pipeline,
		crawler:   crawler,
		generator: generator,
		version:   version,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(time.Local).Format(timeLayout)
}

// snapshotMeta is shared by every endpoint reading the cached view.
func snapshotMeta(snapshot *cache.Snapshot) gin.H {
	if snapshot == nil {
		return gin.H{"update_time": "", "cache_time": "", "date": ""}
	}
	return gin.H{
		"update_time": formatTime(snapshot.View.GeneratedAt),
		"cache_time":  formatTime(snapshot.BuiltAt),
		"date":        snapshot.View.Date,
	}
}

func (h *Handler) GetTopics(c *gin.Context) {
	snapshot := h.cache.Snapshot()

	response := snapshotMeta(snapshot)
	topics := []aggregate.TopicBucket{}
	if snapshot != nil {
		topics = snapshot.View.Topics
	}
	if c.Query("enabled") == "true" {
		enabled := make([]aggregate.TopicBucket, 0, len(topics))
		for _, bucket := range topics {
			if bucket.Enabled {
				enabled = append(enabled, bucket)
			}
		}
		topics = enabled
	}
	response["topics"] = topics

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetSources(c *gin.Context) {
	snapshot := h.cache.Snapshot()

	response := snapshotMeta(snapshot)
	sources := []aggregate.SourceBucket{}
	if snapshot != nil {
		sources = snapshot.View.Sources
	}
	response["sources"] = sources

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetStatus(c *gin.Context) {
	snapshot := h.cache.Snapshot()
	status := h.cache.Status()

	response := snapshotMeta(snapshot)
	response["status"] = "ok"
	response["state"] = status.State
	response["server_time"] = formatTime(time.Now())
	response["last_attempt_time"] = formatTime(status.LastAttemptAt)
	response["last_error"] = status.LastError
	response["topics_count"] = 0
	response["sources_count"] = 0
	response["total_items"] = 0
	response["matched_items"] = 0
	if snapshot != nil {
		response["topics_count"] = len(snapshot.View.Topics)
		response["sources_count"] = len(snapshot.View.Sources)
		response["total_items"] = snapshot.View.TotalItems
		response["matched_items"] = snapshot.View.MatchedItems
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) Refresh(c *gin.Context) {
	success, err := h.cache.Refresh(c.Request.Context())
	if errors.Is(err, cache.ErrRefreshInProgress) {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": err.Error()})
		return
	}

	response := snapshotMeta(h.cache.Snapshot())
	response["success"] = success
	if err != nil {
		response["message"] = err.Error()
		c.JSON(http.StatusInternalServerError, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) TriggerCrawl(c *gin.Context) {
	result := h.crawler.Trigger()

	switch {
	case errors.Is(result.Err, crawl.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, result)
	case errors.Is(result.Err, crawl.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, result)
	case !result.Success:
		c.JSON(http.StatusInternalServerError, result)
	default:
		c.JSON(http.StatusAccepted, result)
	}
}

func (h *Handler) GetCrawlStatus(c *gin.Context) {
	status := h.crawler.Status()

	lastRun := ""
	if status.LastRun != nil {
		lastRun = formatTime(*status.LastRun)
	}

	c.JSON(http.StatusOK, gin.H{
		"running":  status.Running,
		"last_run": lastRun,
		"message":  status.Message,
		"run_id":   status.RunID,
		"success":  status.Success,
	})
}

func (h *Handler) MatchTitle(c *gin.Context) {
	title := strings.TrimSpace(c.Query("title"))
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing title parameter"})
		return
	}

	results, err := h.pipeline.MatchTitle(title)
	if err != nil {
		slog.Error("Failed to match title", "title", title, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load keyword groups"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":  title,
		"topics": results,
	})
}

func (h *Handler) GetTopicFeed(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	snapshot := h.cache.Snapshot()
	if snapshot == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	bucket, ok := snapshot.View.Topic(name)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	rss, err := h.generator.Run(*bucket, snapshot.BuiltAt)
	if err != nil {
		slog.Error("RSS generation error", "topic", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(bucket.Items)))
	c.Header("X-Last-Updated", snapshot.BuiltAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetDates(c *gin.Context) {
	kind := c.DefaultQuery("kind", database.KindNews)
	if kind != database.KindNews && kind != database.KindRSS {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown kind"})
		return
	}

	dates, err := h.pipeline.Dates(kind)
	if err != nil {
		slog.Error("Failed to list dates", "kind", kind, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list dates"})
		return
	}
	if dates == nil {
		dates = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"kind": kind, "dates": dates})
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"state":     h.cache.Status().State,
		"version":   h.version,
	})
}

func (h *Handler) APIGetSourceSettings(c *gin.Context) {
	reg, err := h.pipeline.Registry(c.Request.Context())
	if err != nil {
		slog.Error("Failed to load registry", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sources"})
		return
	}

	sources := reg.Entries()
	if sources == nil {
		sources = []registry.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources, "total": len(sources)})
}

func (h *Handler) APISaveSourceSettings(c *gin.Context) {
	var req sourceSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	for _, o := range req.Sources {
		if o.ID == "" || (o.Kind != registry.KindNews && o.Kind != registry.KindRSS) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Every source needs an id and a kind of news or rss"})
			return
		}
	}

	if err := h.pipeline.SaveSourceSettings(c.Request.Context(), req.Sources); err != nil {
		h.settingsError(c, "sources", err)
		return
	}
	h.cache.Schedule()

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Source settings saved, refresh scheduled"})
}

func (h *Handler) APIGetTopicSettings(c *gin.Context) {
	order, err := h.pipeline.TopicOrder(c.Request.Context())
	if err != nil {
		slog.Error("Failed to load topic settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load topic settings"})
		return
	}
	if order == nil {
		order = []aggregate.TopicOrder{}
	}

	c.JSON(http.StatusOK, gin.H{"topics": order, "total": len(order)})
}

func (h *Handler) APISaveTopicSettings(c *gin.Context) {
	var req topicSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	for _, o := range req.Topics {
		if o.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Every topic needs a name"})
			return
		}
	}

	if err := h.pipeline.SaveTopicOrder(c.Request.Context(), req.Topics); err != nil {
		h.settingsError(c, "topics", err)
		return
	}
	h.cache.Schedule()

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Topic settings saved, refresh scheduled"})
}

func (h *Handler) settingsError(c *gin.Context, what string, err error) {
	if errors.Is(err, pipeline.ErrSettingsUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Settings storage is not configured"})
		return
	}
	slog.Error("Failed to save settings", "settings", what, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings", "details": err.Error()})
}
