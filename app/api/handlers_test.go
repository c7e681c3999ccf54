package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/trend-comb/app/aggregate"
	"github.com/lysyi3m/trend-comb/app/cache"
	"github.com/lysyi3m/trend-comb/app/crawl"
	"github.com/lysyi3m/trend-comb/app/database"
	"github.com/lysyi3m/trend-comb/app/feed"
	"github.com/lysyi3m/trend-comb/app/pipeline"
	"github.com/lysyi3m/trend-comb/app/registry"
	"github.com/lysyi3m/trend-comb/app/topic"
)

type mockCache struct {
	snapshot   *cache.Snapshot
	refreshErr error
	scheduled  int
	refreshed  int
}

func (m *mockCache) Snapshot() *cache.Snapshot { return m.snapshot }

func (m *mockCache) Status() cache.Status {
	if m.snapshot == nil {
		return cache.Status{State: cache.StateEmpty}
	}
	return cache.Status{State: cache.StateFresh, BuiltAt: m.snapshot.BuiltAt, Key: m.snapshot.Key}
}

func (m *mockCache) Refresh(ctx context.Context) (bool, error) {
	m.refreshed++
	if m.refreshErr != nil {
		return false, m.refreshErr
	}
	return true, nil
}

func (m *mockCache) Schedule() { m.scheduled++ }

type mockPipeline struct {
	matches    []topic.MatchResult
	registry   *registry.Registry
	order      []aggregate.TopicOrder
	savedOrder []aggregate.TopicOrder
	savedSrc   []registry.Override
	saveErr    error
	dates      []string
}

func (m *mockPipeline) MatchTitle(title string) ([]topic.MatchResult, error) {
	return m.matches, nil
}

func (m *mockPipeline) Registry(ctx context.Context) (*registry.Registry, error) {
	return m.registry, nil
}

func (m *mockPipeline) TopicOrder(ctx context.Context) ([]aggregate.TopicOrder, error) {
	return m.order, nil
}

func (m *mockPipeline) SaveSourceSettings(ctx context.Context, overrides []registry.Override) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.savedSrc = overrides
	return nil
}

func (m *mockPipeline) SaveTopicOrder(ctx context.Context, order []aggregate.TopicOrder) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.savedOrder = order
	return nil
}

func (m *mockPipeline) Dates(kind string) ([]string, error) {
	return m.dates, nil
}

type mockCrawler struct {
	result crawl.Result
	status crawl.Status
}

func (m *mockCrawler) Trigger() crawl.Result { return m.result }
func (m *mockCrawler) Status() crawl.Status  { return m.status }

var builtAt = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

func testSnapshot() *cache.Snapshot {
	return &cache.Snapshot{
		BuiltAt: builtAt,
		Key:     cache.Key{Date: "2026-01-02", DataVersion: 1},
		View: &aggregate.View{
			GeneratedAt: builtAt,
			Date:        "2026-01-02",
			TotalItems:  3,
			Topics: []aggregate.TopicBucket{
				{Name: "AI", Enabled: true, Count: 1, Items: []aggregate.Entry{
					{RawItem: database.RawItem{ID: "news:1", Title: "OpenAI ships", URL: "https://example.com/1", SourceName: "Weibo", FirstSeenAt: builtAt}},
				}},
				{Name: "Space", Enabled: false, Items: []aggregate.Entry{}},
			},
			Sources: []aggregate.SourceBucket{
				{ID: "weibo", Kind: "news", Name: "Weibo", Known: true, Count: 1},
			},
		},
	}
}

type fixture struct {
	router   *gin.Engine
	cache    *mockCache
	pipeline *mockPipeline
	crawler  *mockCrawler
}

func setupRouter(t *testing.T, apiKey, staticDir string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		cache:    &mockCache{snapshot: testSnapshot()},
		pipeline: &mockPipeline{},
		crawler:  &mockCrawler{},
	}
	handler := NewHandler(f.cache, f.pipeline, f.crawler, feed.NewGenerator("http://localhost:8080", "test"), "test")
	f.router = NewServer(handler, apiKey, staticDir)
	return f
}

func (f *fixture) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Expected JSON body, got %q: %v", w.Body.String(), err)
	}
	return body
}

func TestGetTopics(t *testing.T) {
	f := setupRouter(t, "", "")

	w := f.do("GET", "/api/topics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := decode(t, w)
	if topics := body["topics"].([]any); len(topics) != 2 {
		t.Errorf("Expected 2 topics, got %d", len(topics))
	}
	if body["date"] != "2026-01-02" {
		t.Errorf("Expected date '2026-01-02', got %v", body["date"])
	}

	w = f.do("GET", "/api/topics?enabled=true", "", nil)
	if topics := decode(t, w)["topics"].([]any); len(topics) != 1 {
		t.Errorf("Expected 1 enabled topic, got %d", len(topics))
	}
}

func TestGetTopicsEmptyCache(t *testing.T) {
	f := setupRouter(t, "", "")
	f.cache.snapshot = nil

	w := f.do("GET", "/api/topics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if topics := decode(t, w)["topics"].([]any); len(topics) != 0 {
		t.Errorf("Expected no topics, got %d", len(topics))
	}

	w = f.do("GET", "/api/status", "", nil)
	body := decode(t, w)
	if body["state"] != string(cache.StateEmpty) || body["topics_count"].(float64) != 0 {
		t.Errorf("Expected empty status, got %v", body)
	}
}

func TestGetSourcesAndStatus(t *testing.T) {
	f := setupRouter(t, "", "")

	body := decode(t, f.do("GET", "/api/sources", "", nil))
	if sources := body["sources"].([]any); len(sources) != 1 {
		t.Errorf("Expected 1 source, got %d", len(sources))
	}

	body = decode(t, f.do("GET", "/api/status", "", nil))
	if body["topics_count"].(float64) != 2 || body["sources_count"].(float64) != 1 {
		t.Errorf("Unexpected counts: %v", body)
	}
	if body["state"] != string(cache.StateFresh) {
		t.Errorf("Expected fresh state, got %v", body["state"])
	}
}

func TestRefresh(t *testing.T) {
	f := setupRouter(t, "", "")

	w := f.do("POST", "/api/refresh", "", nil)
	if w.Code != http.StatusOK || decode(t, w)["success"] != true {
		t.Errorf("Expected successful refresh, got %d %s", w.Code, w.Body.String())
	}

	f.cache.refreshErr = cache.ErrRefreshInProgress
	if w := f.do("GET", "/api/refresh", "", nil); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}

	f.cache.refreshErr = errors.New("disk I/O error")
	w = f.do("GET", "/api/refresh", "", nil)
	if w.Code != http.StatusInternalServerError || decode(t, w)["success"] != false {
		t.Errorf("Expected failed refresh, got %d %s", w.Code, w.Body.String())
	}
}

func TestCrawl(t *testing.T) {
	f := setupRouter(t, "", "")

	f.crawler.result = crawl.Result{Success: true, Message: "crawl started", RunID: "run-1"}
	w := f.do("POST", "/api/crawl", "", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", w.Code)
	}
	if decode(t, w)["run_id"] != "run-1" {
		t.Errorf("Expected run id in response, got %s", w.Body.String())
	}

	f.crawler.result = crawl.Result{Success: false, Message: "crawl already running", Err: crawl.ErrAlreadyRunning}
	if w := f.do("GET", "/api/crawl", "", nil); w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}

	last := builtAt
	f.crawler.status = crawl.Status{Running: false, LastRun: &last, Message: "crawl finished", Success: true}
	body := decode(t, f.do("GET", "/api/crawl_status", "", nil))
	if body["running"] != false || body["message"] != "crawl finished" || body["last_run"] == "" {
		t.Errorf("Unexpected crawl status: %v", body)
	}
}

func TestMatchTitle(t *testing.T) {
	f := setupRouter(t, "", "")
	f.pipeline.matches = []topic.MatchResult{{Topic: "AI", Matched: []string{"openai"}}}

	if w := f.do("GET", "/api/match", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without title, got %d", w.Code)
	}

	w := f.do("GET", "/api/match?title=OpenAI+ships", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := decode(t, w)
	if body["title"] != "OpenAI ships" || len(body["topics"].([]any)) != 1 {
		t.Errorf("Unexpected match response: %v", body)
	}
}

func TestGetTopicFeed(t *testing.T) {
	f := setupRouter(t, "", "")

	w := f.do("GET", "/api/topics/AI/rss", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Type"), "application/xml") {
		t.Errorf("Expected XML content type, got %s", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("X-Feed-Items") != "1" {
		t.Errorf("Expected X-Feed-Items 1, got %s", w.Header().Get("X-Feed-Items"))
	}
	if !strings.Contains(w.Body.String(), "<title>OpenAI ships</title>") {
		t.Error("Expected item title in feed")
	}

	if w := f.do("GET", "/api/topics/Unknown/rss", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	f.cache.snapshot = nil
	if w := f.do("GET", "/api/topics/AI/rss", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestGetDates(t *testing.T) {
	f := setupRouter(t, "", "")
	f.pipeline.dates = []string{"2026-01-02"}

	body := decode(t, f.do("GET", "/api/dates", "", nil))
	if body["kind"] != "news" || len(body["dates"].([]any)) != 1 {
		t.Errorf("Unexpected dates response: %v", body)
	}
	if w := f.do("GET", "/api/dates?kind=video", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestSettingsDisabledWithoutKey(t *testing.T) {
	f := setupRouter(t, "", "")

	w := f.do("GET", "/api/settings/sources", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestSettingsAuth(t *testing.T) {
	f := setupRouter(t, "secret", "")

	if w := f.do("GET", "/api/settings/topics", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without key, got %d", w.Code)
	}
	if w := f.do("GET", "/api/settings/topics", "", map[string]string{"X-API-Key": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 with wrong key, got %d", w.Code)
	}
	if w := f.do("GET", "/api/settings/topics", "", map[string]string{"Authorization": "Bearer secret"}); w.Code != http.StatusOK {
		t.Errorf("Expected status 200 with bearer key, got %d", w.Code)
	}
}

func TestSaveSettings(t *testing.T) {
	f := setupRouter(t, "secret", "")
	auth := map[string]string{"X-API-Key": "secret"}

	w := f.do("PUT", "/api/settings/topics", `{"topics":[{"name":"Space","enabled":true},{"name":"AI","enabled":false}]}`, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(f.pipeline.savedOrder) != 2 || f.pipeline.savedOrder[0].Name != "Space" {
		t.Errorf("Expected saved topic order, got %+v", f.pipeline.savedOrder)
	}
	if f.cache.scheduled != 1 {
		t.Errorf("Expected refresh to be scheduled, got %d", f.cache.scheduled)
	}

	w = f.do("PUT", "/api/settings/sources", `{"sources":[{"id":"weibo","kind":"news","enabled":false}]}`, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(f.pipeline.savedSrc) != 1 || f.pipeline.savedSrc[0].Enabled {
		t.Errorf("Expected saved source override, got %+v", f.pipeline.savedSrc)
	}

	if w := f.do("PUT", "/api/settings/sources", `{"sources":[{"id":"weibo","kind":"video"}]}`, auth); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown kind, got %d", w.Code)
	}
	if w := f.do("PUT", "/api/settings/topics", `not json`, auth); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid body, got %d", w.Code)
	}

	f.pipeline.saveErr = pipeline.ErrSettingsUnavailable
	if w := f.do("PUT", "/api/settings/topics", `{"topics":[]}`, auth); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestGetSourceSettings(t *testing.T) {
	f := setupRouter(t, "secret", "")
	f.pipeline.registry = registry.New([]registry.Entry{{ID: "weibo", Kind: "news", Name: "Weibo", Enabled: true}})

	body := decode(t, f.do("GET", "/api/settings/sources", "", map[string]string{"X-API-Key": "secret"}))
	if body["total"].(float64) != 1 {
		t.Errorf("Expected 1 source, got %v", body)
	}
}

func TestHealthAndUnknown(t *testing.T) {
	f := setupRouter(t, "", "")

	body := decode(t, f.do("GET", "/health", "", nil))
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("Unexpected health response: %v", body)
	}

	if w := f.do("GET", "/api/nothing", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	if w := f.do("OPTIONS", "/api/topics", "", nil); w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for preflight, got %d", w.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "app.html"), []byte("<html>app</html>"), 0644); err != nil {
		t.Fatal(err)
	}
	f := setupRouter(t, "", dir)

	w := f.do("GET", "/app.html", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "app") {
		t.Errorf("Expected static file, got %d %s", w.Code, w.Body.String())
	}
}
