package registry

import (
	"os"
	"path/filepath"
	"testing"
)

const sourcesYAML = `
platforms:
  - id: weibo
    name: Weibo
  - id: zhihu
    name: Zhihu
  - id: toutiao
rss:
  feeds:
    - id: hn
      name: Hacker News
      url: https://hnrss.org/frontpage
    - id: lobsters
      url: https://lobste.rs/rss
      enabled: false
`

func TestParse(t *testing.T) {
	entries, err := Parse([]byte(sourcesYAML))
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(entries))
	}
	if entries[2].Name != "toutiao" {
		t.Errorf("Expected name to default to id 'toutiao', got '%s'", entries[2].Name)
	}
	if entries[3].Kind != KindRSS || entries[3].URL != "https://hnrss.org/frontpage" {
		t.Errorf("Unexpected feed entry: %+v", entries[3])
	}
	if entries[4].Enabled {
		t.Error("Expected lobsters to be disabled")
	}
	for i, e := range entries {
		if e.Order != i {
			t.Errorf("Expected order %d for %s, got %d", i, e.ID, e.Order)
		}
	}
}

func TestParse_MissingID(t *testing.T) {
	if _, err := Parse([]byte("platforms:\n  - name: nameless\n")); err == nil {
		t.Error("Expected error for platform without id")
	}
}

func TestLoadFile_Missing(t *testing.T) {
	entries, err := LoadFile(filepath.Join(t.TempDir(), "sources.yml"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yml")
	if err := os.WriteFile(path, []byte(sourcesYAML), 0644); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Errorf("Expected 5 entries, got %d", len(entries))
	}
}

func TestMerge(t *testing.T) {
	base := []Entry{
		{ID: "weibo", Kind: KindNews, Name: "Weibo", Enabled: true},
		{ID: "zhihu", Kind: KindNews, Name: "Zhihu", Enabled: true},
		{ID: "baidu", Kind: KindNews, Name: "Baidu", Enabled: true},
		{ID: "hn", Kind: KindRSS, Name: "Hacker News", Enabled: true},
	}
	overrides := []Override{
		{ID: "zhihu", Kind: KindNews, Name: "Old Zhihu Name", Enabled: false},
		{ID: "gone", Kind: KindNews, Name: "Removed", Enabled: true},
		{ID: "weibo", Kind: KindNews, Enabled: true},
	}

	merged := Merge(base, overrides)

	want := []struct {
		id      string
		name    string
		enabled bool
	}{
		{"zhihu", "Zhihu", false},
		{"weibo", "Weibo", true},
		{"baidu", "Baidu", true},
		{"hn", "Hacker News", true},
	}
	if len(merged) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(merged))
	}
	for i, w := range want {
		got := merged[i]
		if got.ID != w.id || got.Name != w.name || got.Enabled != w.enabled || got.Order != i {
			t.Errorf("Entry %d: expected %s/%s/%v/%d, got %s/%s/%v/%d", i, w.id, w.name, w.enabled, i, got.ID, got.Name, got.Enabled, got.Order)
		}
	}
}

func TestMerge_KindsAreSeparate(t *testing.T) {
	base := []Entry{
		{ID: "tech", Kind: KindNews, Name: "Tech Platform", Enabled: true},
		{ID: "tech", Kind: KindRSS, Name: "Tech Feed", Enabled: true},
	}
	merged := Merge(base, []Override{{ID: "tech", Kind: KindRSS, Enabled: false}})

	r := New(merged)
	news, ok := r.Resolve(KindNews, "tech")
	if !ok || !news.Enabled {
		t.Errorf("Expected news/tech enabled, got %+v", news)
	}
	feed, ok := r.Resolve(KindRSS, "tech")
	if !ok || feed.Enabled {
		t.Errorf("Expected rss/tech disabled, got %+v", feed)
	}
}

func TestRegistry(t *testing.T) {
	r := New([]Entry{
		{ID: "a", Kind: KindNews, Name: "A", Enabled: true, Order: 0},
		{ID: "b", Kind: KindNews, Name: "B", Enabled: false, Order: 1},
		{ID: "c", Kind: KindRSS, Name: "C", Enabled: true, Order: 2},
	})

	if _, ok := r.Resolve(KindNews, "missing"); ok {
		t.Error("Expected unknown source not to resolve")
	}
	if enabled := r.Enabled(KindNews); len(enabled) != 1 || enabled[0].ID != "a" {
		t.Errorf("Expected only 'a' enabled, got %+v", enabled)
	}
	if r.Len() != 3 {
		t.Errorf("Expected 3 entries, got %d", r.Len())
	}

	var nilRegistry *Registry
	if _, ok := nilRegistry.Resolve(KindNews, "a"); ok {
		t.Error("Expected nil registry to resolve nothing")
	}
}
