package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetcher_Fetch(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte("<rss></rss>"))
	}))
	defer server.Close()

	fetcher := NewFetcher("Trend-Comb/test", 5*time.Second)
	body, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if string(body) != "<rss></rss>" {
		t.Errorf("Expected body '<rss></rss>', got: %s", body)
	}
	if userAgent != "Trend-Comb/test" {
		t.Errorf("Expected user agent 'Trend-Comb/test', got: %s", userAgent)
	}
}

func TestFetcher_FetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher("Trend-Comb/test", 5*time.Second)
	if _, err := fetcher.Fetch(context.Background(), server.URL); err == nil {
		t.Error("Expected error for 404 response")
	}
}
