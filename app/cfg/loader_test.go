package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestLoadArgsDefaults(t *testing.T) {
	cfg, err := LoadArgs([]string{"--timezone", "UTC"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("Expected poll interval 5s, got %s", cfg.PollInterval)
	}
	if cfg.CrawlTimeout != 300*time.Second {
		t.Errorf("Expected crawl timeout 300s, got %s", cfg.CrawlTimeout)
	}
	if cfg.Matcher != "standard" {
		t.Errorf("Expected matcher 'standard', got '%s'", cfg.Matcher)
	}
	if cfg.ItemSource != ItemSourceSQLite {
		t.Errorf("Expected item source 'sqlite', got '%s'", cfg.ItemSource)
	}
	if cfg.CrawlMode != CrawlModeExec {
		t.Errorf("Expected crawl mode 'exec', got '%s'", cfg.CrawlMode)
	}
	if Get() != cfg {
		t.Error("Expected Get to return the loaded configuration")
	}
	if cfg.PublicURL() != "http://localhost:8080" {
		t.Errorf("Expected localhost public URL, got '%s'", cfg.PublicURL())
	}
}

func TestLoadArgsOverrides(t *testing.T) {
	cfg, err := LoadArgs([]string{
		"--timezone", "UTC",
		"--poll-interval", "2s",
		"--matcher", "fallback",
		"--crawl-mode", "feeds",
		"--base-url", "https://trends.example.com",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.PollInterval != 2*time.Second {
		t.Errorf("Expected poll interval 2s, got %s", cfg.PollInterval)
	}
	if cfg.Matcher != "fallback" {
		t.Errorf("Expected matcher 'fallback', got '%s'", cfg.Matcher)
	}
	if cfg.CrawlMode != CrawlModeFeeds {
		t.Errorf("Expected crawl mode 'feeds', got '%s'", cfg.CrawlMode)
	}
	if cfg.PublicURL() != "https://trends.example.com" {
		t.Errorf("Expected base URL, got '%s'", cfg.PublicURL())
	}
}

func TestLoadArgsRejectsInvalid(t *testing.T) {
	if _, err := LoadArgs([]string{"--matcher", "fuzzy"}); err == nil {
		t.Error("Expected error for unknown matcher")
	}
	if _, err := LoadArgs([]string{"--poll-interval", "0s"}); err == nil {
		t.Error("Expected error for zero poll interval")
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("Expected missing env file to be ignored, got: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TREND_COMB_TEST_VALUE=from-file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TREND_COMB_TEST_VALUE") })

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if os.Getenv("TREND_COMB_TEST_VALUE") != "from-file" {
		t.Errorf("Expected variable from env file, got '%s'", os.Getenv("TREND_COMB_TEST_VALUE"))
	}
}
