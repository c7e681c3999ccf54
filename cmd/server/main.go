package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/trend-comb/app/api"
	"github.com/lysyi3m/trend-comb/app/cache"
	"github.com/lysyi3m/trend-comb/app/cfg"
	"github.com/lysyi3m/trend-comb/app/crawl"
	"github.com/lysyi3m/trend-comb/app/database"
	"github.com/lysyi3m/trend-comb/app/feed"
	"github.com/lysyi3m/trend-comb/app/pipeline"
	"github.com/lysyi3m/trend-comb/app/report"
	"github.com/lysyi3m/trend-comb/app/topic"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	slog.Info("Starting Trend Comb server", "version", appCfg.Version)

	slog.Info("Opening settings database", "path", appCfg.SettingsDB)
	settingsDB, err := database.NewConnection(appCfg.SettingsDB)
	if err != nil {
		slog.Error("Failed to open settings database", "error", err)
		os.Exit(1)
	}
	defer settingsDB.Close()

	version, dirty, err := database.RunMigrations(settingsDB, database.SchemaSettings)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Settings database ready", "schema_version", version, "dirty", dirty)

	matcher, err := topic.NewTermMatcher(appCfg.Matcher)
	if err != nil {
		slog.Error("Failed to create matcher", "error", err)
		os.Exit(1)
	}

	loc := time.Local
	itemRepo := database.NewItemRepository(appCfg.DataDir, loc)

	var items pipeline.ItemSource = itemRepo
	watched := []string{appCfg.WordsFile, appCfg.SourcesFile}
	if appCfg.ItemSource == cfg.ItemSourceReport {
		items = report.NewReader(appCfg.ReportFile, loc)
		watched = append(watched, appCfg.ReportFile)
		slog.Info("Reading items from HTML report", "path", appCfg.ReportFile)
	} else {
		slog.Info("Reading items from daily databases", "dir", appCfg.DataDir)
	}

	p := pipeline.New(pipeline.Config{
		Items:        items,
		Rules:        topic.NewLoader(appCfg.WordsFile),
		Classifier:   topic.NewClassifier(matcher),
		SourcesFile:  appCfg.SourcesFile,
		Settings:     database.NewSettingsRepository(settingsDB),
		Location:     loc,
		QueryTimeout: appCfg.QueryTimeout,
	})

	controller := cache.NewController(p, appCfg.PollInterval, 3*appCfg.QueryTimeout)
	controller.Start()
	defer controller.Stop()

	if err := controller.Watch(watched...); err != nil {
		slog.Warn("Config watcher unavailable, relying on polling", "error", err)
	}

	var runner crawl.Runner
	switch appCfg.CrawlMode {
	case cfg.CrawlModeFeeds:
		fetcher := feed.NewFetcher(appCfg.UserAgent, appCfg.FetchTimeout)
		runner = crawl.NewFeedRunner(p, fetcher, itemRepo, loc)
		slog.Info("Crawling RSS sources directly")
	default:
		runner = crawl.NewExecRunner(appCfg.CrawlCommand, appCfg.CrawlDir)
		slog.Info("Crawling with external command", "command", appCfg.CrawlCommand)
	}
	crawler := crawl.NewOrchestrator(runner, appCfg.CrawlTimeout, controller.Schedule)
	defer crawler.Shutdown()

	generator := feed.NewGenerator(appCfg.PublicURL(), appCfg.Version)
	handler := api.NewHandler(controller, p, crawler, generator, appCfg.Version)

	server := api.NewServer(handler, appCfg.APIAccessKey, appCfg.StaticDir)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port, "url", appCfg.PublicURL())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Crawler and cache controller are stopped via defer
	slog.Info("Trend Comb server shutdown complete")
}
