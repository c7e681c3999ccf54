package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const (
	ItemSourceSQLite = "sqlite"
	ItemSourceReport = "report"

	CrawlModeExec  = "exec"
	CrawlModeFeeds = "feeds"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DataDir     string `long:"data-dir" env:"DATA_DIR" default:"./output" description:"Directory holding the crawler's daily databases"`
	WordsFile   string `long:"words-file" env:"WORDS_FILE" default:"./config/frequency_words.txt" description:"Keyword group file"`
	SourcesFile string `long:"sources-file" env:"SOURCES_FILE" default:"./config/sources.yml" description:"Source registry file"`
	SettingsDB  string `long:"settings-db" env:"SETTINGS_DB" default:"./output/settings.db" description:"SQLite database for user settings"`
	ItemSource  string `long:"item-source" env:"ITEM_SOURCE" default:"sqlite" choice:"sqlite" choice:"report" description:"Where raw items are read from"`
	ReportFile  string `long:"report-file" env:"REPORT_FILE" default:"./output/index.html" description:"Crawler HTML report, used with --item-source=report"`

	// HTTP server
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl      string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://trends.example.com)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key protecting settings endpoints (optional)"`
	StaticDir    string `long:"static-dir" env:"STATIC_DIR" description:"Directory served for non-API paths, e.g. one holding app.html (optional)"`

	// Cache and classification
	PollInterval time.Duration `long:"poll-interval" env:"POLL_INTERVAL" default:"5s" description:"How often upstream data is checked for changes"`
	QueryTimeout time.Duration `long:"query-timeout" env:"QUERY_TIMEOUT" default:"10s" description:"Timeout for one item query"`
	Matcher      string        `long:"matcher" env:"MATCHER" default:"standard" choice:"standard" choice:"fallback" description:"Title matching strategy"`

	// Crawling
	CrawlMode    string        `long:"crawl-mode" env:"CRAWL_MODE" default:"exec" choice:"exec" choice:"feeds" description:"Run an external crawler or fetch RSS sources directly"`
	CrawlCommand string        `long:"crawl-command" env:"CRAWL_COMMAND" default:"python -m trendradar" description:"External crawler command"`
	CrawlDir     string        `long:"crawl-dir" env:"CRAWL_DIR" description:"Working directory of the external crawler"`
	CrawlTimeout time.Duration `long:"crawl-timeout" env:"CRAWL_TIMEOUT" default:"300s" description:"Hard timeout of one crawl"`
	FetchTimeout time.Duration `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30s" description:"Timeout for one feed request"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Trend Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"Asia/Shanghai" description:"Timezone deciding the current day (e.g., UTC, Asia/Shanghai)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load reads the optional env file named by ENV_FILE (default .env) and then
// parses the command line.
func Load() (*Cfg, error) {
	if err := loadEnvFile(cmp.Or(os.Getenv("ENV_FILE"), ".env")); err != nil {
		return nil, err
	}
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", raw.PollInterval)
	}

	cfg := &Cfg{
		DataDir:      raw.DataDir,
		WordsFile:    raw.WordsFile,
		SourcesFile:  raw.SourcesFile,
		SettingsDB:   raw.SettingsDB,
		ItemSource:   raw.ItemSource,
		ReportFile:   raw.ReportFile,
		Port:         raw.Port,
		BaseUrl:      raw.BaseUrl,
		APIAccessKey: raw.APIAccessKey,
		StaticDir:    raw.StaticDir,
		PollInterval: raw.PollInterval,
		QueryTimeout: raw.QueryTimeout,
		Matcher:      raw.Matcher,
		CrawlMode:    raw.CrawlMode,
		CrawlCommand: raw.CrawlCommand,
		CrawlDir:     raw.CrawlDir,
		CrawlTimeout: raw.CrawlTimeout,
		FetchTimeout: raw.FetchTimeout,
		UserAgent:    raw.UserAgent,
		Timezone:     raw.Timezone,
		Debug:        raw.Debug,
		Version:      GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// PublicURL is the base URL clients reach the server at.
func (c *Cfg) PublicURL() string {
	if c.BaseUrl != "" {
		return c.BaseUrl
	}
	return fmt.Sprintf("http://localhost:%s", c.Port)
}

func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
