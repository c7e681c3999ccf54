package cfg

import "time"

type Cfg struct {
	// Storage
	DataDir     string
	WordsFile   string
	SourcesFile string
	SettingsDB  string
	ItemSource  string
	ReportFile  string

	// HTTP server
	Port         string
	BaseUrl      string
	APIAccessKey string
	StaticDir    string

	// Cache and classification
	PollInterval time.Duration
	QueryTimeout time.Duration
	Matcher      string

	// Crawling
	CrawlMode    string
	CrawlCommand string
	CrawlDir     string
	CrawlTimeout time.Duration
	FetchTimeout time.Duration

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
