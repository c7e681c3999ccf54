package registry

const (
	KindNews = "news"
	KindRSS  = "rss"
)

// Entry is one platform or feed known to the registry. Order is the position
// in the merged list, lower first.
type Entry struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	Enabled bool   `json:"enabled"`
	Order   int    `json:"order"`
}

// Override is a user setting for one source, stored outside the sources file.
type Override struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	Enabled bool   `json:"enabled"`
}

// Sources file types

type SourcesFile struct {
	Platforms []PlatformConfig `yaml:"platforms"`
	RSS       RSSConfig        `yaml:"rss"`
}

type PlatformConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type RSSConfig struct {
	Feeds []FeedConfig `yaml:"feeds"`
}

type FeedConfig struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled"`
}
