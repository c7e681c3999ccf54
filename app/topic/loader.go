package topic

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// Loader caches the parsed rules of one word-group file and re-parses it only
// when the file's modification time changes.
type Loader struct {
	path    string
	mu      sync.RWMutex
	rules   *Rules
	version int64
	loaded  bool
}

func NewLoader(path string) *Loader {
	return &Loader{path: path, rules: &Rules{}}
}

func (l *Loader) Path() string {
	return l.path
}

// Version returns the file's modification time in nanoseconds, or zero when
// the file does not exist.
func (l *Loader) Version() (int64, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to stat word group config: %w", err)
	}
	return info.ModTime().UnixNano(), nil
}

// Rules returns the current rules and their version, reloading the file
// first when it changed. A missing file yields empty rules.
func (l *Loader) Rules() (*Rules, int64, error) {
	version, err := l.Version()
	if err != nil {
		return nil, 0, err
	}

	l.mu.RLock()
	if l.loaded && l.version == version {
		rules := l.rules
		l.mu.RUnlock()
		return rules, version, nil
	}
	l.mu.RUnlock()

	rules := &Rules{}
	if version != 0 {
		rules, err = LoadFile(l.path)
		switch {
		case errors.Is(err, ErrConfigNotFound):
			rules, version = &Rules{}, 0
		case err != nil:
			return nil, 0, err
		}
	}

	if version == 0 {
		slog.Warn("Word group config not found, topic matching disabled", "path", l.path)
	} else {
		slog.Debug("Word group config loaded", "path", l.path, "groups", len(rules.Groups), "filter_words", len(rules.FilterWords), "global_filters", len(rules.GlobalFilters))
	}

	l.mu.Lock()
	l.rules, l.version, l.loaded = rules, version, true
	l.mu.Unlock()

	return rules, version, nil
}
