package registry

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Registry resolves source identifiers to display names, order and enabled
// state. It is immutable once built.
type Registry struct {
	entries []Entry
	index   map[string]int
}

func New(entries []Entry) *Registry {
	r := &Registry{
		entries: make([]Entry, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	copy(r.entries, entries)
	for i, e := range r.entries {
		r.index[key(e.Kind, e.ID)] = i
	}
	return r
}

func key(kind, id string) string {
	return kind + "/" + id
}

// Resolve returns the entry for a source. Unknown sources report false.
func (r *Registry) Resolve(kind, id string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	i, ok := r.index[key(kind, id)]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// Enabled returns the enabled entries of one kind in registry order.
func (r *Registry) Enabled(kind string) []Entry {
	if r == nil {
		return nil
	}
	var entries []Entry
	for _, e := range r.entries {
		if e.Kind == kind && e.Enabled {
			entries = append(entries, e)
		}
	}
	return entries
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Merge combines the sources declared in configuration with saved user
// overrides. Config entries win on name. Overrides win on enabled state and
// order. Config entries without an override are appended enabled as declared.
// Overrides for sources no longer in the config are dropped.
func Merge(base []Entry, overrides []Override) []Entry {
	declared := make(map[string]Entry, len(base))
	for _, e := range base {
		declared[key(e.Kind, e.ID)] = e
	}

	merged := make([]Entry, 0, len(base))
	placed := make(map[string]bool, len(base))

	for _, o := range overrides {
		k := key(o.Kind, o.ID)
		e, ok := declared[k]
		if !ok || placed[k] {
			continue
		}
		e.Enabled = o.Enabled
		merged = append(merged, e)
		placed[k] = true
	}

	for _, e := range base {
		k := key(e.Kind, e.ID)
		if placed[k] {
			continue
		}
		merged = append(merged, e)
		placed[k] = true
	}

	for i := range merged {
		merged[i].Order = i
	}
	return merged
}

// LoadFile reads the sources file. A missing file declares no sources.
func LoadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) ([]Entry, error) {
	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	entries := make([]Entry, 0, len(file.Platforms)+len(file.RSS.Feeds))
	seen := make(map[string]bool)

	for i, p := range file.Platforms {
		if p.ID == "" {
			return nil, fmt.Errorf("platform at index %d: id is required", i)
		}
		if seen[key(KindNews, p.ID)] {
			continue
		}
		seen[key(KindNews, p.ID)] = true
		entries = append(entries, Entry{
			ID:      p.ID,
			Kind:    KindNews,
			Name:    cmp.Or(p.Name, p.ID),
			Enabled: true,
		})
	}

	for i, f := range file.RSS.Feeds {
		if f.ID == "" {
			return nil, fmt.Errorf("feed at index %d: id is required", i)
		}
		if seen[key(KindRSS, f.ID)] {
			continue
		}
		seen[key(KindRSS, f.ID)] = true
		enabled := true
		if f.Enabled != nil {
			enabled = *f.Enabled
		}
		entries = append(entries, Entry{
			ID:      f.ID,
			Kind:    KindRSS,
			Name:    cmp.Or(f.Name, f.ID),
			URL:     f.URL,
			Enabled: enabled,
		})
	}

	for i := range entries {
		entries[i].Order = i
	}
	return entries, nil
}
