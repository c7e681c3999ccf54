package cache

import (
	"context"
	"errors"
	"time"

	"github.com/lysyi3m/trend-comb/app/aggregate"
)

var ErrRefreshInProgress = errors.New("refresh already in progress")

type State string

const (
	StateEmpty      State = "empty"
	StateFresh      State = "fresh"
	StateRefreshing State = "refreshing"
)

// Key identifies the upstream inputs a snapshot was built from.
type Key struct {
	Date          string `json:"date"`
	DataVersion   int64  `json:"dataVersion"`
	ConfigVersion int64  `json:"configVersion"`
}

// After reports whether k describes newer inputs than other. A change of
// date always counts.
func (k Key) After(other Key) bool {
	return k.Date != other.Date ||
		k.DataVersion > other.DataVersion ||
		k.ConfigVersion > other.ConfigVersion
}

// Source builds views for the controller.
type Source interface {
	FreshnessKey(ctx context.Context) (Key, error)
	Build(ctx context.Context, now time.Time) (*aggregate.View, Key, error)
}

// Snapshot is one installed view. It is never mutated after installation.
type Snapshot struct {
	View    *aggregate.View
	BuiltAt time.Time
	Key     Key
}

type Status struct {
	State         State
	BuiltAt       time.Time
	Key           Key
	LastAttemptAt time.Time
	LastError     string
}
