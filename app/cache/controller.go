package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type Controller struct {
	source         Source
	interval       time.Duration
	refreshTimeout time.Duration
	now            func() time.Time

	mu            sync.Mutex
	snapshot      *Snapshot
	lastAttemptAt time.Time
	lastErr       error

	refreshing atomic.Bool
	trigger    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewController(source Source, interval, refreshTimeout time.Duration) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		source:         source,
		interval:       interval,
		refreshTimeout: refreshTimeout,
		now:            time.Now,
		trigger:        make(chan struct{}, 1),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Snapshot returns the installed snapshot, or nil before the first
// successful refresh. It never waits for a rebuild.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

func (c *Controller) State() State {
	if c.refreshing.Load() {
		return StateRefreshing
	}
	if c.Snapshot() == nil {
		return StateEmpty
	}
	return StateFresh
}

func (c *Controller) Status() Status {
	state := c.State()

	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{State: state, LastAttemptAt: c.lastAttemptAt}
	if c.snapshot != nil {
		status.BuiltAt = c.snapshot.BuiltAt
		status.Key = c.snapshot.Key
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	return status
}

// Refresh rebuilds the view and installs it. Only one rebuild runs at a time;
// a concurrent call returns ErrRefreshInProgress. On failure the previous
// snapshot stays installed.
func (c *Controller) Refresh(ctx context.Context) (bool, error) {
	if !c.refreshing.CompareAndSwap(false, true) {
		return false, ErrRefreshInProgress
	}
	defer c.refreshing.Store(false)

	if c.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.refreshTimeout)
		defer cancel()
	}

	start := c.now()
	view, key, err := c.source.Build(ctx, start)
	if err != nil {
		c.mu.Lock()
		c.lastAttemptAt, c.lastErr = start, err
		stale := c.snapshot != nil
		c.mu.Unlock()

		slog.Error("Refresh failed", "stale_snapshot", stale, "error", err)
		return false, fmt.Errorf("failed to refresh: %w", err)
	}

	snapshot := &Snapshot{View: view, BuiltAt: c.now(), Key: key}

	c.mu.Lock()
	c.snapshot = snapshot
	c.lastAttemptAt, c.lastErr = start, nil
	c.mu.Unlock()

	slog.Info("Cache refreshed", "date", key.Date, "topics", len(view.Topics), "sources", len(view.Sources), "items", view.TotalItems, "matched", view.MatchedItems, "duration", snapshot.BuiltAt.Sub(start))
	return true, nil
}

// Schedule asks the background loop for a refresh. Requests made while one
// is pending are merged.
func (c *Controller) Schedule() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Start performs the initial refresh and runs the poller until Stop.
func (c *Controller) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.refresh("startup")

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				c.poll()
			case <-c.trigger:
				c.refresh("scheduled")
			}
		}
	}()
}

func (c *Controller) Stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) poll() {
	ctx, cancel := context.WithTimeout(c.ctx, c.interval)
	defer cancel()

	key, err := c.source.FreshnessKey(ctx)
	if err != nil {
		slog.Warn("Failed to check freshness", "error", err)
		return
	}

	snapshot := c.Snapshot()
	if snapshot != nil && !key.After(snapshot.Key) {
		return
	}
	c.refresh("upstream changed")
}

func (c *Controller) refresh(reason string) {
	slog.Debug("Refreshing cache", "reason", reason)

	if _, err := c.Refresh(c.ctx); errors.Is(err, ErrRefreshInProgress) {
		slog.Debug("Refresh skipped", "reason", reason, "error", err)
	}
}
