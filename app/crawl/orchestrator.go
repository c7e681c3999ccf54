package crawl

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const DefaultTimeout = 300 * time.Second

type outcome struct {
	message string
	err     error
}

// Orchestrator runs at most one crawl at a time. A crawl that outlives its
// timeout is marked failed and the guard is released, even though the runner
// itself may still be winding down.
type Orchestrator struct {
	runner  Runner
	timeout time.Duration
	onDone  func()

	running atomic.Bool
	closed  atomic.Bool

	mu     sync.Mutex
	status Status

	now func() time.Time
}

// NewOrchestrator returns an orchestrator calling onDone after every
// successful crawl. onDone may be nil.
func NewOrchestrator(runner Runner, timeout time.Duration, onDone func()) *Orchestrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{
		runner:  runner,
		timeout: timeout,
		onDone:  onDone,
		status:  Status{Message: "idle"},
		now:     time.Now,
	}
}

// Trigger starts a crawl in the background and returns immediately.
func (o *Orchestrator) Trigger() Result {
	if o.closed.Load() {
		return Result{Success: false, Message: ErrShuttingDown.Error(), Err: ErrShuttingDown}
	}
	if !o.running.CompareAndSwap(false, true) {
		return Result{Success: false, Message: ErrAlreadyRunning.Error(), Err: ErrAlreadyRunning}
	}

	runID := uuid.NewString()

	o.mu.Lock()
	o.status.Running = true
	o.status.RunID = runID
	o.status.Message = "crawl running"
	o.mu.Unlock()

	slog.Info("Crawl started", "run_id", runID)

	go o.run(runID)

	return Result{Success: true, Message: "crawl started", RunID: runID}
}

func (o *Orchestrator) run(runID string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		message, err := o.runner.Run(ctx)
		done <- outcome{message: message, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
		if out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.err = ErrTimeout
		}
	case <-ctx.Done():
		out = outcome{err: ErrTimeout}
	}

	if o.closed.Load() {
		slog.Debug("Discarding crawl result during shutdown", "run_id", runID)
		o.running.Store(false)
		return
	}

	o.finish(runID, out)
}

func (o *Orchestrator) finish(runID string, out outcome) {
	finishedAt := o.now()

	o.mu.Lock()
	o.status.Running = false
	o.status.LastRun = &finishedAt
	o.status.Success = out.err == nil
	if out.err != nil {
		o.status.Message = out.err.Error()
	} else {
		o.status.Message = out.message
	}
	o.mu.Unlock()

	o.running.Store(false)

	if out.err != nil {
		slog.Error("Crawl failed", "run_id", runID, "error", out.err)
		return
	}

	slog.Info("Crawl finished", "run_id", runID, "message", out.message)
	if o.onDone != nil {
		o.onDone()
	}
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	status := o.status
	if status.LastRun != nil {
		lastRun := *status.LastRun
		status.LastRun = &lastRun
	}
	return status
}

func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Shutdown stops accepting crawls. A crawl in flight is not awaited and its
// result is dropped.
func (o *Orchestrator) Shutdown() {
	o.closed.Store(true)
}
