package crawl

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAlreadyRunning = errors.New("crawl already running")
	ErrTimeout        = errors.New("crawl timed out")
	ErrShuttingDown   = errors.New("shutting down")
)

// Runner performs one crawl and returns a short human readable summary.
type Runner interface {
	Run(ctx context.Context) (string, error)
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Err     error  `json:"-"`
}

type Status struct {
	Running bool       `json:"running"`
	LastRun *time.Time `json:"last_run"`
	Message string     `json:"message"`
	RunID   string     `json:"run_id"`
	Success bool       `json:"success"`
}
