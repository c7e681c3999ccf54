package crawl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const DefaultCommand = "python -m trendradar"

// ExecRunner runs an external crawler command. Its output goes to the
// server's own stdout and stderr.
type ExecRunner struct {
	Command   string
	Dir       string
	WaitDelay time.Duration
}

func NewExecRunner(command, dir string) *ExecRunner {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	return &ExecRunner{
		Command:   command,
		Dir:       dir,
		WaitDelay: 5 * time.Second,
	}
}

func (r *ExecRunner) Run(ctx context.Context) (string, error) {
	args := strings.Fields(r.Command)
	if len(args) == 0 {
		return "", fmt.Errorf("crawl command is empty")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.WaitDelay = r.WaitDelay

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrTimeout
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("crawler exited with code %d", exitErr.ExitCode())
		}
		return "", fmt.Errorf("failed to run crawler: %w", err)
	}

	return "crawl finished", nil
}
