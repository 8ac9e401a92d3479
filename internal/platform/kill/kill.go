// Package kill implements the Process Kill Service (C4): building an
// OS-specific command-line pattern for a tool or asset, finding every
// running process whose command line matches it, and terminating each one
// gracefully then forcibly, with verification at every step (spec.md §4.4).
package kill

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/openframe-oss/openframe-client/internal/agenterr"
)

// Options controls how By waits between the graceful and forceful signal.
type Options struct {
	// GracePeriod is how long to wait for the process to exit after the
	// graceful signal before escalating to a forceful kill.
	GracePeriod time.Duration
	// PollInterval is how often to check whether the process has exited
	// during GracePeriod.
	PollInterval time.Duration
	// ForceTimeout is how long to wait for a forceful kill to take effect
	// before the next retry.
	ForceTimeout time.Duration
	// ForceRetries is how many times to reissue the forceful kill if the
	// process is still alive.
	ForceRetries int
	// ForceRetryDelay is the spacing between forceful-kill retries.
	ForceRetryDelay time.Duration
}

// DefaultOptions mirrors spec.md §4.4: graceful signal, poll every 500 ms
// up to 5 s, then forced kill polled up to 3 s, retried up to 3 times with
// 1 s spacing.
var DefaultOptions = Options{
	GracePeriod:     5 * time.Second,
	PollInterval:    500 * time.Millisecond,
	ForceTimeout:    3 * time.Second,
	ForceRetries:    3,
	ForceRetryDelay: 1 * time.Second,
}

// Result reports what By did for one matched process.
type Result struct {
	PID           int
	GracefulSent  bool
	ExitedOnGrace bool
	ForceSent     bool
	Exited        bool
}

// toolPattern builds the command-line pattern for a tool's agent process:
// "<id>\agent" on Windows, "<id>/agent" on POSIX.
func toolPattern(toolAgentID string) string {
	return joinPattern(toolAgentID, "agent")
}

// assetPattern builds the command-line pattern for an asset process
// belonging to a tool: "<tool>/<asset>" (or "<tool>\<asset>" on Windows).
func assetPattern(toolAgentID, assetID string) string {
	return joinPattern(toolAgentID, assetID)
}

func joinPattern(a, b string) string {
	if runtime.GOOS == "windows" {
		return a + `\` + b
	}
	return filepath.Join(a, b)
}

// StopTool terminates any running instance of toolAgentID's agent process.
// Not finding a matching process is success.
func StopTool(ctx context.Context, toolAgentID string) error {
	return stop(ctx, toolPattern(toolAgentID))
}

// StopAsset terminates any running instance of an asset process belonging
// to toolAgentID. Not finding a matching process is success.
func StopAsset(ctx context.Context, toolAgentID, assetID string) error {
	return stop(ctx, assetPattern(toolAgentID, assetID))
}

func stop(ctx context.Context, pattern string) error {
	results, err := By(ctx, pattern, DefaultOptions)
	if err != nil {
		return err
	}
	var failed []int
	for _, r := range results {
		if !r.Exited {
			failed = append(failed, r.PID)
		}
	}
	if len(failed) > 0 {
		return agenterr.New(agenterr.CategoryProcess, agenterr.KindProcessKillFailed,
			fmt.Sprintf("failed to terminate pids %v matching %q", failed, pattern))
	}
	return nil
}

// By finds every running process whose command line matches pattern
// (case-insensitively, via the platform's native process lister) and
// terminates each one: a graceful signal, polled up to opts.GracePeriod;
// if still alive, a forceful kill, polled up to opts.ForceTimeout and
// retried up to opts.ForceRetries times spaced opts.ForceRetryDelay apart.
// A PID that disappears at any point is treated as success. Matching and
// signaling are platform specific; see kill_posix.go and kill_windows.go.
func By(ctx context.Context, pattern string, opts Options) ([]Result, error) {
	pids, err := findProcessesByName(strings.ToLower(pattern))
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(pids))
	for _, pid := range pids {
		r := Result{PID: pid}
		if err := sendGraceful(pid); err == nil {
			r.GracefulSent = true
		}

		r.ExitedOnGrace = waitForExit(ctx, pid, opts.GracePeriod, opts.PollInterval)
		r.Exited = r.ExitedOnGrace

		for attempt := 1; !r.Exited && attempt <= opts.ForceRetries; attempt++ {
			if err := sendForceful(pid); err == nil {
				r.ForceSent = true
			}
			if waitForExit(ctx, pid, opts.ForceTimeout, opts.PollInterval) {
				r.Exited = true
				break
			}
			slog.Warn("process survived forceful kill, retrying", "pid", pid, "attempt", attempt)
			select {
			case <-ctx.Done():
				return results, ctx.Err()
			case <-time.After(opts.ForceRetryDelay):
			}
		}
		results = append(results, r)
	}
	return results, nil
}

func waitForExit(ctx context.Context, pid int, grace, poll time.Duration) bool {
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	deadline := time.Now().Add(grace)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return !processAlive(pid)
		case <-ticker.C:
		}
	}
	return !processAlive(pid)
}
