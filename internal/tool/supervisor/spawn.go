package supervisor

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os/exec"
)

// standardSpawn runs path with args as a plain child process, forwarding
// its stdout/stderr line-by-line to the logger, and waits for exit. Used
// directly on every POSIX target and for Windows tools whose session_type
// is Service.
func standardSpawn(ctx context.Context, toolAgentID, path string, args []string) (outcome, error) {
	cmd := exec.CommandContext(ctx, path, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return outcomeExited, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return outcomeExited, err
	}

	if err := cmd.Start(); err != nil {
		return outcomeExited, err
	}

	go forwardLines(stdout, func(line string) { slog.Info("tool stdout", "tool_agent_id", toolAgentID, "line", line) })
	go forwardLines(stderr, func(line string) { slog.Warn("tool stderr", "tool_agent_id", toolAgentID, "line", line) })

	if err := cmd.Wait(); err != nil {
		slog.Error("tool process exited with error", "tool_agent_id", toolAgentID, "error", err)
	} else {
		slog.Warn("tool process exited successfully but is expected to keep running", "tool_agent_id", toolAgentID)
	}
	return outcomeExited, nil
}

func forwardLines(r io.Reader, emit func(string)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		emit(scanner.Text())
	}
}
