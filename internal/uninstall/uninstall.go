// Package uninstall implements the uninstall flow (spec.md §4.13):
// unregistering the OS service, best-effort tool uninstallation, killing
// survivors, removing the agent's directories with retry, and scheduling
// post-exit self-deletion of the agent binary itself.
package uninstall

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/openframe-oss/openframe-client/internal/agenterr"
	"github.com/openframe-oss/openframe-client/internal/placeholder"
	"github.com/openframe-oss/openframe-client/internal/platform/kill"
	"github.com/openframe-oss/openframe-client/internal/platform/paths"
	"github.com/openframe-oss/openframe-client/internal/registry"
	"github.com/openframe-oss/openframe-client/internal/service"
)

// removeRetries and removeMaxBackoff bound the directory-removal retry
// loop (spec.md §4.13: "max 8 s, 5 attempts").
const (
	removeRetries    = 5
	removeMaxBackoff = 8 * time.Second
)

// Flow performs the best-effort uninstall sequence.
type Flow struct {
	paths    *paths.Paths
	registry *registry.Registry
	adapter  service.Adapter
	resolver placeholder.Context
}

// New creates a Flow.
func New(p *paths.Paths, reg *registry.Registry, adapter service.Adapter, resolverCtx placeholder.Context) *Flow {
	return &Flow{paths: p, registry: reg, adapter: adapter, resolver: resolverCtx}
}

// Run executes the full uninstall sequence. It fails only on the
// privilege check and the OS service unregister — everything else is
// best-effort per spec.md §4.13 and §7 ("Uninstall is best-effort").
func (f *Flow) Run(ctx context.Context, agentPID int, installedExecPath string) error {
	if !hasAdminPrivilege() {
		return agenterr.New(agenterr.CategoryPrivilege, agenterr.KindPrivilegeDenied,
			"uninstall requires administrator/root privilege")
	}

	if err := f.adapter.Uninstall(ctx); err != nil {
		return fmt.Errorf("failed to unregister OS service: %w", err)
	}
	slog.Info("OS service unregistered")

	f.uninstallTools(ctx)
	f.killSurvivors(ctx)
	f.removeDirectories()

	if err := scheduleSelfDelete(agentPID, installedExecPath); err != nil {
		slog.Warn("failed to schedule post-exit self-deletion", "error", err)
	}

	return nil
}

func (f *Flow) uninstallTools(ctx context.Context) {
	tools, err := f.registry.All()
	if err != nil {
		slog.Warn("failed to list installed tools during uninstall", "error", err)
		return
	}
	for _, tool := range tools {
		if len(tool.UninstallationCommandArgs) == 0 {
			continue
		}
		agentPath := f.paths.AgentPath(tool.ToolAgentID)
		args := placeholder.ResolveAll(tool.ToolAgentID, tool.UninstallationCommandArgs, f.resolver)
		cmd := exec.CommandContext(ctx, agentPath, args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			slog.Warn("tool uninstall command failed, continuing", "tool_agent_id", tool.ToolAgentID, "error", err, "output", string(out))
		} else {
			slog.Info("tool uninstall command succeeded", "tool_agent_id", tool.ToolAgentID)
		}
	}
}

func (f *Flow) killSurvivors(ctx context.Context) {
	tools, err := f.registry.All()
	if err != nil {
		slog.Warn("failed to list installed tools for kill sweep", "error", err)
		return
	}
	for _, tool := range tools {
		if err := kill.StopTool(ctx, tool.ToolAgentID); err != nil {
			slog.Warn("failed to stop tool process during uninstall", "tool_agent_id", tool.ToolAgentID, "error", err)
		}
	}
}

// removeDirectories deletes the logs and app-support directories, retrying
// with exponential backoff capped at removeMaxBackoff, force-removing on
// the final attempt.
func (f *Flow) removeDirectories() {
	for _, dir := range []string{f.paths.LogsDir(), f.paths.AppSupportDir()} {
		f.removeDirectory(dir)
	}
}

func (f *Flow) removeDirectory(dir string) {
	backoff := 500 * time.Millisecond
	for attempt := 1; attempt <= removeRetries; attempt++ {
		err := os.RemoveAll(dir)
		if err == nil {
			slog.Info("removed directory", "dir", dir)
			return
		}

		if attempt == removeRetries {
			slog.Warn("standard removal failed on final attempt, forcing", "dir", dir, "error", err)
			if forceErr := forceRemove(dir); forceErr != nil {
				slog.Warn("force-remove also failed, giving up", "dir", dir, "error", forceErr)
			}
			return
		}

		slog.Warn("failed to remove directory, retrying", "dir", dir, "attempt", attempt, "error", err)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > removeMaxBackoff {
			backoff = removeMaxBackoff
		}
	}
}

func forceRemove(dir string) error {
	if runtime.GOOS == "windows" {
		_ = exec.Command("takeown", "/F", dir, "/R", "/D", "Y").Run()
		_ = exec.Command("icacls", dir, "/grant", "Administrators:F", "/T").Run()
		return exec.Command("cmd", "/C", "rd", "/S", "/Q", dir).Run()
	}
	return exec.Command("rm", "-rf", dir).Run()
}
