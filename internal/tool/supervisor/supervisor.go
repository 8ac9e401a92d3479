// Package supervisor implements the Tool Supervisor (C11): one restart
// loop per installed tool, enforcing at-most-one-supervisor-per-tool,
// pausing for in-progress self-replacement, and placing the spawned
// process on the right Windows session when required.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openframe-oss/openframe-client/internal/model"
	"github.com/openframe-oss/openframe-client/internal/placeholder"
	"github.com/openframe-oss/openframe-client/internal/platform/kill"
	"github.com/openframe-oss/openframe-client/internal/platform/paths"
	"github.com/openframe-oss/openframe-client/internal/registry"
)

// retryDelay is RETRY_DELAY from spec.md §4.9: the pause before
// re-attempting a failed resolve, spawn, or restarting after any exit.
const retryDelay = 5 * time.Second

// Supervisor tracks which tools are currently supervised or paused for an
// in-progress self-replacement, and runs one restart loop per tool.
type Supervisor struct {
	registry *registry.Registry
	resolver placeholder.Context
	paths    *paths.Paths

	mu            sync.Mutex
	runningTools  map[string]struct{}
	updatingTools map[string]struct{}
}

// New creates a Supervisor.
func New(reg *registry.Registry, resolverCtx placeholder.Context, p *paths.Paths) *Supervisor {
	return &Supervisor{
		registry:      reg,
		resolver:      resolverCtx,
		paths:         p,
		runningTools:  make(map[string]struct{}),
		updatingTools: make(map[string]struct{}),
	}
}

// Run starts a supervision task for every persisted installed tool,
// skipping any already marked running. Used at bootstrap (C15).
func (s *Supervisor) Run(ctx context.Context) error {
	tools, err := s.registry.All()
	if err != nil {
		return err
	}
	if len(tools) == 0 {
		slog.Info("no installed tools found, nothing to supervise")
		return nil
	}
	for _, tool := range tools {
		if s.tryMarkRunning(tool.ToolAgentID) {
			slog.Info("starting supervision", "tool_agent_id", tool.ToolAgentID)
			go s.superviseLoop(ctx, tool)
		} else {
			slog.Warn("tool already running, skipping", "tool_agent_id", tool.ToolAgentID)
		}
	}
	return nil
}

// RunNewTool starts a supervision task for a single freshly installed
// tool, the C10 hand-off point.
func (s *Supervisor) RunNewTool(ctx context.Context, tool *model.InstalledTool) error {
	if !s.tryMarkRunning(tool.ToolAgentID) {
		slog.Warn("tool already running, skipping", "tool_agent_id", tool.ToolAgentID)
		return nil
	}
	slog.Info("starting supervision for newly installed tool", "tool_agent_id", tool.ToolAgentID)
	go s.superviseLoop(ctx, tool)
	return nil
}

func (s *Supervisor) tryMarkRunning(toolAgentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runningTools[toolAgentID]; ok {
		return false
	}
	s.runningTools[toolAgentID] = struct{}{}
	return true
}

// ClearRunning removes toolAgentID from the running set.
func (s *Supervisor) ClearRunning(toolAgentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runningTools, toolAgentID)
}

// MarkUpdating pauses toolAgentID's supervision loop ahead of a self-
// replacement performed by C13.
func (s *Supervisor) MarkUpdating(toolAgentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatingTools[toolAgentID] = struct{}{}
	slog.Info("tool marked as updating", "tool_agent_id", toolAgentID)
}

// ClearUpdating resumes toolAgentID's supervision loop.
func (s *Supervisor) ClearUpdating(toolAgentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.updatingTools, toolAgentID)
	slog.Info("tool update flag cleared", "tool_agent_id", toolAgentID)
}

func (s *Supervisor) isUpdating(toolAgentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.updatingTools[toolAgentID]
	return ok
}

func (s *Supervisor) superviseLoop(ctx context.Context, tool *model.InstalledTool) {
	_ = kill.StopTool(ctx, tool.ToolAgentID) // defensive: clear any pre-existing instance

	for {
		if ctx.Err() != nil {
			s.ClearRunning(tool.ToolAgentID)
			return
		}

		for s.isUpdating(tool.ToolAgentID) {
			slog.Debug("tool is being updated, waiting", "tool_agent_id", tool.ToolAgentID)
			if !sleepCtx(ctx, time.Second) {
				s.ClearRunning(tool.ToolAgentID)
				return
			}
		}

		args := placeholder.ResolveAll(tool.ToolAgentID, tool.RunCommandArgs, s.resolver)
		agentPath := s.paths.AgentPath(tool.ToolAgentID)

		outcome, err := launch(ctx, tool, agentPath, args)
		if err != nil {
			slog.Error("failed to launch tool, restarting", "tool_agent_id", tool.ToolAgentID, "error", err)
			if !sleepCtx(ctx, retryDelay) {
				s.ClearRunning(tool.ToolAgentID)
				return
			}
			continue
		}
		if outcome == outcomeSkip {
			slog.Info("tool session placement skipped, stopping supervision", "tool_agent_id", tool.ToolAgentID)
			s.ClearRunning(tool.ToolAgentID)
			return
		}

		slog.Warn("tool exited, restarting", "tool_agent_id", tool.ToolAgentID, "retry_in", retryDelay)
		if !sleepCtx(ctx, retryDelay) {
			s.ClearRunning(tool.ToolAgentID)
			return
		}
	}
}

// outcome classifies how one launch-and-wait cycle ended.
type outcome int

const (
	outcomeExited outcome = iota // process ran and exited (success or failure); restart
	outcomeSkip                  // platform placement declined to run this tool at all
)

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
