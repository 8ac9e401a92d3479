// Package install implements the Tool Installation Service (C10): turning
// a ToolInstallationMessage into a running, supervised tool by creating its
// directory, fetching its agent binary and assets, optionally running an
// installation command, and persisting the resulting InstalledTool record.
package install

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"

	"github.com/openframe-oss/openframe-client/internal/agenterr"
	"github.com/openframe-oss/openframe-client/internal/model"
	"github.com/openframe-oss/openframe-client/internal/placeholder"
	"github.com/openframe-oss/openframe-client/internal/platform/paths"
	"github.com/openframe-oss/openframe-client/internal/registry"
	"github.com/openframe-oss/openframe-client/internal/toolfiles"
	"golang.org/x/sync/errgroup"
)

// Supervisor is the subset of the Tool Supervisor (C11) the installer hands
// a freshly installed tool off to. Defined here to avoid importing the
// supervisor package's concrete type and creating an import cycle.
type Supervisor interface {
	RunNewTool(ctx context.Context, tool *model.InstalledTool) error
}

// Publisher is the subset of the Messaging Client (C8) used to announce a
// successful install. Defined here rather than imported to avoid a cycle
// with the messaging package.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Service performs C10's install operation.
type Service struct {
	paths      *paths.Paths
	files      *toolfiles.Client
	toolAPI    *toolfiles.Client
	registry   *registry.Registry
	resolver   placeholder.Context
	supervisor Supervisor
	publisher  Publisher
	machineID  string
}

// New creates a Service. files fetches both the main agent binary and
// Artifactory-sourced assets; toolAPI fetches tool-API-sourced assets — they
// are typically the same underlying client pointed at different endpoints,
// but are accepted separately since the two sources are independent
// collaborators in spec.md §6. publisher and machineID are used to
// announce a successful install on machine.<machine_id>.toolconnection.
func New(p *paths.Paths, files, toolAPI *toolfiles.Client, reg *registry.Registry, resolverCtx placeholder.Context, sup Supervisor, pub Publisher, machineID string) *Service {
	return &Service{paths: p, files: files, toolAPI: toolAPI, registry: reg, resolver: resolverCtx, supervisor: sup, publisher: pub, machineID: machineID}
}

// Install performs C10 steps 1-7. It is idempotent: a message for an
// already-installed tool_agent_id logs and returns nil without redoing
// any work. The existence check and the download/persist that follows it
// run under the registry's own lock (via GetOrLock) so that two installs
// racing on the same tool_agent_id cannot both pass the check and both
// download (testable property 6).
func (s *Service) Install(ctx context.Context, msg model.ToolInstallationMessage) error {
	installed, alreadyInstalled, err := s.registry.GetOrLock(msg.ToolAgentID, func() (*model.InstalledTool, error) {
		return s.downloadAndBuildRecord(ctx, msg)
	})
	if err != nil {
		return err
	}
	if alreadyInstalled {
		slog.Info("tool already installed, skipping", "tool_agent_id", msg.ToolAgentID, "version", installed.Version)
		return nil
	}

	slog.Info("tool installed, handing off to supervisor", "tool_agent_id", msg.ToolAgentID)
	if err := s.supervisor.RunNewTool(ctx, installed); err != nil {
		return err
	}

	if s.publisher != nil {
		subject := fmt.Sprintf("machine.%s.toolconnection", s.machineID)
		if err := s.publisher.Publish(ctx, subject, model.ToolConnectionMessage{ToolAgentID: msg.ToolAgentID}); err != nil {
			slog.Warn("failed to publish tool connection message", "tool_agent_id", msg.ToolAgentID, "error", err)
		}
	}
	return nil
}

// downloadAndBuildRecord performs C10 steps 2-6: it creates the tool
// directory, fetches the agent binary and assets, runs the optional
// installation command, and returns the InstalledTool record for
// GetOrLock to persist. Called only when no record exists yet.
func (s *Service) downloadAndBuildRecord(ctx context.Context, msg model.ToolInstallationMessage) (*model.InstalledTool, error) {
	toolDir := s.paths.ToolDir(msg.ToolAgentID)
	if err := os.MkdirAll(toolDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tool directory %s: %w", toolDir, err)
	}

	agentPath := s.paths.AgentPath(msg.ToolAgentID)
	if _, err := os.Stat(agentPath); os.IsNotExist(err) {
		slog.Info("downloading agent file", "tool_agent_id", msg.ToolAgentID)
		data, err := s.files.GetAgentFile(ctx, msg.ToolAgentID)
		if err != nil {
			return nil, fmt.Errorf("failed to download agent file for %s: %w", msg.ToolAgentID, err)
		}
		if err := writeExecutable(agentPath, data); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", agentPath, err)
	} else {
		slog.Debug("agent file already present, skipping download", "tool_agent_id", msg.ToolAgentID)
	}

	// Assets are independent files with no ordering requirement between
	// them, so they are fetched concurrently (spec.md §4.8 step 4).
	group, groupCtx := errgroup.WithContext(ctx)
	for _, asset := range msg.Assets {
		asset := asset
		group.Go(func() error {
			assetPath := s.paths.AssetPath(msg.ToolAgentID, asset.LocalFilename)
			if _, err := os.Stat(assetPath); err == nil {
				slog.Debug("asset already present, skipping download", "asset_id", asset.ID)
				return nil
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("failed to stat %s: %w", assetPath, err)
			}

			data, err := s.fetchAsset(groupCtx, msg, asset)
			if err != nil {
				return err
			}
			if err := writeExecutable(assetPath, data); err != nil {
				return err
			}
			slog.Info("asset installed", "asset_id", asset.ID, "path", assetPath)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	if len(msg.InstallationCommandArgs) > 0 {
		if err := s.runInstallCommand(ctx, msg, agentPath); err != nil {
			return nil, err
		}
	} else {
		slog.Debug("no installation command, skipping", "tool_agent_id", msg.ToolAgentID)
	}

	installed := &model.InstalledTool{
		ToolAgentID:               msg.ToolAgentID,
		ToolID:                    msg.ToolID,
		ToolType:                  msg.ToolType,
		Version:                   msg.Version,
		SessionType:               msg.SessionType,
		RunCommandArgs:            msg.RunCommandArgs,
		UninstallationCommandArgs: msg.UninstallationCommandArgs,
		Status:                    model.ToolStatusInstalled,
	}
	return installed, nil
}

func (s *Service) fetchAsset(ctx context.Context, msg model.ToolInstallationMessage, asset model.Asset) ([]byte, error) {
	switch asset.Source {
	case model.AssetSourceArtifactory:
		slog.Info("downloading artifactory asset", "asset_id", asset.ID)
		data, err := s.files.GetAgentFile(ctx, asset.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to download artifactory asset %s: %w", asset.ID, err)
		}
		return data, nil
	case model.AssetSourceToolAPI:
		if asset.Path == "" {
			return nil, agenterr.New(agenterr.CategoryInstall, "",
				fmt.Sprintf("no path for tool %s asset %s", msg.ToolAgentID, asset.ID))
		}
		slog.Info("downloading tool API asset", "asset_id", asset.ID, "path", asset.Path)
		data, err := s.toolAPI.GetToolAsset(ctx, msg.ToolID, asset.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to download tool API asset %s: %w", asset.ID, err)
		}
		return data, nil
	default:
		return nil, agenterr.New(agenterr.CategoryInstall, "", fmt.Sprintf("unknown asset source %q", asset.Source))
	}
}

func (s *Service) runInstallCommand(ctx context.Context, msg model.ToolInstallationMessage, agentPath string) error {
	slog.Info("running installation command", "tool_agent_id", msg.ToolAgentID)
	args := placeholder.ResolveAll(msg.ToolAgentID, msg.InstallationCommandArgs, s.resolver)

	cmd := exec.CommandContext(ctx, agentPath, args...)
	stdout, err := cmd.Output()
	if err != nil {
		exitErr, _ := err.(*exec.ExitError)
		var stderr []byte
		status := -1
		if exitErr != nil {
			stderr = exitErr.Stderr
			status = exitErr.ExitCode()
		}
		return agenterr.New(agenterr.CategoryInstall, agenterr.KindInstallCommandFailed,
			fmt.Sprintf("installation command failed for %s", msg.ToolAgentID)).
			WithDetail("status", status).
			WithDetail("stdout", string(stdout)).
			WithDetail("stderr", string(stderr))
	}
	slog.Info("installation command succeeded", "tool_agent_id", msg.ToolAgentID)
	return nil
}

func writeExecutable(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(path, 0755); err != nil {
			return fmt.Errorf("failed to chmod +x %s: %w", path, err)
		}
	}
	return nil
}
