package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openframe-oss/openframe-client/internal/agentconfig"
	"github.com/openframe-oss/openframe-client/internal/bootstrap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent (invoked by the service manager)",
	Long: `Run executes the Bootstrap state machine (spec.md §4.14): registration,
authentication, broker connection, and tool supervision, then blocks until
terminated. It is the command the platform service manager launches on
boot; it is also the default when no subcommand is given.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, _ []string) error {
	p, err := resolvePaths(globalDevMode)
	if err != nil {
		return err
	}

	cfg, err := agentconfig.New(p.AgentConfigFile()).Load()
	if err != nil {
		return fmt.Errorf("failed to load install-time configuration: %w", err)
	}
	if cfg.ServerURL == "" {
		return fmt.Errorf("no install-time configuration found; run `openframe-client install` first")
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve running executable path: %w", err)
	}

	orchestrator, err := bootstrap.NewOrchestrator(bootstrap.OrchestratorConfig{
		ServerURL:          cfg.ServerURL,
		WSBaseURL:          cfg.WSBaseURL,
		ToolAPIBaseURL:     cfg.ToolAPIBaseURL,
		ArtifactoryBaseURL: cfg.ArtifactBaseURL,
		AgentVersion:       version,
		OpenFrameSecret:    cfg.OpenFrameSecret,
		RegistrationKey:    bootstrap.EnvRegistrationKeyProvider("OPENFRAME_REGISTRATION_KEY", ""),
		DevMode:            cfg.DevMode || globalDevMode,
		ServiceName:        "com.openframe.client",
		ExecutablePath:     execPath,
		TempDir:            os.TempDir(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("agent terminated: %w", err)
	}
	return nil
}
