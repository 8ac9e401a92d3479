package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openframe-oss/openframe-client/internal/placeholder"
	"github.com/openframe-oss/openframe-client/internal/registry"
	"github.com/openframe-oss/openframe-client/internal/service"
	"github.com/openframe-oss/openframe-client/internal/uninstall"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the agent and its managed tools",
	Long: `Uninstall unregisters the OS service, best-effort uninstalls every
managed tool, kills survivors, removes the agent's directories, and
schedules post-exit self-deletion of the agent binary (spec.md §4.13).
It requires administrator/root privilege.`,
	RunE: runUninstall,
}

func runUninstall(cmd *cobra.Command, _ []string) error {
	p, err := resolvePaths(globalDevMode)
	if err != nil {
		return err
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve installed executable path: %w", err)
	}

	reg := registry.New(p.InstalledToolsFile())
	resolverCtx := placeholder.Context{AppSupportDir: p.AppSupportDir()}
	flow := uninstall.New(p, reg, service.NoopAdapter{}, resolverCtx)

	if err := flow.Run(cmd.Context(), os.Getpid(), execPath); err != nil {
		return fmt.Errorf("uninstall failed: %w", err)
	}

	cmd.Println("openframe-client uninstalled")
	return nil
}
