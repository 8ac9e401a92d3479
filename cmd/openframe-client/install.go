package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openframe-oss/openframe-client/internal/agentconfig"
	"github.com/openframe-oss/openframe-client/internal/platform/paths"
	"github.com/openframe-oss/openframe-client/internal/service"
	"github.com/openframe-oss/openframe-client/internal/token"
)

var (
	installTokenPath string
	installSecret    string
	installServerURL string
	installWSURL     string
	installToolAPI   string
	installArtifact  string
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the agent: persist install-time configuration and register the OS service",
	Long: `Install validates the 32-byte shared secret used by the Encrypted Token
Store, persists the gateway/broker endpoints for later ` + "`run`" + ` invocations, and
registers the agent with the platform service manager so it is launched
on boot (spec.md §6).`,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().StringVar(&installTokenPath, "openframe-token-path", "", "Path to the encrypted shared token file, recorded in the install configuration (run reads the token from the secured directory's shared_token.enc)")
	installCmd.Flags().StringVar(&installSecret, "openframe-secret", "", "32-byte shared secret for the Encrypted Token Store")
	installCmd.Flags().StringVar(&installServerURL, "serverUrl", "", "Gateway REST base URL")
	installCmd.Flags().StringVar(&installWSURL, "wsUrl", "", "Messaging broker base URL")
	installCmd.Flags().StringVar(&installToolAPI, "toolApiUrl", "", "Tool API base URL")
	installCmd.Flags().StringVar(&installArtifact, "artifactoryUrl", "", "Artifactory base URL")
}

func runInstall(cmd *cobra.Command, _ []string) error {
	if len(installSecret) != 32 {
		return fmt.Errorf("--openframe-secret must be exactly 32 bytes, got %d", len(installSecret))
	}
	if _, err := token.New([]byte(installSecret)); err != nil {
		return fmt.Errorf("invalid --openframe-secret: %w", err)
	}
	if installServerURL == "" {
		return fmt.Errorf("--serverUrl is required")
	}

	p, err := resolvePaths(globalDevMode)
	if err != nil {
		return err
	}
	if err := p.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create agent directories: %w", err)
	}

	tokenPath := installTokenPath
	if tokenPath == "" {
		tokenPath = p.SharedTokenFile()
	}

	cfg := agentconfig.Config{
		ServerURL:       installServerURL,
		WSBaseURL:       installWSURL,
		ToolAPIBaseURL:  installToolAPI,
		ArtifactBaseURL: installArtifact,
		OpenFrameSecret: installSecret,
		TokenPath:       tokenPath,
		DevMode:         globalDevMode,
	}
	if err := agentconfig.New(p.AgentConfigFile()).Save(cfg); err != nil {
		return fmt.Errorf("failed to persist install configuration: %w", err)
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve installed executable path: %w", err)
	}

	adapter := service.NoopAdapter{}
	svcCfg := service.Config{
		Name:           "com.openframe.client",
		DisplayName:    "OpenFrame Client",
		Description:    "OpenFrame endpoint management agent",
		ExecPath:       execPath,
		RunAtLoad:      true,
		KeepAlive:      true,
		RestartOnCrash: true,
	}
	if err := adapter.Install(cmd.Context(), svcCfg); err != nil {
		return fmt.Errorf("failed to install OS service: %w", err)
	}

	cmd.Println("openframe-client installed")
	return nil
}

func resolvePaths(devMode bool) (*paths.Paths, error) {
	if devMode || os.Getenv("OPENFRAME_DEV_MODE") == "1" {
		return paths.NewDevMode()
	}
	return paths.New(), nil
}
