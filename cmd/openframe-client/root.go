package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openframe-oss/openframe-client/internal/logging"
)

// logLevelFlag implements pflag.Value for slog.Level.
type logLevelFlag struct {
	level slog.Level
}

func (f *logLevelFlag) String() string { return strings.ToLower(f.level.String()) }
func (f *logLevelFlag) Type() string   { return "string" }
func (f *logLevelFlag) Set(s string) error {
	switch strings.ToLower(s) {
	case "debug":
		f.level = slog.LevelDebug
	case "info":
		f.level = slog.LevelInfo
	case "warn":
		f.level = slog.LevelWarn
	case "error":
		f.level = slog.LevelError
	default:
		return fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", s)
	}
	return nil
}

func (f *logLevelFlag) Level() slog.Level { return f.level }

var (
	globalLogLevel = &logLevelFlag{level: slog.LevelInfo}
	globalDevMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "openframe-client",
	Short: "OpenFrame endpoint management agent",
	Long: `openframe-client is the endpoint management agent: it registers the
machine with the OpenFrame control plane, authenticates, installs and
supervises managed tools, and applies self-updates delivered over the
messaging broker.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logging.Setup(os.Stderr, globalLogLevel.Level())
		return nil
	},
	// With no subcommand, the service manager launches the agent the same
	// way `run` does (spec.md §6: "run (default when launched by service
	// manager)").
	RunE: runRun,
}

func init() {
	rootCmd.PersistentFlags().Var(globalLogLevel, "log-level", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&globalDevMode, "devMode", false, "Run against a development paths layout under the current user's home directory")
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(
		versionCmd,
		installCmd,
		uninstallCmd,
		runCmd,
	)
}
