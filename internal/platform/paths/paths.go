// Package paths resolves the per-OS directory layout the agent uses for
// logs, application support data, and the secured directory holding
// sensitive persisted state (C1).
package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// secureDirName is the subdirectory of AppSupportDir holding identity,
	// installed-tools registry, update state, and the encrypted token.
	secureDirName = "secure"
)

// Paths holds the resolved directory layout for one agent instance.
type Paths struct {
	appSupportDir string
	logsDir       string
	securedDir    string
	devMode       bool
}

// New builds a production Paths using system directories for the host OS.
func New() *Paths {
	return build(systemAppSupportDir(), systemLogsDir(), false)
}

// NewDevMode builds a user-scoped Paths rooted under the user's home
// directory, used when OPENFRAME_DEV_MODE=1 is set (spec.md §6).
func NewDevMode() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	root := filepath.Join(home, ".openframe-client-dev")
	return build(filepath.Join(root, "app-support"), filepath.Join(root, "logs"), true), nil
}

// NewAt builds a Paths rooted at explicit directories, bypassing OS
// detection. Used by tests and by callers that already know their
// directory layout.
func NewAt(appSupportDir, logsDir string) *Paths {
	return build(appSupportDir, logsDir, false)
}

func build(appSupport, logs string, dev bool) *Paths {
	return &Paths{
		appSupportDir: appSupport,
		logsDir:       logs,
		securedDir:    filepath.Join(appSupport, secureDirName),
		devMode:       dev,
	}
}

// AppSupportDir returns the application-support root directory.
func (p *Paths) AppSupportDir() string { return p.appSupportDir }

// LogsDir returns the logs directory.
func (p *Paths) LogsDir() string { return p.logsDir }

// SecuredDir returns the directory holding identity.json, installed_tools.json,
// update_state.json, and shared_token.enc.
func (p *Paths) SecuredDir() string { return p.securedDir }

// DevMode reports whether this Paths was built for development mode.
func (p *Paths) DevMode() bool { return p.devMode }

// ToolDir returns <app-support>/<tool_agent_id>.
func (p *Paths) ToolDir(toolAgentID string) string {
	return filepath.Join(p.appSupportDir, toolAgentID)
}

// AgentPath returns <app-support>/<tool_agent_id>/agent[.exe].
func (p *Paths) AgentPath(toolAgentID string) string {
	name := "agent"
	if runtime.GOOS == "windows" {
		name = "agent.exe"
	}
	return filepath.Join(p.ToolDir(toolAgentID), name)
}

// AssetPath returns <app-support>/<tool_agent_id>/<name>.
func (p *Paths) AssetPath(toolAgentID, name string) string {
	return filepath.Join(p.ToolDir(toolAgentID), name)
}

// IdentityFile returns the path to the persisted MachineIdentity.
func (p *Paths) IdentityFile() string { return filepath.Join(p.securedDir, "identity.json") }

// InstalledToolsFile returns the path to the persisted tool registry.
func (p *Paths) InstalledToolsFile() string {
	return filepath.Join(p.securedDir, "installed_tools.json")
}

// UpdateStateFile returns the path to the persisted update state document.
func (p *Paths) UpdateStateFile() string { return filepath.Join(p.securedDir, "update_state.json") }

// SharedTokenFile returns the path to the encrypted shared token file.
func (p *Paths) SharedTokenFile() string { return filepath.Join(p.securedDir, "shared_token.enc") }

// AgentConfigFile returns the path to the persisted install-time CLI
// parameters (internal/agentconfig), read back by `run`.
func (p *Paths) AgentConfigFile() string { return filepath.Join(p.securedDir, "agent_config.json") }

// EnsureDirectories creates every directory this Paths names, idempotently.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.appSupportDir, p.logsDir, p.securedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// HealthReport is the result of PerformHealthCheck: one issue per directory
// that failed a read/write probe.
type HealthReport struct {
	Issues []HealthIssue
}

// HealthIssue describes a single directory health problem.
type HealthIssue struct {
	Dir     string
	Message string
}

// HasIssues reports whether any directory failed its health probe.
func (r *HealthReport) HasIssues() bool { return len(r.Issues) > 0 }

// PerformHealthCheck verifies read/write access on each managed directory,
// creating any that are missing (spec.md §4.1).
func (p *Paths) PerformHealthCheck() (*HealthReport, error) {
	report := &HealthReport{}
	for _, dir := range []string{p.appSupportDir, p.logsDir, p.securedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			report.Issues = append(report.Issues, HealthIssue{Dir: dir, Message: err.Error()})
			continue
		}
		probe := filepath.Join(dir, ".openframe-health")
		if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
			report.Issues = append(report.Issues, HealthIssue{Dir: dir, Message: err.Error()})
			continue
		}
		_ = os.Remove(probe)
	}
	return report, nil
}

// Expand expands a leading "~" to the user's home directory.
func Expand(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	if path == "~" {
		return os.UserHomeDir()
	}
	return path, nil
}

func systemAppSupportDir() string {
	switch runtime.GOOS {
	case "darwin":
		return "/Library/Application Support/OpenFrame"
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "OpenFrame")
	default:
		return "/var/lib/openframe-client"
	}
}

func systemLogsDir() string {
	switch runtime.GOOS {
	case "darwin":
		return "/Library/Logs/OpenFrame"
	case "windows":
		return filepath.Join(systemAppSupportDir(), "logs")
	default:
		return "/var/log/openframe-client"
	}
}
