// Package driver launches the Update Driver (C14): a shell/PowerShell/
// launchd artifact rendered from an embedded template, dropped into a
// temporary path, and started as a process detached from the agent so it
// survives the agent's own imminent shutdown (spec.md §4.12).
package driver

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/google/uuid"
)

//go:embed templates/*.tmpl
var templates embed.FS

// Params are the values the update engine passes to the driver: what to
// install, which service to stop/start, and where to report completion.
type Params struct {
	ArtifactPath   string
	ServiceName    string
	ExecutablePath string
	StateFilePath  string
	// ScriptPath is filled in internally once the script has been
	// rendered, for templates (the macOS plist) that reference it.
	ScriptPath string
}

// Launcher renders and launches the update driver for the current OS.
type Launcher struct {
	tempDir string
}

// New creates a Launcher that writes driver artifacts under tempDir
// (typically os.TempDir()).
func New(tempDir string) *Launcher {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Launcher{tempDir: tempDir}
}

// Launch renders the platform-appropriate driver artifact for params and
// starts it as a detached process. It returns once the driver has been
// started; it does not wait for the driver to finish, since the driver is
// expected to stop and restart the agent itself.
func (l *Launcher) Launch(ctx context.Context, params Params) error {
	switch runtime.GOOS {
	case "windows":
		return l.launchWindows(params)
	case "darwin":
		return l.launchMacOS(params)
	default:
		return l.launchLinux(params)
	}
}

func (l *Launcher) render(name string, params Params) (string, error) {
	tmpl, err := template.ParseFS(templates, "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse driver template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("failed to render driver template %s: %w", name, err)
	}
	return buf.String(), nil
}

func (l *Launcher) writeArtifact(suffix, content string, mode os.FileMode) (string, error) {
	path := filepath.Join(l.tempDir, fmt.Sprintf("openframe-updater-%s%s", uuid.NewString(), suffix))
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return "", fmt.Errorf("failed to write driver artifact %s: %w", path, err)
	}
	return path, nil
}

// launchLinux renders update_linux.sh.tmpl and runs it detached via a
// new session (setsid semantics), so the script outlives the agent.
func (l *Launcher) launchLinux(params Params) error {
	content, err := l.render("update_linux.sh.tmpl", params)
	if err != nil {
		return err
	}
	scriptPath, err := l.writeArtifact(".sh", content, 0700)
	if err != nil {
		return err
	}
	return startDetached(scriptPath, nil)
}

// launchMacOS renders update_macos.sh.tmpl, wraps it in a one-shot
// launchd job (updater.plist.tmpl), and loads the job — launchd keeps the
// script alive independent of the agent's process tree.
func (l *Launcher) launchMacOS(params Params) error {
	content, err := l.render("update_macos.sh.tmpl", params)
	if err != nil {
		return err
	}
	scriptPath, err := l.writeArtifact(".sh", content, 0700)
	if err != nil {
		return err
	}

	params.ScriptPath = scriptPath
	plistContent, err := l.render("updater.plist.tmpl", params)
	if err != nil {
		return err
	}
	plistPath := filepath.Join(l.tempDir, "com.openframe.updater.plist")
	if err := os.WriteFile(plistPath, []byte(plistContent), 0644); err != nil {
		return fmt.Errorf("failed to write updater plist: %w", err)
	}

	return loadLaunchdJob(plistPath)
}

// launchWindows renders update_windows.ps1.tmpl and launches it via a
// detached, windowless powershell.exe process.
func (l *Launcher) launchWindows(params Params) error {
	content, err := l.render("update_windows.ps1.tmpl", params)
	if err != nil {
		return err
	}
	scriptPath, err := l.writeArtifact(".ps1", content, 0644)
	if err != nil {
		return err
	}
	return startDetachedPowerShell(scriptPath)
}
