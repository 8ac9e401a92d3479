//go:build !windows

package driver

import (
	"fmt"
	"os/exec"
	"syscall"
)

// startDetached runs scriptPath in a new session so it is not a child of
// the agent's process group and survives the agent's exit (spec.md
// §4.12: the Linux driver runs outside the agent's process tree).
func startDetached(scriptPath string, args []string) error {
	cmd := exec.Command(scriptPath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start update driver %s: %w", scriptPath, err)
	}
	// Deliberately not waited on: the driver outlives this process.
	go cmd.Wait()
	return nil
}

// loadLaunchdJob loads a one-shot LaunchDaemon job so launchd supervises
// the update script independent of the agent's own process tree
// (spec.md §4.12, macOS path).
func loadLaunchdJob(plistPath string) error {
	if err := exec.Command("launchctl", "load", plistPath).Run(); err != nil {
		return fmt.Errorf("failed to load updater launchd job: %w", err)
	}
	return nil
}

// startDetachedPowerShell is never called on non-Windows targets; the
// update engine only reaches this path when runtime.GOOS == "windows".
func startDetachedPowerShell(scriptPath string) error {
	return fmt.Errorf("powershell update driver is not supported on this platform")
}
