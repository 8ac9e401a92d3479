//go:build windows

package driver

import (
	"fmt"
	"os/exec"
	"syscall"
)

const (
	createNoWindow   = 0x08000000
	detachedProcess  = 0x00000008
)

// startDetachedPowerShell launches scriptPath with a detached, windowless
// powershell.exe process (spec.md §4.12: "via a detached powershell.exe
// with CREATE_NO_WINDOW").
func startDetachedPowerShell(scriptPath string) error {
	cmd := exec.Command("powershell.exe", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", scriptPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNoWindow | detachedProcess,
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start update driver %s: %w", scriptPath, err)
	}
	go cmd.Wait()
	return nil
}

// startDetached and loadLaunchdJob are never called on Windows; the
// update engine only reaches those paths when runtime.GOOS is "linux" or
// "darwin" respectively.
func startDetached(scriptPath string, args []string) error {
	return fmt.Errorf("shell update driver is not supported on this platform")
}

func loadLaunchdJob(plistPath string) error {
	return fmt.Errorf("launchd update driver is not supported on this platform")
}
