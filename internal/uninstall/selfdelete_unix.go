//go:build !windows

package uninstall

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// scheduleSelfDelete drops a detached shell script that waits for
// agentPID to exit, then deletes the installed executable, removes its
// immediate install directory if that is empty, and deletes
// /etc/paths.d/openframe-client if present — the executable cannot delete
// itself while running (spec.md §4.13, §9). Directories above the install
// directory are not removed, and no other PATH configuration is edited.
func scheduleSelfDelete(agentPID int, installedExecPath string) error {
	installDir := filepath.Dir(installedExecPath)
	script := fmt.Sprintf(`#!/bin/bash
while kill -0 %d 2>/dev/null; do
    sleep 1
done
rm -f %q
rmdir %q 2>/dev/null
if [ -f /etc/paths.d/openframe-client ]; then
    rm -f /etc/paths.d/openframe-client
fi
`, agentPID, installedExecPath, installDir)

	path := filepath.Join(os.TempDir(), "openframe-client-cleanup.sh")
	if err := os.WriteFile(path, []byte(script), 0700); err != nil {
		return fmt.Errorf("failed to write self-delete script: %w", err)
	}

	cmd := exec.Command("/bin/bash", path)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start self-delete script: %w", err)
	}
	go cmd.Wait()
	return nil
}
