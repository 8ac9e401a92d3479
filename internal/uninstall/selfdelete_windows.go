//go:build windows

package uninstall

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// scheduleSelfDelete drops a detached PowerShell script that waits for
// agentPID to exit, then deletes the installed executable and its
// immediate install directory, and removes the install directory from the
// machine PATH (spec.md §4.13, §9). Directories above the install
// directory are not removed.
func scheduleSelfDelete(agentPID int, installedExecPath string) error {
	installDir := filepath.Dir(installedExecPath)
	script := fmt.Sprintf(`while (Get-Process -Id %d -ErrorAction SilentlyContinue) { Start-Sleep -Seconds 1 }
Remove-Item -Path %q -Force -ErrorAction SilentlyContinue
Remove-Item -Path %q -Force -ErrorAction SilentlyContinue
$machinePath = [Environment]::GetEnvironmentVariable("Path", "Machine")
$filtered = ($machinePath -split ";" | Where-Object { $_ -ne %q }) -join ";"
[Environment]::SetEnvironmentVariable("Path", $filtered, "Machine")
`, agentPID, installedExecPath, installDir, installDir)

	path := filepath.Join(os.TempDir(), "openframe-client-cleanup.ps1")
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		return fmt.Errorf("failed to write self-delete script: %w", err)
	}

	cmd := exec.Command("powershell.exe", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", path)
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: 0x08000000 | 0x00000008}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start self-delete script: %w", err)
	}
	go cmd.Wait()
	return nil
}
