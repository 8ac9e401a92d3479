//go:build windows

package kill

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// findProcessesByName uses tasklist's CSV output, filtered by image name,
// mirroring the posix build's use of the platform's native listing tool.
func findProcessesByName(pattern string) ([]int, error) {
	out, err := exec.Command("tasklist", "/FI", fmt.Sprintf("IMAGENAME eq %s", pattern), "/FO", "CSV", "/NH").Output()
	if err != nil {
		return nil, fmt.Errorf("tasklist failed: %w", err)
	}

	var pids []int
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			continue
		}
		pidField := strings.Trim(fields[1], `" `)
		pid, err := strconv.Atoi(pidField)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

func sendGraceful(pid int) error {
	return exec.Command("taskkill", "/PID", strconv.Itoa(pid)).Run()
}

func sendForceful(pid int) error {
	return exec.Command("taskkill", "/F", "/PID", strconv.Itoa(pid)).Run()
}

func processAlive(pid int) bool {
	handle, err := syscall.OpenProcess(syscall.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer syscall.CloseHandle(handle)

	var exitCode uint32
	if err := syscall.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	const stillActive = 259
	return exitCode == stillActive
}
