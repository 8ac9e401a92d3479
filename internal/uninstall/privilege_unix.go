//go:build !windows

package uninstall

import "os"

// hasAdminPrivilege reports whether the running process is root, the
// privilege boundary for directory removal and PATH mutation on POSIX
// (spec.md §9).
func hasAdminPrivilege() bool {
	return os.Geteuid() == 0
}
