//go:build windows

package uninstall

import "golang.org/x/sys/windows"

// hasAdminPrivilege reports whether the current process token is
// elevated, the privilege boundary for directory removal and PATH
// mutation on Windows (spec.md §9).
func hasAdminPrivilege() bool {
	token := windows.GetCurrentProcessToken()
	return token.IsElevated()
}
