package agenterr

import "fmt"

// InstallCommandError represents a non-zero exit from a tool's optional
// installation command (spec.md §4.8 step 5).
type InstallCommandError struct {
	Base     Error
	ExitCode int
	Stdout   string
	Stderr   string
}

// NewInstallCommandError creates an InstallCommandError.
func NewInstallCommandError(toolAgentID string, exitCode int, stdout, stderr string) *InstallCommandError {
	return &InstallCommandError{
		Base: Error{
			Category: CategoryInstall,
			Kind:     KindInstallCommandFailed,
			Message:  fmt.Sprintf("install command for tool %s exited %d", toolAgentID, exitCode),
		},
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
	}
}

func (e *InstallCommandError) Error() string { return e.Base.Error() }
func (e *InstallCommandError) Unwrap() error { return e.Base.Cause }
