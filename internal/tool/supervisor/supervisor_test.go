package supervisor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openframe-oss/openframe-client/internal/placeholder"
	"github.com/openframe-oss/openframe-client/internal/platform/paths"
	"github.com/openframe-oss/openframe-client/internal/registry"
)

func newTestSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	root := t.TempDir()
	p := paths.NewAt(filepath.Join(root, "app-support"), filepath.Join(root, "logs"))
	reg := registry.New(filepath.Join(root, "installed_tools.json"))
	return New(reg, placeholder.Context{AppSupportDir: p.AppSupportDir()}, p)
}

func TestTryMarkRunning_SecondCallForSameToolFails(t *testing.T) {
	s := newTestSupervisor(t)
	require.True(t, s.tryMarkRunning("rmm"))
	assert.False(t, s.tryMarkRunning("rmm"))
}

func TestClearRunning_AllowsReMarking(t *testing.T) {
	s := newTestSupervisor(t)
	require.True(t, s.tryMarkRunning("rmm"))
	s.ClearRunning("rmm")
	assert.True(t, s.tryMarkRunning("rmm"))
}

func TestMarkUpdating_PausesIsUpdating(t *testing.T) {
	s := newTestSupervisor(t)
	assert.False(t, s.isUpdating("rmm"))
	s.MarkUpdating("rmm")
	assert.True(t, s.isUpdating("rmm"))
	s.ClearUpdating("rmm")
	assert.False(t, s.isUpdating("rmm"))
}

func TestRun_NoInstalledToolsIsNoop(t *testing.T) {
	s := newTestSupervisor(t)
	assert.NoError(t, s.Run(context.Background()))
}
