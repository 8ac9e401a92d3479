package uninstall

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openframe-oss/openframe-client/internal/model"
	"github.com/openframe-oss/openframe-client/internal/placeholder"
	"github.com/openframe-oss/openframe-client/internal/platform/paths"
	"github.com/openframe-oss/openframe-client/internal/registry"
	"github.com/openframe-oss/openframe-client/internal/service"
)

type fakeAdapter struct {
	uninstallCalled bool
	uninstallErr    error
}

func (f *fakeAdapter) Install(ctx context.Context, cfg service.Config) error { return nil }
func (f *fakeAdapter) Uninstall(ctx context.Context) error {
	f.uninstallCalled = true
	return f.uninstallErr
}
func (f *fakeAdapter) Status(ctx context.Context) (service.Status, error) {
	return service.StatusNotFound, nil
}
func (f *fakeAdapter) Stop(ctx context.Context) error  { return nil }
func (f *fakeAdapter) Start(ctx context.Context) error { return nil }

func TestRun_RemovesDirectoriesAndUnregistersService(t *testing.T) {
	root := t.TempDir()
	appSupport := filepath.Join(root, "app-support")
	logs := filepath.Join(root, "logs")
	require.NoError(t, os.MkdirAll(appSupport, 0755))
	require.NoError(t, os.MkdirAll(logs, 0755))

	p := paths.NewAt(appSupport, logs)
	reg := registry.New(filepath.Join(appSupport, "installed_tools.json"))
	adapter := &fakeAdapter{}

	flow := New(p, reg, adapter, placeholder.Context{})
	err := flow.Run(context.Background(), os.Getpid(), filepath.Join(root, "agent-bin"))
	require.NoError(t, err)

	assert.True(t, adapter.uninstallCalled)
	_, statErr := os.Stat(appSupport)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(logs)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_ServiceUnregisterFailurePropagates(t *testing.T) {
	root := t.TempDir()
	p := paths.NewAt(filepath.Join(root, "app-support"), filepath.Join(root, "logs"))
	reg := registry.New(filepath.Join(root, "app-support", "installed_tools.json"))
	adapter := &fakeAdapter{uninstallErr: assertError("unregister failed")}

	flow := New(p, reg, adapter, placeholder.Context{})
	err := flow.Run(context.Background(), os.Getpid(), filepath.Join(root, "agent-bin"))
	require.Error(t, err)
}

func TestRun_ToolUninstallCommandFailureIsBestEffort(t *testing.T) {
	root := t.TempDir()
	appSupport := filepath.Join(root, "app-support")
	p := paths.NewAt(appSupport, filepath.Join(root, "logs"))
	regPath := filepath.Join(appSupport, "installed_tools.json")
	require.NoError(t, os.MkdirAll(appSupport, 0755))
	reg := registry.New(regPath)
	require.NoError(t, reg.Put(&model.InstalledTool{
		ToolAgentID:               "rmm",
		UninstallationCommandArgs: []string{"--force"},
		Status:                    model.ToolStatusInstalled,
	}))

	adapter := &fakeAdapter{}
	flow := New(p, reg, adapter, placeholder.Context{})
	err := flow.Run(context.Background(), os.Getpid(), filepath.Join(root, "agent-bin"))
	require.NoError(t, err)
	assert.True(t, adapter.uninstallCalled)
}

type assertError string

func (e assertError) Error() string { return string(e) }
