package install

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openframe-oss/openframe-client/internal/model"
	"github.com/openframe-oss/openframe-client/internal/placeholder"
	"github.com/openframe-oss/openframe-client/internal/platform/paths"
	"github.com/openframe-oss/openframe-client/internal/registry"
	"github.com/openframe-oss/openframe-client/internal/toolfiles"
)

type fakeSupervisor struct {
	mu    sync.Mutex
	count int
}

func (f *fakeSupervisor) RunNewTool(ctx context.Context, tool *model.InstalledTool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakePublisher) Publish(ctx context.Context, subject string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

func newTestService(t *testing.T) (*Service, *paths.Paths, *fakeSupervisor, *fakePublisher, *int32) {
	t.Helper()
	root := t.TempDir()
	p := paths.NewAt(filepath.Join(root, "app-support"), filepath.Join(root, "logs"))

	var downloadCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&downloadCount, 1)
		w.Write([]byte("agent-binary-bytes"))
	}))
	t.Cleanup(srv.Close)

	files := toolfiles.New(srv.URL, nil, func() string { return "" })
	reg := registry.New(filepath.Join(root, "installed_tools.json"))
	sup := &fakeSupervisor{}
	pub := &fakePublisher{}
	svc := New(p, files, files, reg, placeholder.Context{}, sup, pub, "m1")
	return svc, p, sup, pub, &downloadCount
}

func TestInstall_CreatesToolDirAndPersistsRecord(t *testing.T) {
	svc, p, sup, pub, _ := newTestService(t)

	msg := model.ToolInstallationMessage{
		ToolAgentID:    "rmm",
		ToolID:         "tool1",
		Version:        "1.0",
		RunCommandArgs: []string{"--srv", "${client.serverUrl}"},
	}
	require.NoError(t, svc.Install(context.Background(), msg))

	agentPath := p.AgentPath("rmm")
	info, err := os.Stat(agentPath)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	}

	sup.mu.Lock()
	assert.Equal(t, 1, sup.count)
	sup.mu.Unlock()

	pub.mu.Lock()
	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "machine.m1.toolconnection", pub.subjects[0])
	pub.mu.Unlock()
}

func TestInstall_TwiceIsIdempotent(t *testing.T) {
	svc, _, sup, pub, _ := newTestService(t)

	msg := model.ToolInstallationMessage{
		ToolAgentID:    "rmm",
		Version:        "1.0",
		RunCommandArgs: []string{"--srv", "${client.serverUrl}"},
	}
	require.NoError(t, svc.Install(context.Background(), msg))
	require.NoError(t, svc.Install(context.Background(), msg))

	got, ok, err := svc.registry.Get("rmm")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1.0", got.Version)

	sup.mu.Lock()
	assert.Equal(t, 1, sup.count)
	sup.mu.Unlock()

	pub.mu.Lock()
	assert.Len(t, pub.subjects, 1)
	pub.mu.Unlock()
}

func TestInstall_FetchesEachAssetOnce(t *testing.T) {
	svc, p, _, _, downloads := newTestService(t)

	msg := model.ToolInstallationMessage{
		ToolAgentID:    "rmm",
		Version:        "1.0",
		RunCommandArgs: []string{"run"},
		Assets: []model.Asset{
			{ID: "a1", LocalFilename: "rules.yaml", Source: model.AssetSourceArtifactory},
		},
	}
	require.NoError(t, svc.Install(context.Background(), msg))

	assetPath := p.AssetPath("rmm", "rules.yaml")
	_, err := os.Stat(assetPath)
	require.NoError(t, err)
	// One fetch for the tool agent binary, one for asset a1.
	assert.Equal(t, int32(2), atomic.LoadInt32(downloads))
}

func TestInstall_ConcurrentInstallsDownloadExactlyOnce(t *testing.T) {
	svc, _, sup, _, downloads := newTestService(t)

	msg := model.ToolInstallationMessage{
		ToolAgentID:    "rmm",
		Version:        "1.0",
		RunCommandArgs: []string{"run"},
	}

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		i := i
		go func() {
			defer wg.Done()
			errs[i] = svc.Install(context.Background(), msg)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	sup.mu.Lock()
	assert.Equal(t, 1, sup.count, "registry.GetOrLock must make the existence-check-then-download atomic so only one racer installs")
	sup.mu.Unlock()
	assert.Equal(t, int32(1), atomic.LoadInt32(downloads))
}

func TestInstall_FailsOnUnknownAssetSource(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	msg := model.ToolInstallationMessage{
		ToolAgentID:    "rmm",
		Version:        "1.0",
		RunCommandArgs: []string{"run"},
		Assets: []model.Asset{
			{ID: "a1", LocalFilename: "rules.yaml", Source: "Unknown"},
		},
	}
	err := svc.Install(context.Background(), msg)
	require.Error(t, err)
}
