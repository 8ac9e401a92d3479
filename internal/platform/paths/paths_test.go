package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_DerivesSecuredDirUnderAppSupport(t *testing.T) {
	p := build("/app-support", "/logs", false)
	assert.Equal(t, "/app-support", p.AppSupportDir())
	assert.Equal(t, "/logs", p.LogsDir())
	assert.Equal(t, filepath.Join("/app-support", "secure"), p.SecuredDir())
	assert.False(t, p.DevMode())
}

func TestToolPaths_AreScopedUnderAppSupport(t *testing.T) {
	p := build("/app-support", "/logs", false)
	assert.Equal(t, filepath.Join("/app-support", "rmm"), p.ToolDir("rmm"))
	assert.Equal(t, filepath.Join("/app-support", "rmm", "config.yaml"), p.AssetPath("rmm", "config.yaml"))
}

func TestWellKnownFiles_LiveUnderSecuredDir(t *testing.T) {
	p := build("/app-support", "/logs", false)
	securedDir := p.SecuredDir()
	assert.Equal(t, filepath.Join(securedDir, "identity.json"), p.IdentityFile())
	assert.Equal(t, filepath.Join(securedDir, "installed_tools.json"), p.InstalledToolsFile())
	assert.Equal(t, filepath.Join(securedDir, "update_state.json"), p.UpdateStateFile())
	assert.Equal(t, filepath.Join(securedDir, "shared_token.enc"), p.SharedTokenFile())
	assert.Equal(t, filepath.Join(securedDir, "agent_config.json"), p.AgentConfigFile())
}

func TestEnsureDirectories_CreatesAllThree(t *testing.T) {
	root := t.TempDir()
	p := build(filepath.Join(root, "app-support"), filepath.Join(root, "logs"), false)

	require.NoError(t, p.EnsureDirectories())
	assert.DirExists(t, p.AppSupportDir())
	assert.DirExists(t, p.LogsDir())
	assert.DirExists(t, p.SecuredDir())
}

func TestPerformHealthCheck_NoIssuesOnWritableDirectories(t *testing.T) {
	root := t.TempDir()
	p := build(filepath.Join(root, "app-support"), filepath.Join(root, "logs"), false)

	report, err := p.PerformHealthCheck()
	require.NoError(t, err)
	assert.False(t, report.HasIssues())
}

func TestExpand_ExpandsLeadingTilde(t *testing.T) {
	got, err := Expand("~/foo/bar")
	require.NoError(t, err)
	assert.NotContains(t, got, "~")
	assert.Contains(t, got, filepath.Join("foo", "bar"))
}

func TestExpand_LeavesAbsolutePathsAlone(t *testing.T) {
	got, err := Expand("/already/absolute")
	require.NoError(t, err)
	assert.Equal(t, "/already/absolute", got)
}
