package driver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_LinuxScriptSubstitutesParams(t *testing.T) {
	l := New(t.TempDir())
	out, err := l.render("update_linux.sh.tmpl", Params{
		ArtifactPath:   "/tmp/artifact",
		ServiceName:    "com.openframe.client",
		ExecutablePath: "/usr/local/bin/openframe-client",
		StateFilePath:  "/var/lib/openframe/update_state.json",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "/tmp/artifact")
	assert.Contains(t, out, "com.openframe.client")
	assert.Contains(t, out, "/usr/local/bin/openframe-client")
}

func TestRender_MacOSPlistReferencesScriptPath(t *testing.T) {
	l := New(t.TempDir())
	out, err := l.render("updater.plist.tmpl", Params{
		ArtifactPath: "/tmp/artifact",
		ScriptPath:   "/tmp/openframe-updater-abc.sh",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "/tmp/openframe-updater-abc.sh")
}

func TestRender_WindowsScriptSubstitutesParams(t *testing.T) {
	l := New(t.TempDir())
	out, err := l.render("update_windows.ps1.tmpl", Params{
		ArtifactPath:   `C:\Temp\artifact.zip`,
		ServiceName:    "OpenFrameClient",
		ExecutablePath: `C:\Program Files\OpenFrame\openframe-client.exe`,
		StateFilePath:  `C:\ProgramData\OpenFrame\secure\update_state.json`,
	})
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "OpenFrameClient"))
}

func TestWriteArtifact_WritesUniquelyNamedFile(t *testing.T) {
	l := New(t.TempDir())
	path, err := l.writeArtifact(".sh", "#!/bin/sh\necho hi", 0700)
	require.NoError(t, err)
	assert.Contains(t, path, "openframe-updater-")
	assert.Contains(t, path, ".sh")
}
