package identity

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openframe-oss/openframe-client/internal/model"
)

func TestLoad_MissingFileReturnsZeroIdentity(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "identity.json"))
	got, err := svc.Load()
	require.NoError(t, err)
	assert.False(t, got.Registered())
	assert.False(t, got.Bootstrapped())
}

func TestSaveRegistration_ThenSaveAccessToken(t *testing.T) {
	svc := New(filepath.Join(t.TempDir(), "identity.json"))

	require.NoError(t, svc.SaveRegistration("m1", "c1", "s1"))
	got, err := svc.Load()
	require.NoError(t, err)
	assert.True(t, got.Registered())
	assert.False(t, got.Bootstrapped())
	assert.Equal(t, model.MachineIdentity{MachineID: "m1", ClientID: "c1", ClientSecret: "s1"}, *got)

	require.NoError(t, svc.SaveAccessToken("t1"))
	got, err = svc.Load()
	require.NoError(t, err)
	assert.True(t, got.Bootstrapped())
	assert.Equal(t, "t1", got.AccessToken)
	// Registration fields survive the access-token update.
	assert.Equal(t, "m1", got.MachineID)
}
