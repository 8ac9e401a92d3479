package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openframe-oss/openframe-client/internal/model"
)

func TestHasIncompleteUpdate_NoDocumentIsFalse(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "update_state.json"))
	incomplete, st, err := s.HasIncompleteUpdate()
	require.NoError(t, err)
	assert.False(t, incomplete)
	assert.Equal(t, model.UpdatePhase(""), st.Phase)
}

func TestHasIncompleteUpdate_MidPhaseIsTrue(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "update_state.json"))
	require.NoError(t, s.Save("v2.0.0", model.PhaseDownloading, time.Now()))

	incomplete, st, err := s.HasIncompleteUpdate()
	require.NoError(t, err)
	assert.True(t, incomplete)
	assert.Equal(t, "v2.0.0", st.TargetVersion)
}

func TestHasIncompleteUpdate_CompletedIsFalse(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "update_state.json"))
	require.NoError(t, s.Save("v2.0.0", model.PhaseCompleted, time.Now()))

	incomplete, _, err := s.HasIncompleteUpdate()
	require.NoError(t, err)
	assert.False(t, incomplete)
}

func TestClear_RemovesIncompleteMarker(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "update_state.json"))
	require.NoError(t, s.Save("v2.0.0", model.PhaseInitiated, time.Now()))
	require.NoError(t, s.Clear())

	incomplete, _, err := s.HasIncompleteUpdate()
	require.NoError(t, err)
	assert.False(t, incomplete)
}
