// Package state is the Update State Service (C12): a thin persisted
// record of an in-flight self-update, consulted at startup to detect a
// crash mid-update (spec.md §4.11, §4.12).
package state

import (
	"time"

	"github.com/openframe-oss/openframe-client/internal/model"
	"github.com/openframe-oss/openframe-client/internal/statefile"
)

// Service persists the single in-flight UpdateState document.
type Service struct {
	path  string
	store *statefile.Store[model.UpdateState]
}

// New creates a Service backed by the update-state document at path.
func New(path string) *Service {
	return &Service{path: path, store: statefile.New[model.UpdateState](path)}
}

// StateFilePath returns the path to the backing document.
func (s *Service) StateFilePath() string { return s.path }

// Load returns the persisted update state, or a zero-value (empty Phase)
// state if none is recorded.
func (s *Service) Load() (*model.UpdateState, error) {
	return s.store.Load()
}

// Save persists phase as the current state for targetVersion, stamping
// UpdatedAt.
func (s *Service) Save(targetVersion string, phase model.UpdatePhase, now time.Time) error {
	return s.store.Save(&model.UpdateState{
		TargetVersion: targetVersion,
		Phase:         phase,
		UpdatedAt:     now,
	})
}

// Clear removes the update-state document, marking no update in flight.
func (s *Service) Clear() error {
	return s.store.Clear()
}

// HasIncompleteUpdate reports whether a previous update started but never
// reached model.PhaseCompleted or model.PhaseFailed — the signal the
// bootstrap orchestrator (C15) uses to detect a crash mid-update.
func (s *Service) HasIncompleteUpdate() (bool, *model.UpdateState, error) {
	st, err := s.store.Load()
	if err != nil {
		return false, nil, err
	}
	if st.Phase == "" || st.Phase == model.PhaseCompleted || st.Phase == model.PhaseFailed {
		return false, st, nil
	}
	return true, st, nil
}
