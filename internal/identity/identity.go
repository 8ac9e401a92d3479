// Package identity is the Configuration Service (C5): it exclusively owns
// MachineIdentity, persisting machine-id, client credentials, and the
// access token with atomic writes.
package identity

import (
	"log/slog"

	"github.com/openframe-oss/openframe-client/internal/model"
	"github.com/openframe-oss/openframe-client/internal/statefile"
)

// Service persists and retrieves the agent's MachineIdentity.
type Service struct {
	store *statefile.Store[model.MachineIdentity]
}

// New creates a Service backed by the identity document at path.
func New(path string) *Service {
	return &Service{store: statefile.New[model.MachineIdentity](path)}
}

// Load returns the persisted identity, or a zero-value identity if none
// has been written yet.
func (s *Service) Load() (*model.MachineIdentity, error) {
	return s.store.Load()
}

// SaveRegistration persists the machine id and client credentials returned
// by the registration endpoint (spec.md §4.5, §6).
func (s *Service) SaveRegistration(machineID, clientID, clientSecret string) error {
	return s.store.WithLock(func() error {
		current, err := s.store.Load()
		if err != nil {
			return err
		}
		current.MachineID = machineID
		current.ClientID = clientID
		current.ClientSecret = clientSecret
		slog.Info("registration persisted", "machine_id", machineID)
		return s.store.Save(current)
	})
}

// SaveAccessToken persists a refreshed access token from the auth endpoint.
func (s *Service) SaveAccessToken(accessToken string) error {
	return s.store.WithLock(func() error {
		current, err := s.store.Load()
		if err != nil {
			return err
		}
		current.AccessToken = accessToken
		slog.Debug("access token refreshed")
		return s.store.Save(current)
	})
}
