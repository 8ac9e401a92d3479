// Package agentconfig persists the install-time parameters (spec.md §6
// CLI surface: --serverUrl, --openframe-secret, --openframe-token-path,
// --devMode) so that `run`, invoked later by the service manager with no
// arguments, can recover them without re-prompting.
package agentconfig

import "github.com/openframe-oss/openframe-client/internal/statefile"

// Config is the persisted record of an `install` invocation's flags.
type Config struct {
	ServerURL       string `json:"server_url"`
	WSBaseURL       string `json:"ws_base_url"`
	ToolAPIBaseURL  string `json:"tool_api_base_url"`
	ArtifactBaseURL string `json:"artifactory_base_url"`
	OpenFrameSecret string `json:"openframe_secret"`
	TokenPath       string `json:"openframe_token_path"`
	DevMode         bool   `json:"dev_mode"`
}

// Store persists Config at path using the shared write-temp-then-rename
// discipline (internal/statefile), guarded by an advisory file lock.
type Store struct {
	inner *statefile.Store[Config]
}

// New creates a Store rooted at path.
func New(path string) *Store {
	return &Store{inner: statefile.New[Config](path)}
}

// Load returns the persisted Config, or a zero Config if install has not
// run yet.
func (s *Store) Load() (Config, error) {
	cfg, err := s.inner.Load()
	if err != nil {
		return Config{}, err
	}
	return *cfg, nil
}

// Save persists cfg.
func (s *Store) Save(cfg Config) error {
	return s.inner.Save(&cfg)
}
