// Package registry is the Installed-Tools Registry (C6): a persisted
// mapping of tool-agent-id to InstalledTool record, queried idempotently
// by the installation service and read by the supervisor and uninstall flow.
package registry

import (
	"sync"

	"github.com/openframe-oss/openframe-client/internal/model"
	"github.com/openframe-oss/openframe-client/internal/statefile"
)

// document is the on-disk shape: a map keyed by tool_agent_id.
type document struct {
	Tools map[string]*model.InstalledTool `json:"tools"`
}

// Registry persists and queries InstalledTool records.
type Registry struct {
	store *statefile.Store[document]
	mu    sync.Mutex // serializes writers within this process (spec.md §5)
}

// New creates a Registry backed by the document at path.
func New(path string) *Registry {
	return &Registry{store: statefile.New[document](path)}
}

// Get returns the installed tool record for id, or (nil, false) if absent.
// This is the idempotence check C10 step 1 relies on.
func (r *Registry) Get(toolAgentID string) (*model.InstalledTool, bool, error) {
	doc, err := r.store.Load()
	if err != nil {
		return nil, false, err
	}
	if doc.Tools == nil {
		return nil, false, nil
	}
	t, ok := doc.Tools[toolAgentID]
	return t, ok, nil
}

// Put persists (inserting or replacing) the InstalledTool record for its
// ToolAgentID.
func (r *Registry) Put(tool *model.InstalledTool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.WithLock(func() error {
		doc, err := r.store.Load()
		if err != nil {
			return err
		}
		if doc.Tools == nil {
			doc.Tools = make(map[string]*model.InstalledTool)
		}
		doc.Tools[tool.ToolAgentID] = tool
		return r.store.Save(doc)
	})
}

// GetOrLock returns the existing record if present; otherwise it calls
// install under the registry's lock and persists the record install
// returns. This makes the existence-check-then-insert atomic across
// concurrent callers, satisfying testable property 6.
func (r *Registry) GetOrLock(toolAgentID string, install func() (*model.InstalledTool, error)) (*model.InstalledTool, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.store.Load()
	if err != nil {
		return nil, false, err
	}
	if doc.Tools != nil {
		if existing, ok := doc.Tools[toolAgentID]; ok {
			return existing, true, nil
		}
	}

	tool, err := install()
	if err != nil {
		return nil, false, err
	}

	err = r.store.WithLock(func() error {
		doc, err := r.store.Load()
		if err != nil {
			return err
		}
		if doc.Tools == nil {
			doc.Tools = make(map[string]*model.InstalledTool)
		}
		doc.Tools[tool.ToolAgentID] = tool
		return r.store.Save(doc)
	})
	return tool, false, err
}

// All returns every persisted InstalledTool, used at bootstrap (C15) to
// start a supervisor for each previously installed tool.
func (r *Registry) All() ([]*model.InstalledTool, error) {
	doc, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	out := make([]*model.InstalledTool, 0, len(doc.Tools))
	for _, t := range doc.Tools {
		out = append(out, t)
	}
	return out, nil
}

// Delete removes a tool's record, used by the uninstall flow.
func (r *Registry) Delete(toolAgentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.WithLock(func() error {
		doc, err := r.store.Load()
		if err != nil {
			return err
		}
		delete(doc.Tools, toolAgentID)
		return r.store.Save(doc)
	})
}
