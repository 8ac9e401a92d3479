// Package clientstatus tracks the control-plane-visible self-update
// status (spec.md §7: "status ∈ {Updating, Success, Failed} readable by
// the control plane") and optionally announces transitions over the
// messaging session.
package clientstatus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openframe-oss/openframe-client/internal/model"
)

// Publisher is the subset of the Messaging Client (C8) used to announce
// status transitions. Defined here to avoid importing messaging directly.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// statusMessage is the outbound payload describing a status transition.
type statusMessage struct {
	Status        model.ClientStatus `json:"status"`
	TargetVersion string             `json:"target_version,omitempty"`
}

// Tracker holds the current client status in memory and optionally
// publishes transitions to machine.<machine_id>.clientstatus.
type Tracker struct {
	machineID string
	publisher Publisher

	mu     sync.Mutex
	status model.ClientStatus
	target string
}

// New creates a Tracker. publisher may be nil if no outbound announcement
// is desired (e.g. in tests).
func New(machineID string, publisher Publisher) *Tracker {
	return &Tracker{machineID: machineID, publisher: publisher}
}

// SetStatus implements engine.StatusSetter.
func (t *Tracker) SetStatus(status model.ClientStatus, targetVersion string) {
	t.mu.Lock()
	t.status = status
	t.target = targetVersion
	t.mu.Unlock()

	slog.Info("client status changed", "status", status, "target_version", targetVersion)
	if t.publisher == nil {
		return
	}
	subject := fmt.Sprintf("machine.%s.clientstatus", t.machineID)
	if err := t.publisher.Publish(context.Background(), subject, statusMessage{Status: status, TargetVersion: targetVersion}); err != nil {
		slog.Warn("failed to publish client status", "error", err)
	}
}

// Current returns the last-set status and its target version.
func (t *Tracker) Current() (model.ClientStatus, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.target
}
