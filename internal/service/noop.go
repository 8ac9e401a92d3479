package service

import (
	"context"
	"log/slog"
)

// NoopAdapter satisfies Adapter without talking to a real platform service
// manager (launchd/systemd/SCM). It is the default wired into the CLI since
// no concrete platform adapter is implemented here (spec.md §6 scopes the
// platform service-manager calls out) — it lets install/run/uninstall
// compile and exercise the rest of the flow without one.
type NoopAdapter struct{}

func (NoopAdapter) Install(_ context.Context, cfg Config) error {
	slog.Warn("service adapter not implemented, skipping OS service install", "name", cfg.Name)
	return nil
}

func (NoopAdapter) Uninstall(_ context.Context) error {
	slog.Warn("service adapter not implemented, skipping OS service uninstall")
	return nil
}

func (NoopAdapter) Status(_ context.Context) (Status, error) {
	return StatusUnknown, nil
}

func (NoopAdapter) Stop(_ context.Context) error { return nil }

func (NoopAdapter) Start(_ context.Context) error { return nil }

var _ Adapter = NoopAdapter{}
