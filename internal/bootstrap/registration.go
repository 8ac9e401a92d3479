// Package bootstrap implements the Registration/Auth Processor (C9) and
// the overall startup sequencing performed by the Bootstrap Orchestrator
// (C15).
package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/openframe-oss/openframe-client/internal/gateway"
	"github.com/openframe-oss/openframe-client/internal/identity"
)

// retryInterval is the fixed delay between unbounded bootstrap retries
// (spec.md §4.5: "retry unbounded with a fixed interval until success").
// A var, not a const, so tests can shrink it instead of waiting out real time.
var retryInterval = 5 * time.Second

// RegistrationKeyProvider supplies the initial shared key used to
// authenticate the one-time registration call. The Rust source hardcoded
// this as a single unexported literal (an explicit Open Question in
// spec.md §9); here it is a pluggable seam so the key can come from a
// flag, environment variable, or provisioning blob without code changes.
type RegistrationKeyProvider func() string

// StaticRegistrationKey returns a RegistrationKeyProvider for a fixed,
// compiled-in key — the default when no override is configured.
func StaticRegistrationKey(key string) RegistrationKeyProvider {
	return func() string { return key }
}

// EnvRegistrationKeyProvider reads the key from an environment variable,
// falling back to fallback when unset.
func EnvRegistrationKeyProvider(envVar, fallback string) RegistrationKeyProvider {
	return func() string {
		if v := os.Getenv(envVar); v != "" {
			return v
		}
		return fallback
	}
}

// RegistrationProcessor runs the one-shot-until-success registration step.
type RegistrationProcessor struct {
	client       *gateway.Client
	identity     *identity.Service
	keyProvider  RegistrationKeyProvider
	agentVersion string
	hostname     func() (string, error)
}

// NewRegistrationProcessor creates a RegistrationProcessor.
func NewRegistrationProcessor(client *gateway.Client, id *identity.Service, keyProvider RegistrationKeyProvider, agentVersion string) *RegistrationProcessor {
	return &RegistrationProcessor{
		client:       client,
		identity:     id,
		keyProvider:  keyProvider,
		agentVersion: agentVersion,
		hostname:     os.Hostname,
	}
}

// Process registers the agent if it has not already registered, retrying
// forever at retryInterval on any error. Returns only on success or ctx
// cancellation.
func (p *RegistrationProcessor) Process(ctx context.Context) error {
	current, err := p.identity.Load()
	if err != nil {
		return err
	}
	if current.Registered() {
		slog.Debug("registration already completed, skipping")
		return nil
	}

	hostname, err := p.hostname()
	if err != nil {
		hostname = ""
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, err := p.client.Register(ctx, p.keyProvider(), gateway.RegistrationRequest{
			Hostname:     hostname,
			AgentVersion: p.agentVersion,
		})
		if err == nil {
			if saveErr := p.identity.SaveRegistration(resp.MachineID, resp.ClientID, resp.ClientSecret); saveErr != nil {
				return saveErr
			}
			slog.Info("agent registered", "machine_id", resp.MachineID)
			return nil
		}

		slog.Warn("registration failed, retrying", "error", err, "retry_in", retryInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}
