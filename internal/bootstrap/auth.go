package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/openframe-oss/openframe-client/internal/gateway"
	"github.com/openframe-oss/openframe-client/internal/identity"
)

// AuthProcessor runs the one-shot-until-success authentication step,
// exchanging persisted client credentials for an access token.
type AuthProcessor struct {
	client   *gateway.Client
	identity *identity.Service
}

// NewAuthProcessor creates an AuthProcessor.
func NewAuthProcessor(client *gateway.Client, id *identity.Service) *AuthProcessor {
	return &AuthProcessor{client: client, identity: id}
}

// Process fetches an access token if the persisted identity does not
// already carry a non-expired one (tracked externally — presence of the
// field is this processor's only signal), retrying forever at
// retryInterval on any error.
func (p *AuthProcessor) Process(ctx context.Context) error {
	current, err := p.identity.Load()
	if err != nil {
		return err
	}
	if current.Bootstrapped() {
		slog.Debug("auth already completed, skipping")
		return nil
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		current, err := p.identity.Load()
		if err != nil {
			return err
		}

		resp, err := p.client.Auth(ctx, gateway.AuthRequest{
			ClientID:     current.ClientID,
			ClientSecret: current.ClientSecret,
		})
		if err == nil {
			if saveErr := p.identity.SaveAccessToken(resp.AccessToken); saveErr != nil {
				return saveErr
			}
			slog.Info("agent authenticated")
			return nil
		}

		slog.Warn("auth failed, retrying", "error", err, "retry_in", retryInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}
