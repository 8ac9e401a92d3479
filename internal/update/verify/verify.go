// Package verify performs the optional artifact-verification phase added to
// the Self-Update Engine (C13): checking a cosign bundle published alongside
// a self-update archive, when one exists. An absent bundle is a soft-fail
// (warn and proceed, matching the teacher's own unsigned-artifact posture);
// a present-but-invalid bundle is a hard failure, treated identically to an
// extraction failure.
package verify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sigstore/sigstore-go/pkg/bundle"
	"github.com/sigstore/sigstore-go/pkg/root"
	"github.com/sigstore/sigstore-go/pkg/tuf"
	sgverify "github.com/sigstore/sigstore-go/pkg/verify"
)

const (
	expectedOIDCIssuer = "https://token.actions.githubusercontent.com"
	expectedSANRegex    = `^https://github\.com/openframe-oss/`
)

// Verifier checks a cosign-bundle signature over a downloaded self-update
// archive's bytes.
type Verifier struct {
	trustedRootOnce sync.Once
	trustedRoot     *root.LiveTrustedRoot
	trustedRootErr  error
}

// New creates a Verifier. Construction is cheap; the trusted root is
// fetched lazily on first use.
func New() *Verifier {
	return &Verifier{}
}

// VerifyBundle checks archive against the cosign bundle bytes in bundleJSON
// (the sidecar "<asset>.sigstore.json" published next to a release asset).
// A nil bundleJSON is treated as "no bundle published" and returns nil with
// a logged warning rather than an error.
func (v *Verifier) VerifyBundle(ctx context.Context, archive, bundleJSON []byte) error {
	if len(bundleJSON) == 0 {
		slog.Warn("no cosign bundle found for self-update archive, proceeding unverified")
		return nil
	}

	b := new(bundle.Bundle)
	if err := b.UnmarshalJSON(bundleJSON); err != nil {
		return fmt.Errorf("failed to parse cosign bundle: %w", err)
	}

	trustedRoot, err := v.getTrustedRoot()
	if err != nil {
		return fmt.Errorf("failed to fetch sigstore trusted root: %w", err)
	}

	verifier, err := sgverify.NewVerifier(trustedRoot,
		sgverify.WithSignedCertificateTimestamps(1),
		sgverify.WithTransparencyLog(1),
		sgverify.WithIntegratedTimestamps(1),
	)
	if err != nil {
		return fmt.Errorf("failed to construct verifier: %w", err)
	}

	identity, err := sgverify.NewShortCertificateIdentity(expectedOIDCIssuer, "", "", expectedSANRegex)
	if err != nil {
		return fmt.Errorf("failed to build certificate identity: %w", err)
	}

	_, err = verifier.Verify(b, sgverify.NewPolicy(
		sgverify.WithArtifact(bytes.NewReader(archive)),
		sgverify.WithCertificateIdentity(identity),
	))
	if err != nil {
		return fmt.Errorf("cosign bundle verification failed: %w", err)
	}

	slog.Info("self-update archive signature verified")
	return nil
}

func (v *Verifier) getTrustedRoot() (*root.LiveTrustedRoot, error) {
	v.trustedRootOnce.Do(func() {
		v.trustedRoot, v.trustedRootErr = root.NewLiveTrustedRoot(tuf.DefaultOptions())
	})
	return v.trustedRoot, v.trustedRootErr
}
