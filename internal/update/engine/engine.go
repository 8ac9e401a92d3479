// Package engine implements the Self-Update Engine (C13): validating an
// inbound self-update request, downloading and verifying the new binary,
// repackaging it for the update driver, and launching that driver as a
// detached process before returning (spec.md §4.11).
package engine

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/openframe-oss/openframe-client/internal/agenterr"
	"github.com/openframe-oss/openframe-client/internal/download"
	"github.com/openframe-oss/openframe-client/internal/model"
	"github.com/openframe-oss/openframe-client/internal/update/driver"
	"github.com/openframe-oss/openframe-client/internal/update/state"
	"github.com/openframe-oss/openframe-client/internal/update/verify"
)

// StatusSetter is implemented by whatever component tracks the
// control-plane-visible client status (spec.md §7).
type StatusSetter interface {
	SetStatus(status model.ClientStatus, targetVersion string)
}

// Engine orchestrates C13's process_update operation.
type Engine struct {
	downloader   *download.Service
	verifier     *verify.Verifier
	state        *state.Service
	status       StatusSetter
	driver       *driver.Launcher
	tempDir      string
	servicePath  string
	serviceName  string

	mu      sync.Mutex
	running bool
}

// New creates an Engine. servicePath is the current executable's path and
// serviceName is the OS service name, both forwarded to the update driver.
func New(dl *download.Service, v *verify.Verifier, st *state.Service, status StatusSetter, drv *driver.Launcher, tempDir, servicePath, serviceName string) *Engine {
	return &Engine{
		downloader:  dl,
		verifier:    v,
		state:       st,
		status:      status,
		driver:      drv,
		tempDir:     tempDir,
		servicePath: servicePath,
		serviceName: serviceName,
	}
}

// ProcessUpdate runs C13's process_update(msg) steps 1-8.
func (e *Engine) ProcessUpdate(ctx context.Context, msg model.SelfUpdateMessage) error {
	if !e.tryAcquire() {
		return agenterr.New(agenterr.CategoryUpdate, agenterr.KindUpdateInProgress, "an update is already in progress")
	}
	defer e.release()

	version, err := validateVersion(msg.Version)
	if err != nil {
		return err
	}

	e.status.SetStatus(model.ClientStatusUpdating, version)
	if err := e.state.Save(version, model.PhaseInitiated, time.Now()); err != nil {
		return e.fail(version, err)
	}

	cfg, ok := selectConfiguration(msg.DownloadConfigurations, runtime.GOOS)
	if !ok {
		return e.fail(version, fmt.Errorf("no download configuration for os %q", runtime.GOOS))
	}

	if err := e.state.Save(version, model.PhaseDownloading, time.Now()); err != nil {
		return e.fail(version, err)
	}
	binary, err := e.downloader.DownloadAndExtract(ctx, cfg)
	if err != nil {
		return e.fail(version, err)
	}

	if err := e.state.Save(version, model.PhaseExtracting, time.Now()); err != nil {
		return e.fail(version, err)
	}
	if err := e.maybeVerify(ctx, cfg, binary); err != nil {
		return e.fail(version, err)
	}

	if err := e.state.Save(version, model.PhasePreparingUpdater, time.Now()); err != nil {
		return e.fail(version, err)
	}
	artifactPath, err := e.repackage(binary, cfg)
	if err != nil {
		return e.fail(version, err)
	}

	if err := e.state.Save(version, model.PhaseUpdaterLaunched, time.Now()); err != nil {
		return e.fail(version, err)
	}
	if err := e.driver.Launch(ctx, driver.Params{
		ArtifactPath:    artifactPath,
		ServiceName:     e.serviceName,
		ExecutablePath:  e.servicePath,
		StateFilePath:   e.state.StateFilePath(),
	}); err != nil {
		return e.fail(version, err)
	}

	slog.Info("update driver launched, agent will be stopped externally", "target_version", version)
	return nil
}

func (e *Engine) tryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// fail restores client-info status to Failed, clears UpdateState, and
// returns the original error wrapped for the caller.
func (e *Engine) fail(version string, cause error) error {
	e.status.SetStatus(model.ClientStatusFailed, version)
	if err := e.state.Clear(); err != nil {
		slog.Error("failed to clear update state after failure", "error", err)
	}
	slog.Error("self-update failed", "target_version", version, "error", cause)
	return fmt.Errorf("self-update failed: %w", cause)
}

func (e *Engine) maybeVerify(ctx context.Context, cfg model.DownloadConfiguration, binary []byte) error {
	bundleURL := cfg.Link + ".sigstore.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bundleURL, nil)
	if err != nil {
		return nil // malformed sidecar URL: treat as no bundle published
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil || resp == nil || resp.StatusCode != http.StatusOK {
		if resp != nil {
			resp.Body.Close()
		}
		return e.verifier.VerifyBundle(ctx, binary, nil)
	}
	defer resp.Body.Close()
	bundleJSON := make([]byte, 0)
	buf := make([]byte, 4096)
	for {
		n, rerr := resp.Body.Read(buf)
		bundleJSON = append(bundleJSON, buf[:n]...)
		if rerr != nil {
			break
		}
	}
	return e.verifier.VerifyBundle(ctx, binary, bundleJSON)
}

// repackage writes binary to a freshly named temp artifact: a zip on
// Windows (the driver's Expand-Archive step expects one), or the raw
// binary on POSIX.
func (e *Engine) repackage(binary []byte, cfg model.DownloadConfiguration) (string, error) {
	id := uuid.NewString()
	if runtime.GOOS == "windows" {
		path := filepath.Join(e.tempDir, fmt.Sprintf("openframe-update-%s.zip", id))
		if err := writeZip(path, cfg.AgentFileName, binary); err != nil {
			return "", err
		}
		return path, nil
	}
	name := cfg.AgentFileName
	if name == "" {
		name = "agent"
	}
	path := filepath.Join(e.tempDir, fmt.Sprintf("openframe-update-%s-%s", id, name))
	if err := os.WriteFile(path, binary, 0644); err != nil {
		return "", fmt.Errorf("failed to write update artifact: %w", err)
	}
	return path, nil
}

func writeZip(path, entryName string, data []byte) error {
	if entryName == "" {
		entryName = "agent.exe"
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create update archive: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(entryName)
	if err != nil {
		return fmt.Errorf("failed to add entry to update archive: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write update archive entry: %w", err)
	}
	return zw.Close()
}

func validateVersion(v string) (string, error) {
	if v == "" {
		return "", agenterr.New(agenterr.CategoryVersion, agenterr.KindInvalidVersion, "version is empty")
	}
	trimmed := strings.TrimPrefix(v, "v")
	if _, err := semver.NewVersion(trimmed); err != nil {
		return "", agenterr.Wrap(agenterr.CategoryVersion, agenterr.KindInvalidVersion, fmt.Sprintf("invalid version %q", v), err)
	}
	return v, nil
}

func selectConfiguration(cfgs []model.DownloadConfiguration, goos string) (model.DownloadConfiguration, bool) {
	want := goos
	if goos == "darwin" {
		want = "macos"
	}
	for _, c := range cfgs {
		if strings.EqualFold(c.OS, want) || strings.EqualFold(c.OS, goos) {
			return c, true
		}
	}
	return model.DownloadConfiguration{}, false
}
