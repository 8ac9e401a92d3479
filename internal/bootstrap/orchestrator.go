package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/openframe-oss/openframe-client/internal/clientstatus"
	"github.com/openframe-oss/openframe-client/internal/download"
	"github.com/openframe-oss/openframe-client/internal/gateway"
	"github.com/openframe-oss/openframe-client/internal/identity"
	"github.com/openframe-oss/openframe-client/internal/messaging"
	"github.com/openframe-oss/openframe-client/internal/model"
	"github.com/openframe-oss/openframe-client/internal/placeholder"
	"github.com/openframe-oss/openframe-client/internal/platform/paths"
	"github.com/openframe-oss/openframe-client/internal/registry"
	"github.com/openframe-oss/openframe-client/internal/tool/install"
	"github.com/openframe-oss/openframe-client/internal/tool/supervisor"
	"github.com/openframe-oss/openframe-client/internal/toolfiles"
	"github.com/openframe-oss/openframe-client/internal/update/driver"
	"github.com/openframe-oss/openframe-client/internal/update/engine"
	"github.com/openframe-oss/openframe-client/internal/update/state"
	"github.com/openframe-oss/openframe-client/internal/update/verify"
)

const (
	toolInstallAckWait    = 120 * time.Second
	toolInstallMaxDeliver = 10
	clientUpdateAckWait   = 120 * time.Second
	clientUpdateMaxDel    = 10
)

// OrchestratorConfig collects every external parameter the Bootstrap
// Orchestrator (C15) needs to wire C1-C13 together and sequence startup.
type OrchestratorConfig struct {
	ServerURL          string // gateway REST base URL
	WSBaseURL          string // messaging broker base URL, e.g. wss://broker.example.com
	ToolAPIBaseURL     string
	ArtifactoryBaseURL string
	AgentVersion       string
	OpenFrameSecret    string
	RegistrationKey    RegistrationKeyProvider
	DevMode            bool
	ServiceName        string
	ExecutablePath     string
	TempDir            string
}

// Orchestrator sequences the Bootstrap state machine (spec.md §4.14):
// registration -> auth -> crash recovery -> broker connection -> listener
// start -> tool supervision, then blocks indefinitely.
type Orchestrator struct {
	cfg   OrchestratorConfig
	paths *paths.Paths
}

// NewOrchestrator resolves the directory layout for cfg.DevMode and
// returns an Orchestrator ready to Run.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	var p *paths.Paths
	if cfg.DevMode || os.Getenv("OPENFRAME_DEV_MODE") == "1" {
		dp, err := paths.NewDevMode()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve development paths: %w", err)
		}
		p = dp
	} else {
		p = paths.New()
	}
	return &Orchestrator{cfg: cfg, paths: p}, nil
}

// Run performs the full bootstrap sequence and then blocks until ctx is
// canceled. Registration, auth, and the initial broker connection retry
// unbounded; nothing here returns except on success or cancellation.
func (o *Orchestrator) Run(ctx context.Context) error {
	if report, err := o.paths.PerformHealthCheck(); err != nil {
		return fmt.Errorf("directory health check failed: %w", err)
	} else if report.HasIssues() {
		for _, issue := range report.Issues {
			slog.Warn("directory health issue", "dir", issue.Dir, "message", issue.Message)
		}
	}

	gw := gateway.New(o.cfg.ServerURL, nil)
	idSvc := identity.New(o.paths.IdentityFile())

	keyProvider := o.cfg.RegistrationKey
	if keyProvider == nil {
		keyProvider = StaticRegistrationKey("")
	}
	reg := NewRegistrationProcessor(gw, idSvc, keyProvider, o.cfg.AgentVersion)
	if err := reg.Process(ctx); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	auth := NewAuthProcessor(gw, idSvc)
	if err := auth.Process(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	ident, err := idSvc.Load()
	if err != nil {
		return fmt.Errorf("failed to load identity after bootstrap: %w", err)
	}

	machineID := ident.MachineID

	updateStateSvc := state.New(o.paths.UpdateStateFile())
	o.recoverUpdateState(updateStateSvc, clientstatus.New(machineID, nil))

	session := messaging.New(o.wsURL(ident.AccessToken), map[string]string{
		"X-Device-Name": machineID,
	})
	statusTracker := clientstatus.New(machineID, session)

	resolverCtx := placeholder.Context{
		ServerURL:       o.cfg.ServerURL,
		OpenFrameSecret: o.cfg.OpenFrameSecret,
		TokenPath:       o.paths.SharedTokenFile(),
		AppSupportDir:   o.paths.AppSupportDir(),
	}

	toolsRegistry := registry.New(o.paths.InstalledToolsFile())
	sup := supervisor.New(toolsRegistry, resolverCtx, o.paths)

	tokenFn := func() string {
		current, err := idSvc.Load()
		if err != nil {
			return ""
		}
		return current.AccessToken
	}
	filesClient := toolfiles.New(o.cfg.ArtifactoryBaseURL, nil, tokenFn)
	toolAPIClient := toolfiles.New(o.cfg.ToolAPIBaseURL, nil, tokenFn)
	installSvc := install.New(o.paths, filesClient, toolAPIClient, toolsRegistry, resolverCtx, sup, session, machineID)

	downloader := download.New(&http.Client{Timeout: 300 * time.Second})
	verifier := verify.New()
	drv := driver.New(o.cfg.TempDir)
	updateEngine := engine.New(downloader, verifier, updateStateSvc, statusTracker, drv, o.cfg.TempDir, o.cfg.ExecutablePath, o.cfg.ServiceName)

	// tool-install is filtered per-machine: only messages targeting this
	// machine's id are ever routed here.
	session.Subscribe(messaging.ConsumerConfig{
		FilterSubject:  fmt.Sprintf("machine.%s.tool-install", machineID),
		DeliverSubject: fmt.Sprintf("machine.%s.tool-install.inbox", machineID),
		DurableName:    fmt.Sprintf("machine_%s_tool-install_consumer_v2", machineID),
		AckWait:        toolInstallAckWait,
		MaxDeliver:     toolInstallMaxDeliver,
		DeliverPolicy:  messaging.DeliverNew,
	}, toolInstallHandler(installSvc))

	// client-update is filtered as a broadcast: every machine's consumer is
	// bound to the same machine.all.client-update subject, and each still
	// receives its own per-machine deliver subject (spec.md §4.7).
	session.Subscribe(messaging.ConsumerConfig{
		FilterSubject:  "machine.all.client-update",
		DeliverSubject: fmt.Sprintf("machine.%s.client-update.inbox", machineID),
		DurableName:    fmt.Sprintf("machine_%s_client-update_consumer_v2", machineID),
		AckWait:        clientUpdateAckWait,
		MaxDeliver:     clientUpdateMaxDel,
		DeliverPolicy:  messaging.DeliverNew,
	}, selfUpdateHandler(updateEngine))

	go func() {
		if err := session.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("messaging session terminated permanently", "error", err)
		}
	}()

	if err := sup.Run(ctx); err != nil {
		slog.Error("failed to start supervision for persisted tools", "error", err)
	}

	slog.Info("bootstrap complete, agent running", "machine_id", machineID)
	<-ctx.Done()
	return ctx.Err()
}

// recoverUpdateState implements the crash-recovery check run before
// registration/auth status is surfaced (spec.md §4.11 "Crash-recovery").
func (o *Orchestrator) recoverUpdateState(svc *state.Service, tracker *clientstatus.Tracker) {
	incomplete, st, err := svc.HasIncompleteUpdate()
	if err != nil {
		slog.Error("failed to load update state during crash recovery", "error", err)
		return
	}
	if st == nil || st.Phase == "" {
		return // idle, nothing to recover
	}
	if st.Phase == model.PhaseCompleted {
		slog.Info("self-update completed across restart", "target_version", st.TargetVersion)
		tracker.SetStatus(model.ClientStatusSuccess, st.TargetVersion)
	} else if incomplete {
		slog.Warn("self-update did not complete before restart", "target_version", st.TargetVersion, "phase", st.Phase)
		tracker.SetStatus(model.ClientStatusFailed, st.TargetVersion)
	}
	if err := svc.Clear(); err != nil {
		slog.Error("failed to clear update state after crash recovery", "error", err)
	}
}

func (o *Orchestrator) wsURL(accessToken string) string {
	return fmt.Sprintf("%s/ws/nats?authorization=%s", o.cfg.WSBaseURL, accessToken)
}

func toolInstallHandler(installSvc *install.Service) messaging.Handler {
	return func(ctx context.Context, data json.RawMessage) error {
		var msg model.ToolInstallationMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("malformed tool installation message: %w", err)
		}
		return installSvc.Install(ctx, msg)
	}
}

func selfUpdateHandler(eng *engine.Engine) messaging.Handler {
	return func(ctx context.Context, data json.RawMessage) error {
		var msg model.SelfUpdateMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("malformed self-update message: %w", err)
		}
		return eng.ProcessUpdate(ctx, msg)
	}
}
