// Package model holds the persisted and wire data types shared across the
// agent: machine identity, installed-tool records, installation messages,
// and update state.
package model

import "time"

// SessionType is the Windows logon session an installed tool's run command
// should be placed into. Non-Windows builds accept the value but ignore it.
type SessionType string

const (
	SessionTypeService SessionType = "Service"
	SessionTypeUser     SessionType = "User"
	SessionTypeConsole  SessionType = "Console"
)

// ToolStatus is the lifecycle status of an InstalledTool record.
type ToolStatus string

const (
	ToolStatusInstalled ToolStatus = "Installed"
)

// MachineIdentity is the persisted bootstrap identity: machine id, client
// credentials, and access token. Owned exclusively by the identity package (C5).
type MachineIdentity struct {
	MachineID    string `json:"machine_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AccessToken  string `json:"access_token,omitempty"`
}

// Bootstrapped reports whether every field required after a successful
// bootstrap is present.
func (m *MachineIdentity) Bootstrapped() bool {
	return m != nil && m.MachineID != "" && m.ClientID != "" && m.ClientSecret != "" && m.AccessToken != ""
}

// Registered reports whether registration has already produced an identity,
// independent of whether auth has run yet.
func (m *MachineIdentity) Registered() bool {
	return m != nil && m.MachineID != "" && m.ClientID != "" && m.ClientSecret != ""
}

// AssetSource identifies where an Asset's bytes should be fetched from.
type AssetSource string

const (
	AssetSourceArtifactory AssetSource = "Artifactory"
	AssetSourceToolAPI     AssetSource = "ToolApi"
)

// Asset is a single file that must be placed alongside a tool agent binary.
type Asset struct {
	ID            string      `json:"id"`
	LocalFilename string      `json:"local_filename"`
	Source        AssetSource `json:"source"`
	Path          string      `json:"path,omitempty"`
}

// ToolInstallationMessage is the inbound wire message that triggers C10.
type ToolInstallationMessage struct {
	ToolAgentID            string      `json:"tool_agent_id"`
	ToolID                 string      `json:"tool_id"`
	ToolType               string      `json:"tool_type,omitempty"`
	Version                string      `json:"version"`
	SessionType             SessionType `json:"session_type"`
	InstallationCommandArgs []string    `json:"installation_command_args,omitempty"`
	RunCommandArgs           []string    `json:"run_command_args"`
	UninstallationCommandArgs []string  `json:"uninstallation_command_args,omitempty"`
	Assets                  []Asset     `json:"assets,omitempty"`
}

// InstalledTool is the persisted record created by a successful C10 install.
// This is the canonical (richer) shape named in spec.md's Open Question:
// it carries SessionType, ToolID, ToolType, and UninstallationCommandArgs,
// unlike the leaner client-subtree copy in the original source.
type InstalledTool struct {
	ToolAgentID                string      `json:"tool_agent_id"`
	ToolID                     string      `json:"tool_id"`
	ToolType                   string      `json:"tool_type,omitempty"`
	Version                    string      `json:"version"`
	SessionType                SessionType `json:"session_type"`
	RunCommandArgs             []string    `json:"run_command_args"`
	UninstallationCommandArgs  []string    `json:"uninstallation_command_args,omitempty"`
	Status                     ToolStatus  `json:"status"`
}

// ToolConnectionMessage is the outbound wire payload published after a
// successful install to machine.<machine_id>.toolconnection.
type ToolConnectionMessage struct {
	ToolAgentID string `json:"tool_agent_id"`
}

// UpdatePhase is the progress marker for an in-flight self-update.
type UpdatePhase string

const (
	PhaseInitiated        UpdatePhase = "Initiated"
	PhaseDownloading       UpdatePhase = "Downloading"
	PhaseExtracting        UpdatePhase = "Extracting"
	PhasePreparingUpdater  UpdatePhase = "PreparingUpdater"
	PhaseUpdaterLaunched   UpdatePhase = "UpdaterLaunched"
	PhaseCompleted         UpdatePhase = "Completed"
	PhaseFailed            UpdatePhase = "Failed"
)

// UpdateState is the single persisted document describing an in-progress
// self-update. Its absence on disk means "idle" (C12).
type UpdateState struct {
	TargetVersion string      `json:"target_version"`
	Phase         UpdatePhase `json:"phase"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// ClientStatus is the control-plane-visible status surfaced during a
// self-update, read by the control plane per spec.md §7.
type ClientStatus string

const (
	ClientStatusIdle     ClientStatus = ""
	ClientStatusUpdating ClientStatus = "Updating"
	ClientStatusSuccess  ClientStatus = "Success"
	ClientStatusFailed   ClientStatus = "Failed"
)

// DownloadConfiguration describes where to fetch a self-update payload for
// a specific operating system (spec.md §4.11 step 4).
type DownloadConfiguration struct {
	OS             string `json:"os"`
	Link           string `json:"link"`
	FileName       string `json:"file_name"`
	AgentFileName  string `json:"agent_file_name"`
}

// SelfUpdateMessage is the inbound wire message that triggers C13.
type SelfUpdateMessage struct {
	Version                string                   `json:"version"`
	DownloadConfigurations []DownloadConfiguration  `json:"download_configurations"`
}
