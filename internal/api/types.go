package api

import (
	"toolbox/internal/deps"
	"toolbox/internal/imageconv"
	"toolbox/internal/preflight"
	"toolbox/internal/settings"
	"toolbox/internal/tasks"
	"toolbox/internal/transcode"
	"toolbox/internal/value"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Task kinds recorded in the history.
const (
	KindConvertAll    = "convert_all"
	KindConvertOne    = "convert_one"
	KindDeleteMatches = "delete_matching"
	KindSaveSettings  = "save_settings"
	KindLoadSettings  = "load_settings"
	KindImportKeys    = "import_keys"
	KindExportKeys    = "export_keys"
	KindRunJob        = "run_job"
	KindRunTranscode  = "run_transcode"
)

// Job backends accepted by RunJob.
const (
	BackendReplicate = "replicate"
	BackendRunPod    = "runpod"
	BackendFAL       = "fal"
)

// ConvertAllRequest converts every matching file in Dir. Empty SourceExt and
// Target fall back to the configured defaults.
type ConvertAllRequest struct {
	Dir       string `json:"dir"`
	SourceExt string `json:"sourceExt,omitempty"`
	Target    string `json:"target,omitempty"`
}

// ConvertAllResponse carries the batch report.
type ConvertAllResponse struct {
	Report imageconv.Report `json:"report"`
}

// ConvertOneRequest converts a single file.
type ConvertOneRequest struct {
	Path      string `json:"path"`
	SourceExt string `json:"sourceExt,omitempty"`
	Target    string `json:"target,omitempty"`
}

// ConvertOneResponse reports the written file.
type ConvertOneResponse struct {
	Output string `json:"output"`
}

// DeleteAllMatchingRequest removes files in Dir by extension. An empty Ext
// uses the configured source extension.
type DeleteAllMatchingRequest struct {
	Dir string `json:"dir"`
	Ext string `json:"ext,omitempty"`
}

// DeleteAllMatchingResponse reports how many files were removed.
type DeleteAllMatchingResponse struct {
	Deleted int `json:"deleted"`
}

// SaveSettingsRequest replaces the persisted settings.
type SaveSettingsRequest struct {
	Settings settings.Settings `json:"settings"`
}

// SaveSettingsResponse reports where settings were written.
type SaveSettingsResponse struct {
	Path string `json:"path"`
}

// LoadSettingsRequest reads the persisted settings.
type LoadSettingsRequest struct{}

// LoadSettingsResponse carries the settings and their location.
type LoadSettingsResponse struct {
	Settings settings.Settings `json:"settings"`
	Path     string            `json:"path"`
}

// KeysFileRequest names a keys file for import or export.
type KeysFileRequest struct {
	Path string `json:"path"`
}

// KeysFileResponse reports the number of keys imported or exported.
type KeysFileResponse struct {
	Count int `json:"count"`
}

// RunJobRequest submits one remote inference job. Target is the model version
// for Replicate, the endpoint for RunPod (empty uses the configured one) or
// the model id for FAL. A non-empty Credential overrides the stored key.
type RunJobRequest struct {
	Backend    string      `json:"backend"`
	Target     string      `json:"target"`
	Input      value.Value `json:"input"`
	Credential string      `json:"credential,omitempty"`
}

// RunJobResponse carries the job output.
type RunJobResponse struct {
	ID       string      `json:"id"`
	Output   value.Value `json:"output"`
	Attempts int         `json:"attempts"`
}

// RunTranscodeRequest describes one encoder run.
type RunTranscodeRequest = transcode.Request

// RunTranscodeResponse reports the encoder output file and captured log.
type RunTranscodeResponse struct {
	Output string `json:"output"`
	Log    string `json:"log"`
}

// CheckPathRequest asks whether Path is a directory.
type CheckPathRequest struct {
	Path string `json:"path"`
}

// CheckPathResponse reports what exists at the path.
type CheckPathResponse struct {
	Exists      bool `json:"exists"`
	IsDirectory bool `json:"isDirectory"`
}

// TasksRequest filters task history.
type TasksRequest struct {
	Statuses []string `json:"statuses,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// TasksResponse wraps task history entries.
type TasksResponse struct {
	Tasks []TaskItem `json:"tasks"`
}

// TaskItem describes a recorded task in a transport-friendly format.
type TaskItem struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
	Target     string `json:"target,omitempty"`
	Message    string `json:"message,omitempty"`
	ErrorKind  string `json:"errorKind,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// StatusRequest fetches runtime status.
type StatusRequest struct{}

// StatusResponse aggregates dependency, path, and history health.
type StatusResponse struct {
	ConfigPath     string              `json:"configPath,omitempty"`
	SettingsPath   string              `json:"settingsPath"`
	TasksDBPath    string              `json:"tasksDbPath,omitempty"`
	Dependencies   []deps.Status       `json:"dependencies"`
	Checks         []preflight.Result  `json:"checks"`
	Tasks          tasks.HealthSummary `json:"tasks"`
	ConfiguredKeys []string            `json:"configuredKeys"`
	DaemonRunning  bool                `json:"daemonRunning"`
	PID            int                 `json:"pid,omitempty"`
}
