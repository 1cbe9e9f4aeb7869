package ipc

import "toolbox/internal/api"

// Operation DTOs travel unchanged between the CLI and the daemon.
type (
	ConvertAllRequest         = api.ConvertAllRequest
	ConvertAllResponse        = api.ConvertAllResponse
	ConvertOneRequest         = api.ConvertOneRequest
	ConvertOneResponse        = api.ConvertOneResponse
	DeleteAllMatchingRequest  = api.DeleteAllMatchingRequest
	DeleteAllMatchingResponse = api.DeleteAllMatchingResponse
	SaveSettingsRequest       = api.SaveSettingsRequest
	SaveSettingsResponse      = api.SaveSettingsResponse
	LoadSettingsRequest       = api.LoadSettingsRequest
	LoadSettingsResponse      = api.LoadSettingsResponse
	KeysFileRequest           = api.KeysFileRequest
	KeysFileResponse          = api.KeysFileResponse
	RunJobRequest             = api.RunJobRequest
	RunJobResponse            = api.RunJobResponse
	RunTranscodeRequest       = api.RunTranscodeRequest
	RunTranscodeResponse      = api.RunTranscodeResponse
	CheckPathRequest          = api.CheckPathRequest
	CheckPathResponse         = api.CheckPathResponse
	TasksRequest              = api.TasksRequest
	TasksResponse             = api.TasksResponse
	StatusRequest             = api.StatusRequest
	StatusResponse            = api.StatusResponse
)

// StopRequest shuts the daemon down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// ClearTasksRequest removes finished task history, or all of it when All is set.
type ClearTasksRequest struct {
	All bool `json:"all"`
}

// ClearTasksResponse reports number of removed entries.
type ClearTasksResponse struct {
	Removed int64 `json:"removed"`
}

// LogTailRequest reads the daemon log. A negative Offset returns the last
// Limit lines.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	Match      string `json:"match,omitempty"`
}

// LogTailResponse returns log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
