package ipc

import (
	"time"

	"facecam/internal/detection"
	"facecam/internal/library"
)

// Video is the wire form of a stored video.
type Video = library.StoredVideo

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse combines daemon and session state.
type StatusResponse struct {
	Running        bool            `json:"running"`
	PID            int             `json:"pid"`
	StartedAt      time.Time       `json:"started_at"`
	Status         string          `json:"status"`
	Message        string          `json:"message"`
	Notice         string          `json:"notice"`
	Recording      bool            `json:"recording"`
	RecordingState string          `json:"recording_state"`
	DetectionMode  string          `json:"detection_mode"`
	Overlay        string          `json:"overlay"`
	Detections     int             `json:"detections"`
	Stats          detection.Stats `json:"stats"`
	VideoCount     int             `json:"video_count"`
	TotalBytes     int64           `json:"total_bytes"`
	LastError      string          `json:"last_error"`
	Source         string          `json:"source"`
	Device         string          `json:"device"`
	Hotplug        bool            `json:"hotplug"`
	DatabasePath   string          `json:"database_path"`
	LockPath       string          `json:"lock_path"`
	SocketPath     string          `json:"socket_path"`
	LogPath        string          `json:"log_path"`
}

// StartRecordingRequest begins a recording.
type StartRecordingRequest struct{}

// StartRecordingResponse reports whether recording began.
type StartRecordingResponse struct {
	Started bool `json:"started"`
}

// StopRecordingRequest finalizes the current recording. WaitMillis bounds how
// long the server waits for the save to complete; zero uses the default.
type StopRecordingRequest struct {
	WaitMillis int `json:"wait_millis"`
}

// StopRecordingResponse describes the finalized artifact and its save
// outcome. Stopped is false when nothing was recording.
type StopRecordingResponse struct {
	Stopped   bool   `json:"stopped"`
	Reason    string `json:"reason"`
	Frames    int    `json:"frames"`
	SizeBytes int64  `json:"size_bytes"`
	Saved     bool   `json:"saved"`
	Video     *Video `json:"video,omitempty"`
	SaveError string `json:"save_error,omitempty"`
}

// ListVideosRequest lists the library.
type ListVideosRequest struct{}

// ListVideosResponse holds stored videos, oldest first.
type ListVideosResponse struct {
	Videos     []Video `json:"videos"`
	TotalBytes int64   `json:"total_bytes"`
}

// DeleteVideoRequest removes one video.
type DeleteVideoRequest struct {
	ID string `json:"id"`
}

// DeleteVideoResponse reports whether the id existed.
type DeleteVideoResponse struct {
	Removed bool `json:"removed"`
}

// ClearVideosRequest removes every video.
type ClearVideosRequest struct{}

// ClearVideosResponse reports how many videos were removed.
type ClearVideosResponse struct {
	Removed int `json:"removed"`
}

// ExportVideoRequest writes a video to Path on the daemon host.
type ExportVideoRequest struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// ExportVideoResponse reports the exported video and destination.
type ExportVideoResponse struct {
	Video Video  `json:"video"`
	Path  string `json:"path"`
}

// PreviewRequest writes a JPEG of the live camera and overlay to Path on the
// daemon host.
type PreviewRequest struct {
	Path string `json:"path"`
}

// PreviewResponse describes the written image.
type PreviewResponse struct {
	Path      string `json:"path"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int64  `json:"size_bytes"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
