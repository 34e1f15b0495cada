package session

import (
	"time"

	"facecam/internal/detection"
	"facecam/internal/library"
)

// Status is the externally visible session status.
type Status string

const (
	StatusInitializing      Status = "initializing"
	StatusCameraReady       Status = "camera_ready"
	StatusDetectionActive   Status = "detection_active"
	StatusDetectionDegraded Status = "detection_degraded"
	StatusError             Status = "error"
)

// Snapshot is the status surface handed to observers.
type Snapshot struct {
	Status         Status                `json:"status"`
	Message        string                `json:"message,omitempty"`
	Notice         string                `json:"notice,omitempty"`
	Recording      bool                  `json:"recording"`
	RecordingState string                `json:"recordingState"`
	Videos         []library.StoredVideo `json:"videos"`
	TotalBytes     int64                 `json:"totalBytes"`
	Detections     int                   `json:"detections"`
	Mode           string                `json:"mode"`
	Overlay        string                `json:"overlay"`
	Stats          detection.Stats       `json:"stats"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// changeKey captures the fields whose change is reported through OnStatus.
type changeKey struct {
	status    Status
	message   string
	notice    string
	recording string
	videos    int
	total     int64
	mode      string
	overlay   string
}

func (s Snapshot) key() changeKey {
	return changeKey{
		status:    s.Status,
		message:   s.Message,
		notice:    s.Notice,
		recording: s.RecordingState,
		videos:    len(s.Videos),
		total:     s.TotalBytes,
		mode:      s.Mode,
		overlay:   s.Overlay,
	}
}
