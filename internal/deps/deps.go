package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"facecam/internal/config"
)

// Requirement defines an external dependency facecam relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if resolved, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Command = resolved
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Requirements lists the external binaries the configuration needs. ffmpeg is
// mandatory for the v4l2 source or the ffmpeg encoder and optional otherwise.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	return []Requirement{{
		Name:        "FFmpeg",
		Command:     ResolveFFmpeg(cfg.FFmpegBinary()),
		Description: "Camera capture (v4l2) and WebM recording",
		Optional:    !cfg.NeedsFFmpeg(),
	}}
}
