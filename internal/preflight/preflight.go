package preflight

import (
	"context"

	"facecam/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional failures degrade a feature instead of blocking the camera.
	Optional bool
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if cfg.Camera.Source == config.SourceV4L2 {
		results = append(results, CheckCameraDevice(cfg.Camera.Device))
	}

	for _, dep := range CheckSystemDeps(ctx, cfg) {
		detail := dep.Command
		if !dep.Available {
			detail = dep.Detail
		}
		results = append(results, Result{Name: dep.Name, Passed: dep.Available, Detail: detail, Optional: dep.Optional})
	}

	results = append(results, CheckRecordingFormat(cfg))

	if cfg.Detector.Enabled {
		results = append(results, CheckCascade(ctx, cfg.Detector.CascadePath))
	}
	return results
}

// Failed returns the results that did not pass, optionally only required ones.
func Failed(results []Result, requiredOnly bool) []Result {
	var out []Result
	for _, r := range results {
		if r.Passed || (requiredOnly && r.Optional) {
			continue
		}
		out = append(out, r)
	}
	return out
}
