package library

import (
	"context"
	"slices"

	"facecam/internal/logging"
	"facecam/internal/services"
)

// evictions returns the ids to drop, oldest first, so that videos fit within
// maxBytes and maxVideos. keep is never selected even if the limits cannot
// otherwise be met.
func evictions(videos []StoredVideo, maxBytes int64, maxVideos int, keep string) []string {
	var total int64
	for _, v := range videos {
		total += v.SizeBytes
	}
	count := len(videos)

	var out []string
	for _, v := range videos {
		overBytes := maxBytes > 0 && total > maxBytes
		overCount := maxVideos > 0 && count > maxVideos
		if !overBytes && !overCount {
			break
		}
		if v.ID == keep {
			continue
		}
		out = append(out, v.ID)
		total -= v.SizeBytes
		count--
	}
	return out
}

// applyRetentionLocked runs with ioMu held.
func (l *Library) applyRetentionLocked(ctx context.Context, keep string) {
	current := l.List()
	evict := evictions(current, l.opts.MaxTotalBytes, l.opts.MaxVideos, keep)
	if len(evict) == 0 {
		return
	}
	next := slices.DeleteFunc(slices.Clone(current), func(v StoredVideo) bool {
		return slices.Contains(evict, v.ID)
	})
	if err := l.writeList(ctx, next); err != nil {
		logging.WarnWithContext(l.logger, "retention eviction failed", "retention_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "library exceeds configured storage limits"),
		)
		return
	}
	var freed int64
	for _, v := range current {
		if slices.Contains(evict, v.ID) {
			freed += v.SizeBytes
		}
	}
	l.setVideos(next)
	for _, id := range evict {
		l.removePayload(ctx, id)
	}
	l.logger.Info("retention evicted videos",
		logging.String(logging.FieldEventType, "retention_evicted"),
		logging.Int("videos_evicted", len(evict)),
		logging.Int64("freed_bytes", freed),
		logging.Int("videos_remaining", len(next)),
	)
}
