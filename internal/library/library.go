package library

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"facecam/internal/logging"
	"facecam/internal/services"
	"facecam/internal/store"
)

// Options bound the library. Zero limits are unbounded.
type Options struct {
	MaxTotalBytes int64
	MaxVideos     int
	Logger        *slog.Logger
}

// Library is the ordered, oldest-first list of stored videos.
type Library struct {
	store  store.Store
	opts   Options
	logger *slog.Logger

	// ioMu serializes mutations and their store writes; lastID is owned by
	// whoever holds it. mu only guards swapping videos, so readers never
	// wait on store I/O.
	ioMu   sync.Mutex
	lastID int64

	mu     sync.RWMutex
	videos []StoredVideo
}

// New returns an empty library over s. Call Load to read persisted state.
func New(s store.Store, opts Options) *Library {
	return &Library{
		store:  s,
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "library"),
	}
}

// Load replaces the in-memory list with the persisted one. Entries that are
// malformed or whose payload is missing or truncated are dropped and the
// pruned list is written back. Payloads without an entry are removed. An
// undecodable metadata list is treated as empty and left in place.
func (l *Library) Load(ctx context.Context) error {
	l.ioMu.Lock()
	defer l.ioMu.Unlock()

	raw, ok, err := l.store.GetMetadataList(ctx)
	if err != nil {
		l.setVideos(nil)
		return services.Wrap(services.ErrPersistenceReadCorrupt, "library", "load", "read metadata", err)
	}

	var stored []StoredVideo
	if ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &stored); err != nil {
			l.setVideos(nil)
			logging.WarnWithContext(l.logger, "video metadata unreadable; starting empty", "metadata_corrupt",
				logging.Error(services.Wrap(services.ErrPersistenceReadCorrupt, "library", "decode metadata", "", err)),
				logging.Int("metadata_bytes", len(raw)),
				logging.String(logging.FieldErrorHint, services.Hint(services.ErrPersistenceReadCorrupt)),
				logging.String(logging.FieldImpact, "previously recorded videos are hidden"),
			)
			return nil
		}
	}

	kept := make([]StoredVideo, 0, len(stored))
	seen := make(map[string]struct{}, len(stored))
	for _, v := range stored {
		if _, dup := seen[v.ID]; dup || !v.valid() {
			l.logDropped(v, "invalid entry")
			continue
		}
		size, present, err := l.store.PayloadSize(ctx, v.ID)
		if err != nil {
			logging.WarnWithContext(l.logger, "could not verify stored video; keeping it listed", "video_unverified",
				logging.VideoID(v.ID),
				logging.Error(services.Wrap(services.ErrPersistenceReadCorrupt, "library", "load", "payload size "+v.ID, err)),
				logging.String(logging.FieldErrorHint, services.Hint(services.ErrPersistenceReadCorrupt)),
				logging.String(logging.FieldImpact, "export may fail if the payload is damaged"),
			)
			seen[v.ID] = struct{}{}
			kept = append(kept, v)
			continue
		}
		if !present || size != v.SizeBytes {
			l.logDropped(v, "payload missing or truncated")
			continue
		}
		seen[v.ID] = struct{}{}
		kept = append(kept, v)
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].seq() < kept[j].seq() })

	if len(kept) != len(stored) {
		if err := l.writeList(ctx, kept); err != nil {
			logging.WarnWithContext(l.logger, "failed to persist repaired video list", "metadata_repair_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.String(logging.FieldImpact, "repair will be retried on next load"),
			)
		}
	}
	l.setVideos(kept)
	for _, v := range kept {
		l.lastID = max(l.lastID, v.seq())
	}

	l.sweepOrphans(ctx, seen)
	l.logger.Info("video library loaded",
		logging.String(logging.FieldEventType, "library_loaded"),
		logging.Int("videos", len(kept)),
		logging.Int64("total_bytes", totalBytes(kept)),
	)
	return nil
}

func (l *Library) logDropped(v StoredVideo, reason string) {
	logging.WarnWithContext(l.logger, "dropping stored video", "video_dropped",
		logging.VideoID(v.ID),
		logging.String("reason", reason),
		logging.String(logging.FieldErrorHint, services.Hint(services.ErrPersistenceReadCorrupt)),
		logging.String(logging.FieldImpact, "recording is no longer listed"),
	)
}

func (l *Library) sweepOrphans(ctx context.Context, known map[string]struct{}) {
	ids, err := l.store.PayloadIDs(ctx)
	if err != nil {
		l.logger.Debug("orphan sweep skipped", logging.Error(err))
		return
	}
	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}
		if err := l.store.RemovePayload(ctx, id); err != nil {
			l.logger.Debug("orphan payload removal failed", logging.VideoID(id), logging.Error(err))
			continue
		}
		l.logger.Info("removed orphaned payload",
			logging.String(logging.FieldEventType, "orphan_removed"),
			logging.VideoID(id),
		)
	}
}

func (l *Library) writeList(ctx context.Context, videos []StoredVideo) error {
	if videos == nil {
		videos = []StoredVideo{}
	}
	data, err := json.Marshal(videos)
	if err != nil {
		return services.Wrap(services.ErrPersistenceWriteFailed, "library", "encode metadata", "", err)
	}
	return l.store.PutMetadataList(ctx, data)
}

func (l *Library) nextID(at time.Time) int64 {
	id := at.UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	return id
}

// Save persists a finalized recording. The metadata list is written first;
// if the payload write then fails the entry is withdrawn again and
// ErrPersistenceWriteFailed is returned. Retention runs after a successful
// save and never evicts the video just stored.
func (l *Library) Save(ctx context.Context, data []byte, mediaType string, at time.Time) (StoredVideo, error) {
	if len(data) == 0 {
		return StoredVideo{}, services.Wrap(services.ErrPersistenceWriteFailed, "library", "save", "empty artifact", nil)
	}
	if mediaType == "" {
		return StoredVideo{}, services.Wrap(services.ErrPersistenceWriteFailed, "library", "save", "missing media type", nil)
	}

	l.ioMu.Lock()
	defer l.ioMu.Unlock()

	current := l.List()
	video := newVideo(l.nextID(at), at, int64(len(data)), mediaType)
	next := append(current, video)
	if err := l.writeList(ctx, next); err != nil {
		return StoredVideo{}, services.Wrap(services.ErrPersistenceWriteFailed, "library", "save", "write metadata", err)
	}
	if err := l.store.PutPayload(ctx, video.ID, data); err != nil {
		if rbErr := l.writeList(ctx, current); rbErr != nil {
			logging.WarnWithContext(l.logger, "failed to withdraw metadata after payload failure", "metadata_rollback_failed",
				logging.VideoID(video.ID),
				logging.Error(rbErr),
				logging.String(logging.FieldImpact, "entry is dropped on next load"),
			)
		}
		return StoredVideo{}, services.Wrap(services.ErrPersistenceWriteFailed, "library", "save", "write payload", err)
	}
	l.setVideos(next)
	l.logger.Info("video saved",
		logging.String(logging.FieldEventType, "video_saved"),
		logging.VideoID(video.ID),
		logging.Int64("size_bytes", video.SizeBytes),
		logging.String("media_type", video.MediaType),
	)

	l.applyRetentionLocked(ctx, video.ID)
	return video, nil
}

// Delete removes id from the list and then its payload. Unknown ids are a
// no-op reporting false. A failed payload removal is logged and left for the
// next Load to sweep.
func (l *Library) Delete(ctx context.Context, id string) (bool, error) {
	l.ioMu.Lock()
	defer l.ioMu.Unlock()

	current := l.List()
	idx := slices.IndexFunc(current, func(v StoredVideo) bool { return v.ID == id })
	if idx < 0 {
		return false, nil
	}
	next := slices.Delete(current, idx, idx+1)
	if err := l.writeList(ctx, next); err != nil {
		return false, services.Wrap(services.ErrPersistenceWriteFailed, "library", "delete", id, err)
	}
	l.setVideos(next)
	l.removePayload(ctx, id)
	l.logger.Info("video deleted",
		logging.String(logging.FieldEventType, "video_deleted"),
		logging.VideoID(id),
	)
	return true, nil
}

func (l *Library) removePayload(ctx context.Context, id string) {
	if err := l.store.RemovePayload(ctx, id); err != nil {
		logging.WarnWithContext(l.logger, "failed to remove video payload", "payload_remove_failed",
			logging.VideoID(id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "payload is removed on next load"),
		)
	}
}

// Clear removes every entry and every stored payload.
func (l *Library) Clear(ctx context.Context) error {
	l.ioMu.Lock()
	defer l.ioMu.Unlock()

	if err := l.writeList(ctx, nil); err != nil {
		return services.Wrap(services.ErrPersistenceWriteFailed, "library", "clear", "", err)
	}
	removed := len(l.List())
	l.setVideos(nil)
	ids, err := l.store.PayloadIDs(ctx)
	if err != nil {
		return services.Wrap(services.ErrPersistenceReadCorrupt, "library", "clear", "list payloads", err)
	}
	for _, id := range ids {
		l.removePayload(ctx, id)
	}
	l.logger.Info("video library cleared",
		logging.String(logging.FieldEventType, "library_cleared"),
		logging.Int("videos", removed),
	)
	return nil
}

// List returns a copy of the stored videos, oldest first.
func (l *Library) List() []StoredVideo {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.videos)
}

func (l *Library) setVideos(videos []StoredVideo) {
	l.mu.Lock()
	l.videos = videos
	l.mu.Unlock()
}

// Get looks up a video by id.
func (l *Library) Get(id string) (StoredVideo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, v := range l.videos {
		if v.ID == id {
			return v, true
		}
	}
	return StoredVideo{}, false
}

// Payload reads the stored bytes for id.
func (l *Library) Payload(ctx context.Context, id string) ([]byte, error) {
	if _, ok := l.Get(id); !ok {
		return nil, services.Wrap(services.ErrNotFound, "library", "payload", id, nil)
	}
	data, ok, err := l.store.GetPayload(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistenceReadCorrupt, "library", "payload", id, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrPersistenceReadCorrupt, "library", "payload", id+" missing", nil)
	}
	return data, nil
}

// TotalBytes sums the sizes of all listed videos.
func (l *Library) TotalBytes() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return totalBytes(l.videos)
}

func totalBytes(videos []StoredVideo) int64 {
	var total int64
	for _, v := range videos {
		total += v.SizeBytes
	}
	return total
}

// IsNotFound reports whether err came from an unknown video id.
func IsNotFound(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}
