package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"facecam/internal/config"
	"facecam/internal/fileutil"
	"facecam/internal/logging"
	"facecam/internal/services"
)

// Snapshot describes a written preview image.
type Snapshot struct {
	Path      string
	Width     int
	Height    int
	SizeBytes int64
}

// WritePreview encodes the live camera frame with its overlay as a JPEG at
// path on the daemon host. A path naming an existing directory receives
// facecam-preview.jpg.
func (d *Daemon) WritePreview(ctx context.Context, path string) (Snapshot, error) {
	sess, err := d.activeSession()
	if err != nil {
		return Snapshot{}, err
	}
	img := sess.Preview()
	if img == nil {
		return Snapshot{}, services.Wrap(services.ErrSourceUnavailable, "daemon", "preview", "no camera frame available", nil)
	}
	target, err := previewPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: d.cfg.Recording.JPEGQuality}); err != nil {
		return Snapshot{}, fmt.Errorf("encode preview: %w", err)
	}
	if err := fileutil.WriteFileVerified(target, buf.Bytes(), 0o644); err != nil {
		return Snapshot{}, fmt.Errorf("write preview: %w", err)
	}
	size := img.Bounds().Size()
	snap := Snapshot{Path: target, Width: size.X, Height: size.Y, SizeBytes: int64(buf.Len())}
	logging.WithContext(ctx, d.logger).Info("preview written",
		logging.String(logging.FieldEventType, "preview_written"),
		logging.String("path", target),
		logging.Int64("size_bytes", snap.SizeBytes),
	)
	return snap, nil
}

func previewPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("preview path required")
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(expanded); err == nil && info.IsDir() {
		return filepath.Join(expanded, "facecam-preview.jpg"), nil
	}
	return expanded, nil
}
