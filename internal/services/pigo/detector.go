// Package pigo runs the pigo pixel-intensity cascade as a face detection
// engine. Cascades are read from disk at Initialize.
package pigo

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"
	"sync"

	pigo "github.com/esimov/pigo/core"

	"facecam/internal/detection"
	"facecam/internal/logging"
	"facecam/internal/services"
)

// qualityScale maps pigo's unbounded cluster quality onto [0,1).
const qualityScale = 20.0

// Options configure the cascade run.
type Options struct {
	CascadePath  string
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float64
	Logger       *slog.Logger
}

// Engine implements detection.Engine on top of pigo.
type Engine struct {
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	classifier *pigo.Pigo
}

// New returns an engine that loads its cascade on Initialize.
func New(opts Options) *Engine {
	return &Engine{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "pigo")}
}

func (e *Engine) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := os.ReadFile(e.opts.CascadePath)
	if err != nil {
		return services.Wrap(services.ErrDetectorUnavailable, "pigo", "read cascade", e.opts.CascadePath, err)
	}
	classifier, err := unpack(data)
	if err != nil {
		return services.Wrap(services.ErrDetectorUnavailable, "pigo", "unpack cascade", e.opts.CascadePath, err)
	}
	e.mu.Lock()
	e.classifier = classifier
	e.mu.Unlock()
	e.logger.Info("face cascade loaded",
		logging.String(logging.FieldEventType, "detector_ready"),
		logging.String("cascade", e.opts.CascadePath),
		logging.Int("cascade_bytes", len(data)),
	)
	return nil
}

// unpack guards against malformed cascades, which pigo reports by panicking
// on out-of-range reads.
func unpack(data []byte) (classifier *pigo.Pigo, err error) {
	defer func() {
		if r := recover(); r != nil {
			classifier = nil
			err = fmt.Errorf("malformed cascade: %v", r)
		}
	}()
	return pigo.NewPigo().Unpack(data)
}

func (e *Engine) Run(ctx context.Context, frame image.Image) (detection.Set, error) {
	e.mu.Lock()
	classifier := e.classifier
	e.mu.Unlock()
	if classifier == nil {
		return nil, services.Wrap(services.ErrDetectorUnavailable, "pigo", "run", "not initialized", nil)
	}
	if frame == nil {
		return nil, services.Wrap(services.ErrSourceUnavailable, "pigo", "run", "nil frame", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nrgba := toNRGBA(frame)
	bounds := nrgba.Bounds()
	params := pigo.CascadeParams{
		MinSize:     e.opts.MinSize,
		MaxSize:     e.opts.MaxSize,
		ShiftFactor: e.opts.ShiftFactor,
		ScaleFactor: e.opts.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(nrgba),
			Rows:   bounds.Dy(),
			Cols:   bounds.Dx(),
			Dim:    bounds.Dx(),
		},
	}
	dets := classifier.RunCascade(params, 0.0)
	dets = classifier.ClusterDetections(dets, e.opts.IoUThreshold)
	return toDetections(dets, bounds.Dx(), bounds.Dy(), e.opts.MinQuality), nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	e.classifier = nil
	e.mu.Unlock()
	return nil
}

func toNRGBA(frame image.Image) *image.NRGBA {
	if img, ok := frame.(*image.NRGBA); ok && img.Rect.Min == (image.Point{}) {
		return img
	}
	b := frame.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), frame, b.Min, draw.Src)
	return dst
}

// toDetections converts pixel-space cascade hits into normalized boxes,
// dropping clusters below minQuality.
func toDetections(dets []pigo.Detection, width, height int, minQuality float64) detection.Set {
	if width <= 0 || height <= 0 {
		return detection.Set{}
	}
	out := make([]detection.Detection, 0, len(dets))
	for _, d := range dets {
		q := float64(d.Q)
		if q < minQuality || d.Scale <= 0 {
			continue
		}
		score := q / (q + qualityScale)
		if score < 0 {
			score = 0
		}
		out = append(out, detection.Detection{
			Box: detection.BoundingBox{
				XCenter: float64(d.Col) / float64(width),
				YCenter: float64(d.Row) / float64(height),
				Width:   float64(d.Scale) / float64(width),
				Height:  float64(d.Scale) / float64(height),
			},
			Score: detection.Score(score),
		})
	}
	return detection.NewSet(out...)
}
