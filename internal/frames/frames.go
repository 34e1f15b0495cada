// Package frames defines the camera frame source boundary used by the
// detection loop and the recording pipeline.
package frames

import "image"

// Source is the live frame provider. Current returns the most recently
// captured frame; implementations may return the same image until a new
// frame arrives. Ready reports whether Current yields a usable frame.
type Source interface {
	Width() int
	Height() int
	Ready() bool
	Current() image.Image
	Close() error
}
