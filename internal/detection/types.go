package detection

import "slices"

// BoundingBox is a center-anchored rectangle in normalized [0,1] coordinates
// relative to the frame.
type BoundingBox struct {
	XCenter float64 `json:"xCenter"`
	YCenter float64 `json:"yCenter"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Detection is one detected face. Score is nil when the detector did not
// report a confidence.
type Detection struct {
	Box   BoundingBox `json:"box"`
	Score *float64    `json:"score,omitempty"`
}

// Valid reports whether the box has positive extent.
func (d Detection) Valid() bool {
	return d.Box.Width > 0 && d.Box.Height > 0
}

// Set is an ordered, immutable list of detections. Callers must not mutate a
// Set obtained from the Loop.
type Set []Detection

// NewSet copies the valid detections into a fresh Set.
func NewSet(ds ...Detection) Set {
	out := make(Set, 0, len(ds))
	for _, d := range ds {
		if !d.Valid() {
			continue
		}
		if d.Score != nil {
			score := *d.Score
			d.Score = &score
		}
		out = append(out, d)
	}
	return out
}

func (s Set) Empty() bool { return len(s) == 0 }

// Clone returns a deep copy safe to hand to callers outside the loop.
func (s Set) Clone() Set {
	return NewSet(slices.Clone(s)...)
}

// Score returns a pointer to v for use in Detection literals.
func Score(v float64) *float64 {
	return &v
}
