// Package detection reconciles an asynchronous face detector with the
// render tick.
//
// The Loop issues at most one detection request at a time, tags each with a
// monotonically increasing sequence token, and publishes results as an
// immutable Set through an atomic pointer swap so readers on the render path
// never observe a partial update. Results older than the last applied token,
// and results that arrive after Stop, are discarded. When the detector cannot
// be initialized the loop runs in degraded mode and synthesizes a plausible
// detection from a Signal instead.
package detection
