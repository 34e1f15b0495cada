// Package recording composites camera frames and detection overlays onto an
// offscreen surface, feeds the surface to an encoder, and hands the finished
// artifact to a persister.
//
// The pipeline is a state machine:
//
//	Idle -> Recording -> Finalizing -> Idle
//	Recording -> Aborted -> Idle
//
// Losing the frame source or an encoder failure finalizes through the same
// path as Stop so captured footage is kept.
package recording
