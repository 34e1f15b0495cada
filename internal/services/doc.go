// Package services defines shared utilities consumed by the capture session
// components and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp video IDs and per-request correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is (fatal vs absorbed as a notice).
//
// Integrations with external tools live in subpackages (ffmpeg, pigo).
package services
