// Package config loads, normalizes, and validates facecam configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// FACECAM_CAMERA_DEVICE. The Config type centralizes every knob the daemon and
// CLI need so camera, detector, recording, and storage settings are discovered
// in one pass.
package config
