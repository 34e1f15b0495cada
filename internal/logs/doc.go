// Package logs reads the daemon's JSON log file for the CLI.
//
// Tail returns the last N lines or everything after a byte offset, and can
// poll for new lines in follow mode. The returned offset is fed back into the
// next call so repeated tails never repeat or skip a line.
package logs
