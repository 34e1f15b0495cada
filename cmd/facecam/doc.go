// Package main hosts the facecam CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon in the foreground ("run"), manages
// it in the background ("start", "stop", "restart", "status"), and
// translates recording and library commands into IPC calls. Library commands
// fall back to reading the database directly when no daemon is running.
package main
