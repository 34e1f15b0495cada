// Package daemon coordinates the long-running facecam process.
//
// It owns the single-instance flock, the video library, and the current
// camera session. Camera hotplug events mark the session's source as lost
// and rebuild the session when the device returns. The IPC layer calls into
// the daemon; it never reaches into the session directly.
package daemon
