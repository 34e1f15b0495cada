// Package ipc exposes daemon control over JSON-RPC on a Unix domain socket.
//
// The server registers a single "Facecam" service backed by the daemon; the
// client wraps each method with typed request and response structs so the CLI
// never touches net/rpc directly. Methods cover status, recording control,
// the video library, exports, and log tailing.
package ipc
