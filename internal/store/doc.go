// Package store provides the namespaced key-value persistence boundary for
// recorded videos: one metadata list key plus one payload key per video.
//
// SQLite is the durable implementation. Memory backs tests and supports
// fault injection.
package store
