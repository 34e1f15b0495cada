// Package preflight provides readiness checks for the camera, face cascade,
// external binaries, and filesystem paths that facecam depends on.
//
// The daemon runs RunAll at startup and logs every failure without aborting,
// since most failures degrade a feature rather than disable the service.
// The CLI "facecam status" and "facecam preflight" commands render the same
// results for operators.
package preflight
