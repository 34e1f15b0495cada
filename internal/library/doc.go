// Package library keeps the in-memory list of recorded videos consistent with
// the persistence store. Metadata is written before payloads; Load repairs
// any divergence left behind by a crash between the two writes.
package library
