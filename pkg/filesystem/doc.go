// Package filesystem provides filesystem primitives shared across
// driftmirror: the well-known data directory layout, atomic file writes,
// directory walking, advisory file locking, and free-space queries.
package filesystem
