// Package device manages power-strip identity, registration and
// connectivity state.
//
// This package provides:
//   - Device and StripStatus types with SQLite-backed repositories
//   - Room/display-name inference from bus identities (ParseMeta)
//   - A connectivity Tracker (register, refresh, forced offline)
//   - Offline-reason classification and the process-local ReasonStore
//
// # Identity
//
// A device id is the canonical form of its topic path: one opaque
// segment, or "{room} {device}" for two-segment topics. ParseMeta
// recovers a room code and display name from either form, falling back
// to DefaultRoom when nothing matches.
//
// # Connectivity
//
// Online state is derived, not stored truth: a device is online while
// the wall clock is within the configured timeout of its last-seen
// timestamp. Offline notifications (LWT) force the timestamp into the
// past so every read path agrees immediately.
package device
