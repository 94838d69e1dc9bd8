// Package command tracks strip control commands from submission to
// resolution.
//
// Every submitted command becomes a Record in the pending state and ends
// in exactly one of success, failed, timeout or cancelled. The Ledger
// enforces one pending command per target at a time and sweeps expired
// records lazily, on submission and on reads, rather than with a
// background timer.
package command
