// Package telemetry stores per-strip power samples and renders them as
// fixed-shape series for the dashboard.
//
// Samples land in SQLite as the bridge receives them. Reads go through
// the Aggregator, which supports four ranges: the 60s range is a dense
// per-second series with carry-forward for silent seconds, while the
// 24h, 7d and 30d ranges return the real samples in the window,
// downsampled to the range's point budget.
package telemetry
