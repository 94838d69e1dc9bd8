package telemetry

import "errors"

var (
	// ErrUnsupportedRange is returned for a range key outside the
	// configured set.
	ErrUnsupportedRange = errors.New("telemetry: unsupported range")
)
