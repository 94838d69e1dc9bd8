package command

import "errors"

var (
	// ErrCommandNotFound is returned when no record matches a command id.
	ErrCommandNotFound = errors.New("command: record not found")

	// ErrCommandConflict is returned when a pending command already
	// covers the submitted target.
	ErrCommandConflict = errors.New("command: conflicting command pending")
)
