package command

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Command lifecycle states. A record starts pending and moves to exactly
// one terminal state.
const (
	StatePending   = "pending"
	StateSuccess   = "success"
	StateFailed    = "failed"
	StateTimeout   = "timeout"
	StateCancelled = "cancelled"
)

// TimeoutMessage is stored on records swept past their deadline.
const TimeoutMessage = "ack timeout"

// Record is one submitted command and its lifecycle state.
type Record struct {
	CmdID    string `json:"cmdId"`
	DeviceID string `json:"deviceId"`

	// Socket is nil for device-wide commands.
	Socket *int `json:"socket,omitempty"`

	Action      string `json:"action"`
	PayloadJSON string `json:"-"`
	State       string `json:"state"`
	Message     string `json:"message"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
	ExpiresAt   int64  `json:"expiresAt"`

	// DurationMs is the device-reported execution time, nil until an
	// ack carries one.
	DurationMs *int `json:"durationMs,omitempty"`
}

// Terminal reports whether the record has left the pending state.
func (r *Record) Terminal() bool {
	return r.State != StatePending
}

// NewID returns a fresh command id of the form cmd_{unix}_{8 hex}.
func NewID(now time.Time) string {
	return fmt.Sprintf("cmd_%d_%s", now.Unix(), uuid.NewString()[:8])
}
