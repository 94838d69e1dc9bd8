package device

import "time"

// Domain defaults applied when a device or its payload omits a value.
const (
	// DefaultRoom is assigned when no room can be inferred from a device id.
	DefaultRoom = "A-302"

	// DefaultVoltage is assumed when a payload carries no voltage reading.
	DefaultVoltage = 220.0

	// PlaceholderNamePrefix marks auto-generated display names that may be
	// overwritten by a later, better inference. Customised names never
	// carry this prefix and are never regressed.
	PlaceholderNamePrefix = "DormDevice-"
)

// Device is a registered power strip.
//
// The ID is the canonical bus identity produced by topic resolution:
// either a single opaque segment or "{room} {device}" for two-segment
// topics. Room and Name are inferred from the id on first sight and may
// be customised afterwards.
type Device struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Room       string `json:"room"`
	Online     bool   `json:"online"`
	LastSeenTS int64  `json:"lastSeenTs"`
}

// LastSeen returns the last-seen timestamp as UTC time.
func (d Device) LastSeen() time.Time {
	return time.Unix(d.LastSeenTS, 0).UTC()
}

// Socket is the state of one outlet on a strip.
type Socket struct {
	ID     int     `json:"id"`
	On     bool    `json:"on"`
	PowerW float64 `json:"power_w"`
	Device string  `json:"device"`
}

// StripStatus is the latest reported electrical state of a strip.
// Exactly one row exists per device; inbound status messages replace it.
type StripStatus struct {
	DeviceID    string   `json:"deviceId"`
	TS          int64    `json:"ts"`
	Online      bool     `json:"online"`
	TotalPowerW float64  `json:"total_power_w"`
	VoltageV    float64  `json:"voltage_v"`
	CurrentA    float64  `json:"current_a"`
	Sockets     []Socket `json:"sockets"`
}

// TotalFromSockets recomputes the aggregate power as the sum of all
// socket readings.
func (s *StripStatus) TotalFromSockets() float64 {
	var total float64
	for _, sock := range s.Sockets {
		total += sock.PowerW
	}
	return total
}

// StatusUpdate carries the fields of an inbound status message.
// Nil pointer fields mean "not present in the payload".
type StatusUpdate struct {
	TS          int64
	Online      *bool
	TotalPowerW float64
	VoltageV    *float64
	CurrentA    float64
	Sockets     []Socket
}
