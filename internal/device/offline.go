package device

import (
	"strings"
	"sync"
)

// Classified offline reasons, ordered by match priority.
const (
	// ReasonUnknown is used when an offline notification carries no text.
	ReasonUnknown = "device powered off or abnormally disconnected"

	// ReasonGeneric is stored when a reason cannot be kept at all.
	ReasonGeneric = "device offline"

	reasonPowerLoss   = "power loss"
	reasonRemoteOff   = "remote manual power-off"
	reasonOvercurrent = "overcurrent/overload protection tripped"
	reasonUnplugged   = "strip unplugged"
)

// ClassifyOfflineReason maps raw offline-notification text to a
// canonical reason string.
//
// Matching is case-insensitive keyword search in priority order: power
// loss, remote/manual control, overcurrent/overload, unplugged. First
// match wins. Unrecognised non-empty text passes through unchanged;
// empty text yields ReasonUnknown.
func ClassifyOfflineReason(raw string) string {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return ReasonUnknown
	}
	switch {
	case strings.Contains(text, "power"):
		return reasonPowerLoss
	case strings.Contains(text, "app"), strings.Contains(text, "remote"), strings.Contains(text, "manual"):
		return reasonRemoteOff
	case strings.Contains(text, "overcurrent"), strings.Contains(text, "overload"):
		return reasonOvercurrent
	case strings.Contains(text, "unplug"):
		return reasonUnplugged
	}
	return strings.TrimSpace(raw)
}

// ReasonStore holds the last classified offline reason per device.
//
// Reasons are process-local and non-persisted: they exist only between
// a device's offline notification and its next sign of life. Any
// status, telemetry or ack message clears the entry.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type ReasonStore struct {
	mu      sync.RWMutex
	reasons map[string]string
}

// NewReasonStore creates an empty ReasonStore.
func NewReasonStore() *ReasonStore {
	return &ReasonStore{reasons: make(map[string]string)}
}

// Set records a reason for a device. Blank reasons are replaced by
// ReasonGeneric so a set entry is always presentable.
func (s *ReasonStore) Set(deviceID, reason string) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonGeneric
	}
	s.mu.Lock()
	s.reasons[deviceID] = reason
	s.mu.Unlock()
}

// Get returns the stored reason for a device, or "" when none is held.
func (s *ReasonStore) Get(deviceID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reasons[deviceID]
}

// Clear removes a device's entry. Called on any liveness signal.
func (s *ReasonStore) Clear(deviceID string) {
	s.mu.Lock()
	delete(s.reasons, deviceID)
	s.mu.Unlock()
}
