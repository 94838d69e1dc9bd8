package mqtt

import "fmt"

// DefaultTopicPrefix is the root segment of all device topics when no
// prefix is configured.
const DefaultTopicPrefix = "dorm"

// Message kinds recognised on inbound device topics.
// The last topic segment names the kind.
const (
	KindStatus    = "status"
	KindTelemetry = "telemetry"
	KindAck       = "ack"
	KindEvent     = "event"
	KindLWT       = "lwt"
	KindWill      = "will"
	KindOffline   = "offline"
)

// SubscriptionKinds lists every message kind the backend subscribes to.
var SubscriptionKinds = []string{
	KindStatus, KindTelemetry, KindAck, KindEvent,
	KindLWT, KindWill, KindOffline,
}

// Topics provides builders for device topics. Using these helpers ensures
// consistent topic naming across the codebase.
//
// Devices publish on two shapes, both supported:
//
//	{prefix}/{deviceId}/{kind}
//	{prefix}/{room}/{device}/{kind}
//
// Commands flow the other way on the same shapes with kind "cmd".
type Topics struct {
	// Prefix overrides DefaultTopicPrefix when non-empty.
	Prefix string
}

// Base returns the effective prefix: Prefix, or DefaultTopicPrefix for
// the zero value. Topic builders and parsers must both go through it so
// a zero-value Topics subscribes and resolves under the same root.
func (t Topics) Base() string {
	if t.Prefix != "" {
		return t.Prefix
	}
	return DefaultTopicPrefix
}

// DeviceCommand returns the single-segment command topic for a device.
//
// Example: dorm/A-302-strip01/cmd
func (t Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/cmd", t.Base(), deviceID)
}

// RoomDeviceCommand returns the two-segment command topic for a device
// whose identity splits into room and device name.
//
// Example: dorm/A-302/strip01/cmd
func (t Topics) RoomDeviceCommand(room, device string) string {
	return fmt.Sprintf("%s/%s/%s/cmd", t.Base(), room, device)
}

// SystemStatus returns the backend's own status topic, used for the
// broker Last Will and graceful shutdown announcements.
//
// Example: dorm/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.Base())
}

// SingleSegmentPattern returns a wildcard matching single-segment device
// topics for a kind.
//
// Pattern: dorm/+/{kind}
func (t Topics) SingleSegmentPattern(kind string) string {
	return fmt.Sprintf("%s/+/%s", t.Base(), kind)
}

// TwoSegmentPattern returns a wildcard matching room/device two-segment
// topics for a kind.
//
// Pattern: dorm/+/+/{kind}
func (t Topics) TwoSegmentPattern(kind string) string {
	return fmt.Sprintf("%s/+/+/%s", t.Base(), kind)
}

// SubscriptionPatterns returns every wildcard pattern the bridge should
// subscribe to: both topic shapes for every recognised kind.
func (t Topics) SubscriptionPatterns() []string {
	patterns := make([]string, 0, len(SubscriptionKinds)*2)
	for _, kind := range SubscriptionKinds {
		patterns = append(patterns,
			t.SingleSegmentPattern(kind),
			t.TwoSegmentPattern(kind),
		)
	}
	return patterns
}
