package bridge

// Event types pushed to websocket subscribers.
const (
	EventDeviceStatus  = "DEVICE_STATUS"
	EventTelemetry     = "TELEMETRY"
	EventDeviceOffline = "DEVICE_OFFLINE"
	EventCmdAck        = "CMD_ACK"
)

// DeviceEvent carries a device-scoped event with the inbound payload
// passed through verbatim. Used for DEVICE_STATUS, TELEMETRY and
// DEVICE_OFFLINE (where the payload is {"reason": ...}).
type DeviceEvent struct {
	Type     string                 `json:"type"`
	DeviceID string                 `json:"deviceId"`
	Payload  map[string]interface{} `json:"payload"`
}

// AckEvent announces a command's resolution.
type AckEvent struct {
	Type       string `json:"type"`
	CmdID      string `json:"cmdId"`
	State      string `json:"state"`
	TS         int64  `json:"ts"`
	UpdatedAt  int64  `json:"updatedAt"`
	Message    string `json:"message"`
	DurationMs *int   `json:"durationMs"`
}
