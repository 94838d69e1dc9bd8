package telemetry

// Sample is one telemetry reading from a strip.
type Sample struct {
	DeviceID string  `json:"deviceId"`
	TS       int64   `json:"ts"`
	PowerW   float64 `json:"power_w"`
	VoltageV float64 `json:"voltage_v"`
	CurrentA float64 `json:"current_a"`
}

// Point is one point of an aggregated power series.
type Point struct {
	TS     int64   `json:"ts"`
	PowerW float64 `json:"power_w"`
}
