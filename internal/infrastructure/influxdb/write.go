package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names used by the telemetry mirror.
const (
	measurementTelemetry   = "telemetry"
	measurementStripStatus = "strip_status"
)

// WriteTelemetry mirrors one power reading.
//
// The write is non-blocking; data is batched and sent asynchronously.
// It satisfies bridge.Mirror.
func (c *Client) WriteTelemetry(deviceID string, powerW, voltageV, currentA float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementTelemetry,
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"power_w":   powerW,
			"voltage_v": voltageV,
			"current_a": currentA,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WriteStripStatus mirrors one strip status snapshot.
//
// The write is non-blocking; data is batched and sent asynchronously.
// It satisfies bridge.Mirror.
func (c *Client) WriteStripStatus(deviceID string, online bool, totalPowerW, voltageV, currentA float64, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurementStripStatus,
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"online":        online,
			"total_power_w": totalPowerW,
			"voltage_v":     voltageV,
			"current_a":     currentA,
		},
		ts,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the mirror helpers.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
