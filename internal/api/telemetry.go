package api

import (
	"errors"
	"net/http"

	"github.com/Evildoersudo/back-end/internal/device"
	"github.com/Evildoersudo/back-end/internal/telemetry"
)

// handleTelemetry returns a power series for one device over a named range.
//
// Query parameters: device (required), range (60s|24h|7d|30d).
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceID := r.URL.Query().Get("device")
	rangeKey := r.URL.Query().Get("range")
	if deviceID == "" {
		writeBadRequest(w, "device is required")
		return
	}
	if rangeKey == "" {
		writeBadRequest(w, "range is required")
		return
	}

	if _, err := s.devices.GetByID(ctx, deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to load device", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to load device")
		return
	}

	points, err := s.telemetry.Series(ctx, deviceID, rangeKey)
	if err != nil {
		if errors.Is(err, telemetry.ErrUnsupportedRange) {
			writeBadRequest(w, "range is invalid")
			return
		}
		s.logger.Error("failed to build telemetry series", "device_id", deviceID, "range", rangeKey, "error", err)
		writeInternalError(w, "failed to build telemetry series")
		return
	}

	writeJSON(w, http.StatusOK, points)
}
