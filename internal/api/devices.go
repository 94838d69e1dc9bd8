package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Evildoersudo/back-end/internal/device"
)

// deviceOut is one entry of the GET /api/devices response.
type deviceOut struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Room          string `json:"room"`
	Online        bool   `json:"online"`
	LastSeen      string `json:"lastSeen"`
	OfflineReason string `json:"offlineReason,omitempty"`
}

// statusOut is the GET /api/devices/{id}/status response.
type statusOut struct {
	TS          int64           `json:"ts"`
	Online      bool            `json:"online"`
	TotalPowerW float64         `json:"total_power_w"`
	VoltageV    float64         `json:"voltage_v"`
	CurrentA    float64         `json:"current_a"`
	Sockets     []device.Socket `json:"sockets"`
}

// handleListDevices lists all registered strips.
//
// Online flags are re-evaluated against the silence timeout on read, so a
// device that went quiet flips offline even when no LWT ever arrived.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := s.devices.List(ctx)
	if err != nil {
		s.logger.Error("failed to list devices", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	out := make([]deviceOut, 0, len(devices))
	for i := range devices {
		d := &devices[i]
		if err := s.tracker.Refresh(ctx, d); err != nil {
			s.logger.Warn("failed to refresh device state", "device_id", d.ID, "error", err)
		}

		entry := deviceOut{
			ID:       d.ID,
			Name:     d.Name,
			Room:     d.Room,
			Online:   d.Online,
			LastSeen: utcISO(d.LastSeenTS),
		}
		if !d.Online && s.bus != nil {
			entry.OfflineReason = s.bus.Reason(d.ID)
		}
		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, out)
}

// handleDeviceStatus returns the latest electrical state of a strip.
func (s *Server) handleDeviceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := chi.URLParam(r, "id")

	d, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to load device", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to load device")
		return
	}

	st, err := s.statuses.GetStatus(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrStatusNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to load status", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to load status")
		return
	}

	if err := s.tracker.Refresh(ctx, d); err != nil {
		s.logger.Warn("failed to refresh device state", "device_id", deviceID, "error", err)
	}

	sockets := st.Sockets
	if sockets == nil {
		sockets = []device.Socket{}
	}

	writeJSON(w, http.StatusOK, statusOut{
		TS: st.TS,
		// A status snapshot can claim online while the device has since
		// gone silent; both must agree.
		Online:      d.Online && st.Online,
		TotalPowerW: st.TotalPowerW,
		VoltageV:    st.VoltageV,
		CurrentA:    st.CurrentA,
		Sockets:     sockets,
	})
}

// utcISO renders a unix timestamp as RFC 3339 UTC with a Z suffix.
func utcISO(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
