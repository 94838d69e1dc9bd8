package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// reportOut is the GET /api/rooms/{room}/ai_report response.
type reportOut struct {
	RoomID      string   `json:"room_id"`
	Period      string   `json:"period"`
	Summary     string   `json:"summary"`
	Anomalies   []string `json:"anomalies"`
	Suggestions []string `json:"suggestions"`
}

// reportDays maps report periods to their lookback window in days.
var reportDays = map[string]int{
	"7d":  7,
	"30d": 30,
}

// handleRoomReport summarises recent power usage for all strips in a room.
func (s *Server) handleRoomReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	room := chi.URLParam(r, "room")

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "7d"
	}
	days, ok := reportDays[period]
	if !ok {
		writeBadRequest(w, "period is invalid")
		return
	}

	devices, err := s.devices.ListByRoom(ctx, room)
	if err != nil {
		s.logger.Error("failed to list room devices", "room", room, "error", err)
		writeInternalError(w, "failed to list room devices")
		return
	}
	if len(devices) == 0 {
		writeNotFound(w, "room not found")
		return
	}

	deviceIDs := make([]string, 0, len(devices))
	for _, d := range devices {
		deviceIDs = append(deviceIDs, d.ID)
	}

	from := s.now().Unix() - int64(days)*24*3600
	stats, err := s.samples.PowerStats(ctx, deviceIDs, from)
	if err != nil {
		s.logger.Error("failed to compute power stats", "room", room, "error", err)
		writeInternalError(w, "failed to compute power stats")
		return
	}

	if stats.Count == 0 {
		writeJSON(w, http.StatusOK, reportOut{
			RoomID:      room,
			Period:      period,
			Summary:     "Devices are online but telemetry coverage is insufficient.",
			Anomalies:   []string{"Not enough telemetry points in selected period."},
			Suggestions: []string{"Increase telemetry frequency to every 1-5 seconds."},
		})
		return
	}

	writeJSON(w, http.StatusOK, reportOut{
		RoomID:  room,
		Period:  period,
		Summary: fmt.Sprintf("Average power is about %.1fW, peak is about %.1fW.", stats.AvgW, stats.PeakW),
		Anomalies: []string{
			fmt.Sprintf("Peak power reached %.1fW. Check high-load periods.", stats.PeakW),
		},
		Suggestions: []string{
			"Enable auto off for low-priority sockets after 00:30.",
			"Set alerts for periods above baseline by 20%.",
		},
	})
}
