package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Evildoersudo/back-end/internal/bridge"
	"github.com/Evildoersudo/back-end/internal/command"
	"github.com/Evildoersudo/back-end/internal/device"
)

// defaultHistoryLimit bounds GET /api/strips/{id}/cmds when no limit is given.
const defaultHistoryLimit = 20

// cmdRequest is the request body for POST /api/strips/{id}/cmd.
type cmdRequest struct {
	Socket   *int           `json:"socket"`
	Action   string         `json:"action"`
	Mode     *string        `json:"mode"`
	Duration *string        `json:"duration"`
	Payload  map[string]any `json:"payload"`
}

// cmdStateOut is the command lifecycle view returned by GET /api/cmd/{id}
// and the history listing.
type cmdStateOut struct {
	CmdID      string `json:"cmdId"`
	State      string `json:"state"`
	UpdatedAt  int64  `json:"updatedAt"`
	Message    string `json:"message"`
	DurationMs *int   `json:"durationMs"`
}

// cmdHistoryOut is one entry of the GET /api/strips/{id}/cmds response.
type cmdHistoryOut struct {
	cmdStateOut
	Action    string `json:"action"`
	Socket    *int   `json:"socket"`
	CreatedAt int64  `json:"createdAt"`
}

// handleSubmitCommand accepts a control command for a strip, records it as
// pending, and publishes it to the device.
//
// A publish failure does not fail the request: the command is marked failed
// and a CMD_ACK event is pushed so the dashboard resolves the pending spinner.
func (s *Server) handleSubmitCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := chi.URLParam(r, "id")

	var req cmdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		writeBadRequest(w, "action is required")
		return
	}
	if req.Payload == nil {
		req.Payload = map[string]any{}
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

	payloadJSON, err := json.Marshal(req.Payload)
	if err != nil {
		writeBadRequest(w, "payload is not serializable")
		return
	}

	rec, err := s.ledger.Submit(ctx, deviceID, req.Socket, req.Action, string(payloadJSON))
	if err != nil {
		if errors.Is(err, command.ErrCommandConflict) {
			writeConflict(w, "pending command exists for target")
			return
		}
		s.logger.Error("failed to record command", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to record command")
		return
	}

	actor := ""
	if claims := claimsFromContext(ctx); claims != nil {
		actor = claims.Subject
	}
	s.logger.Info("command accepted",
		"device_id", deviceID,
		"cmd_id", rec.CmdID,
		"action", req.Action,
		"user", actor,
	)

	now := s.now().Unix()
	cmdPayload := map[string]any{
		"cmdId":    rec.CmdID,
		"ts":       now,
		"type":     strings.ToUpper(req.Action),
		"socketId": req.Socket,
		"payload":  req.Payload,
		"mode":     req.Mode,
		"duration": req.Duration,
		"source":   "web",
	}

	s.publishCommand(ctx, deviceID, rec.CmdID, cmdPayload)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"cmdId":      rec.CmdID,
		"stripId":    deviceID,
		"acceptedAt": now,
	})
}

// publishCommand sends the command to the bus. When the bus is down the
// record is retired as failed and a synthetic ack event is emitted so
// subscribers see the command resolve.
func (s *Server) publishCommand(ctx context.Context, deviceID, cmdID string, payload map[string]any) {
	var err error
	if s.bus == nil {
		err = bridge.ErrBusUnavailable
	} else {
		err = s.bus.PublishCommand(deviceID, payload)
	}
	if err == nil {
		return
	}

	s.logger.Warn("command publish failed",
		"device_id", deviceID,
		"cmd_id", cmdID,
		"error", err,
	)

	const failMessage = "mqtt unavailable"
	rec, failErr := s.ledger.Fail(ctx, cmdID, failMessage)
	if failErr != nil {
		s.logger.Error("failed to retire unpublished command", "cmd_id", cmdID, "error", failErr)
		return
	}

	if s.bus != nil {
		s.bus.Emit(bridge.AckEvent{
			Type:      bridge.EventCmdAck,
			CmdID:     rec.CmdID,
			State:     rec.State,
			TS:        s.now().Unix(),
			UpdatedAt: rec.UpdatedAt,
			Message:   rec.Message,
		})
	}
}

// handleCommandState reports the lifecycle state of one command.
func (s *Server) handleCommandState(w http.ResponseWriter, r *http.Request) {
	cmdID := chi.URLParam(r, "id")

	rec, err := s.ledger.State(r.Context(), cmdID)
	if err != nil {
		if errors.Is(err, command.ErrCommandNotFound) {
			writeNotFound(w, "cmd not found")
			return
		}
		s.logger.Error("failed to load command", "cmd_id", cmdID, "error", err)
		writeInternalError(w, "failed to load command")
		return
	}

	writeJSON(w, http.StatusOK, cmdStateOut{
		CmdID:      rec.CmdID,
		State:      rec.State,
		UpdatedAt:  rec.UpdatedAt,
		Message:    rec.Message,
		DurationMs: rec.DurationMs,
	})
}

// handleCommandHistory lists recent commands for a strip, newest first.
func (s *Server) handleCommandHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deviceID := chi.URLParam(r, "id")

	if _, err := s.devices.GetByID(ctx, deviceID); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("failed to load device", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to load device")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit is invalid")
			return
		}
		limit = parsed
	}

	records, err := s.ledger.History(ctx, deviceID, limit)
	if err != nil {
		s.logger.Error("failed to list commands", "device_id", deviceID, "error", err)
		writeInternalError(w, "failed to list commands")
		return
	}

	out := make([]cmdHistoryOut, 0, len(records))
	for _, rec := range records {
		out = append(out, cmdHistoryOut{
			cmdStateOut: cmdStateOut{
				CmdID:      rec.CmdID,
				State:      rec.State,
				UpdatedAt:  rec.UpdatedAt,
				Message:    rec.Message,
				DurationMs: rec.DurationMs,
			},
			Action:    rec.Action,
			Socket:    rec.Socket,
			CreatedAt: rec.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}
