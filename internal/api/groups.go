package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
)

const (
	// coreRequestTimeout bounds single-device calls into the core.
	coreRequestTimeout = 5 * time.Second

	// queryReplyGrace is added to a query's timeout while waiting for its reply.
	queryReplyGrace = time.Second
)

// temperatureBody is the request body of PUT .../temperature.
type temperatureBody struct {
	Value *float64 `json:"value"`
}

// handleListDevices returns the tracked devices of a group.
//
// GET /groups/{group}/devices
// Response: {"group_id": "...", "devices": [...], "count": N}
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "group")

	ctx, cancel := context.WithTimeout(r.Context(), coreRequestTimeout)
	defer cancel()

	ids, err := s.core.ListDevices(ctx, groupID)
	if err != nil {
		s.logCoreError("list devices failed", err, "group", groupID)
		writeCoreError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group_id": groupID,
		"devices":  ids,
		"count":    len(ids),
	})
}

// handleTrackDevice registers a device, creating its group when needed.
// Tracking an already tracked device is a no-op.
//
// PUT /groups/{group}/devices/{device}
// Response: 200 {"group_id": "...", "device_id": "..."}
func (s *Server) handleTrackDevice(w http.ResponseWriter, r *http.Request) {
	groupID, deviceID := chi.URLParam(r, "group"), chi.URLParam(r, "device")

	ctx, cancel := context.WithTimeout(r.Context(), coreRequestTimeout)
	defer cancel()

	if _, err := s.core.TrackDevice(ctx, groupID, deviceID); err != nil {
		s.logCoreError("track device failed", err, "group", groupID, "device", deviceID)
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"group_id":  groupID,
		"device_id": deviceID,
	})
}

// handlePassivateDevice asks the group to stop a device.
//
// DELETE /groups/{group}/devices/{device}
// Response: 202 Accepted (the device stops asynchronously)
func (s *Server) handlePassivateDevice(w http.ResponseWriter, r *http.Request) {
	groupID, deviceID := chi.URLParam(r, "group"), chi.URLParam(r, "device")

	if err := s.core.PassivateDevice(groupID, deviceID); err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "passivating"})
}

// handlePassivateGroup stops a group and all of its devices.
//
// DELETE /groups/{group}
// Response: 202 Accepted
func (s *Server) handlePassivateGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "group")

	if err := s.core.PassivateGroup(groupID); err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "passivating"})
}

// handleReadTemperature returns the latest reading of a tracked device.
//
// GET /groups/{group}/devices/{device}/temperature
// Response: {"group_id": "...", "device_id": "...", "value": 21.5 | null}
func (s *Server) handleReadTemperature(w http.ResponseWriter, r *http.Request) {
	groupID, deviceID := chi.URLParam(r, "group"), chi.URLParam(r, "device")

	ctx, cancel := context.WithTimeout(r.Context(), coreRequestTimeout)
	defer cancel()

	temp, err := s.core.ReadTemperature(ctx, groupID, deviceID)
	if err != nil {
		s.logCoreError("read temperature failed", err, "group", groupID, "device", deviceID)
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group_id":  groupID,
		"device_id": deviceID,
		"value":     temp,
	})
}

// handleRecordTemperature stores a reading, tracking the device if needed.
//
// PUT /groups/{group}/devices/{device}/temperature
// Body: {"value": 21.5}
// Response: 200 {"group_id": "...", "device_id": "...", "value": 21.5}
func (s *Server) handleRecordTemperature(w http.ResponseWriter, r *http.Request) {
	groupID, deviceID := chi.URLParam(r, "group"), chi.URLParam(r, "device")

	var body temperatureBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if body.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), coreRequestTimeout)
	defer cancel()

	if err := s.core.RecordTemperature(ctx, groupID, deviceID, *body.Value); err != nil {
		s.logCoreError("record temperature failed", err, "group", groupID, "device", deviceID)
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group_id":  groupID,
		"device_id": deviceID,
		"value":     *body.Value,
	})
}

// handleGroupTemperatures runs an aggregate query over a group.
//
// GET /groups/{group}/temperatures?timeout=2s
// Response: {"group_id": "...", "temperatures": {"dev": {"kind": "value", "value": 21.5}, ...}}
//
// Devices that do not answer within the timeout are reported as timed_out;
// the request itself still succeeds.
func (s *Server) handleGroupTemperatures(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "group")

	timeout, err := s.parseQueryTimeout(r.URL.Query().Get("timeout"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	wait := timeout
	if wait == 0 {
		wait = s.queryCfg.DefaultTimeout
	}
	if wait <= 0 {
		wait = iot.DefaultQueryTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), wait+queryReplyGrace)
	defer cancel()

	start := time.Now()
	temps, err := s.core.RequestAllTemperatures(ctx, groupID, timeout)
	if err != nil {
		s.logCoreError("group query failed", err, "group", groupID)
		writeCoreError(w, err)
		return
	}
	if temps == nil {
		temps = map[string]iot.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group_id":     groupID,
		"temperatures": temps,
		"duration_ms":  time.Since(start).Milliseconds(),
	})
}

// parseQueryTimeout parses the timeout query parameter. An empty value means
// the core's default; values above the configured maximum are capped.
func (s *Server) parseQueryTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout must not be negative")
	}
	if s.queryCfg.MaxTimeout > 0 && d > s.queryCfg.MaxTimeout {
		d = s.queryCfg.MaxTimeout
	}
	return d, nil
}

// logCoreError logs unavailable-core failures; client errors are not logged.
func (s *Server) logCoreError(msg string, err error, args ...any) {
	if coreErrorStatus(err) < http.StatusInternalServerError {
		return
	}
	s.logger.Warn(msg, append(args, "error", err)...)
}
