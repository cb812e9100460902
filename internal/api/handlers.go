package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benmeehan/collar-sync/internal/models"
	"github.com/benmeehan/collar-sync/internal/services"
)

// APIKeyHeader carries the collar's API key on ingestion requests.
const APIKeyHeader = "X-API-Key"

const maxRequestBody = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status string            `json:"status"`
	State  string            `json:"state"`
	Stats  models.CycleStats `json:"stats"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		State:  s.syncer.State(),
		Stats:  s.syncer.Stats(),
	})
}

// handleCreateLocation stores one position posted by a collar. A missing
// timestamp defaults to the time of receipt.
func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	apiKey := strings.TrimSpace(r.Header.Get(APIKeyHeader))
	if apiKey == "" {
		writeError(w, http.StatusUnauthorized, "missing API key")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	observation := models.ObservationFromJSON(body)
	if !observation.HasTimestamp() {
		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
			writeError(w, http.StatusBadRequest, models.ErrInvalidFormat.Error())
			return
		}
		fields[models.FieldObservedAt] = s.now().UTC().Format(time.RFC3339Nano)
		normalized, _ := json.Marshal(fields)
		observation = models.ObservationFromJSON(normalized)
	}

	deviceID := observation.DeviceID()
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, "missing field: "+models.FieldDeviceID)
		return
	}

	ok, err := s.directory.Verify(r.Context(), deviceID, apiKey)
	if err != nil {
		s.logger.Error().Err(err).Str("device_id", deviceID).Msg("Failed to verify API key")
		writeError(w, http.StatusInternalServerError, "failed to verify API key")
		return
	}
	if !ok {
		s.logger.Warn().Str("device_id", deviceID).Msg("Rejected position with invalid API key")
		writeError(w, http.StatusUnauthorized, "invalid API key")
		return
	}

	position, err := observation.Validate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := s.store.Insert(r.Context(), models.NewPositionRecord(position))
	if err != nil {
		s.logger.Error().Err(err).Str("device_id", deviceID).Msg("Failed to store posted position")
		writeError(w, http.StatusInternalServerError, "failed to store position")
		return
	}

	s.logger.Info().Str("device_id", deviceID).Str("record_id", record.ID).Msg("Position received")
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	positions, err := s.syncer.LatestPositions(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read latest positions")
		writeError(w, http.StatusInternalServerError, "failed to read positions")
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

func (s *Server) handleSyncExternal(w http.ResponseWriter, r *http.Request) {
	summary, err := s.syncer.SyncExternal(r.Context())
	if err != nil {
		writePhaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSyncToCollar(w http.ResponseWriter, r *http.Request) {
	summary, err := s.syncer.SyncToCollar(r.Context())
	if err != nil {
		writePhaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writePhaseError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrCycleInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}
