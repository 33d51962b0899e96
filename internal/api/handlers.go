// Package api provides HTTP handlers for Hamraz endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/Hamraz/internal/models"
)

// requestTimeout bounds one conversational turn end to end, including
// model calls.
const requestTimeout = 120 * time.Second

// participantsHandler handles POST (enroll) and GET (list) /participants.
func (s *Server) participantsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodPost:
		s.enrollParticipant(w, r)
	case http.MethodGet:
		s.listParticipants(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) enrollParticipant(w http.ResponseWriter, r *http.Request) {
	slog.Debug("enrollParticipant invoked", "path", r.URL.Path)

	var req models.EnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("enrollParticipant invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("enrollParticipant validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	existing, err := s.st.GetParticipant(id)
	if err != nil {
		slog.Error("enrollParticipant lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to check existing participant"))
		return
	}
	if existing != nil {
		slog.Warn("enrollParticipant participant already exists", "id", id)
		writeJSONResponse(w, http.StatusConflict, models.Error("Participant already enrolled"))
		return
	}

	group := req.Group
	if group == "" {
		group, err = s.balancedGroup()
		if err != nil {
			slog.Error("enrollParticipant group assignment failed", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to assign study group"))
			return
		}
	}
	stage := req.Stage
	if stage == "" {
		stage = models.StageBeginning
	}

	now := time.Now()
	participant := models.Participant{
		ID:         id,
		Name:       req.Name,
		Stage:      stage,
		Group:      group,
		EnrolledAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.st.SaveParticipant(participant); err != nil {
		slog.Error("enrollParticipant save failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to enroll participant"))
		return
	}

	slog.Info("Participant enrolled", "id", id, "group", group, "stage", stage)
	writeJSONResponse(w, http.StatusCreated, models.Success(participant))
}

func (s *Server) listParticipants(w http.ResponseWriter, _ *http.Request) {
	participants, err := s.st.ListParticipants()
	if err != nil {
		slog.Error("listParticipants failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list participants"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(participants))
}

// balancedGroup picks the least-populated study arm.
func (s *Server) balancedGroup() (models.Group, error) {
	participants, err := s.st.ListParticipants()
	if err != nil {
		return "", err
	}
	counts := map[models.Group]int{
		models.GroupIntervention: 0,
		models.GroupControl:      0,
		models.GroupPlacebo:      0,
	}
	for _, p := range participants {
		counts[p.Group]++
	}
	// Deterministic tie-break: intervention, then control, then placebo.
	order := []models.Group{models.GroupIntervention, models.GroupControl, models.GroupPlacebo}
	best := order[0]
	for _, g := range order[1:] {
		if counts[g] < counts[best] {
			best = g
		}
	}
	return best, nil
}

// messagesHandler handles POST /messages: one inbound user message.
func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("messagesHandler invoked", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("messagesHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("messagesHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	result, err := s.orchestrator.ProcessMessage(ctx, req.ParticipantID, req.Text)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}
	if result.Buffered() {
		slog.Debug("messagesHandler message buffered", "participantID", req.ParticipantID)
		writeJSONResponse(w, http.StatusAccepted, models.Success(result))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// bufferedHandler handles POST /messages/buffered: drain a queued burst.
func (s *Server) bufferedHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("bufferedHandler invoked", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("bufferedHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	result, err := s.orchestrator.ProcessBuffered(ctx, req.ParticipantID)
	if err != nil {
		s.writeTurnError(w, err)
		return
	}
	if result.Buffered() {
		writeJSONResponse(w, http.StatusAccepted, models.Success(result))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// endSessionHandler handles POST /sessions/end.
func (s *Server) endSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("endSessionHandler invoked", "method", r.Method)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.ParticipantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("endSessionHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()
	if err := s.orchestrator.EndSession(ctx, req.ParticipantID); err != nil {
		s.writeTurnError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"status": "healthy"}))
}

// writeTurnError maps orchestration errors onto HTTP status codes.
func (s *Server) writeTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrParticipantNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Participant not found"))
	case errors.Is(err, models.ErrEmptyParticipantID),
		errors.Is(err, models.ErrEmptyMessageText),
		errors.Is(err, models.ErrMessageTextTooLong):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	default:
		slog.Error("Turn processing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
	}
}

func requestContext(r *http.Request) (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}
