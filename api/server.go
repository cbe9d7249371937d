package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/wricardo/mcp-training/manualdrive/game/config"
	"github.com/wricardo/mcp-training/manualdrive/game/engine"
	"github.com/wricardo/mcp-training/manualdrive/game/lessons"
	"github.com/wricardo/mcp-training/manualdrive/game/service"
	"github.com/wricardo/mcp-training/manualdrive/transport/websocket"
)

// maxBodyBytes caps request bodies; a full input sequence fits comfortably
const maxBodyBytes = 1 << 20

// Server represents the REST API server
type Server struct {
	service service.DrivingService
	hub     *websocket.Hub
	router  *mux.Router
	logger  zerolog.Logger
}

// NewServer creates a new API server. hub may be nil.
func NewServer(drivingService service.DrivingService, hub *websocket.Hub, logger zerolog.Logger) *Server {
	s := &Server{
		service: drivingService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")
	api.HandleFunc("/sessions/{id}/profile", s.handleSwitchProfile).Methods("PUT")

	// Vehicle controls
	api.HandleFunc("/sessions/{id}/snapshot", s.handleGetSnapshot).Methods("GET")
	api.HandleFunc("/sessions/{id}/engine", s.handleToggleEngine).Methods("POST")
	api.HandleFunc("/sessions/{id}/clutch", s.handlePedal(engine.ActionClutch, s.service.SetClutch)).Methods("POST")
	api.HandleFunc("/sessions/{id}/gear", s.handleShiftGear).Methods("POST")
	api.HandleFunc("/sessions/{id}/throttle", s.handlePedal(engine.ActionThrottle, s.service.SetThrottle)).Methods("POST")
	api.HandleFunc("/sessions/{id}/brake", s.handlePedal(engine.ActionBrake, s.service.SetBrake)).Methods("POST")
	api.HandleFunc("/sessions/{id}/tick", s.handleTick).Methods("POST")
	api.HandleFunc("/sessions/{id}/inputs", s.handleApplyInputs).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Lessons
	api.HandleFunc("/lessons", s.handleListLessons).Methods("GET")
	api.HandleFunc("/lessons/{id}", s.handleGetLesson).Methods("GET")

	// Configuration
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/reload", s.handleReloadConfigs).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers

// respondJSON encodes before writing the header so an unencodable value
// becomes a 500 instead of an empty 200
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": fmt.Sprintf("failed to encode response: %v", err)})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors to HTTP statuses
func respondServiceError(w http.ResponseWriter, err error) {
	var notFound *lessons.NotFoundError
	switch {
	case errors.As(err, &notFound):
		respondJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":             err.Error(),
			"available_lessons": notFound.Available,
		})
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrConfigNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, engine.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody decodes an optional JSON body; an empty body leaves dst untouched
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// broadcast pushes the new state, then each driving event, to the session's watchers
func (s *Server) broadcast(sessionID string, state engine.VehicleState, events []service.DrivingEvent) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToSession(sessionID, state)
	for _, ev := range events {
		s.hub.BroadcastEvent(sessionID, ev.Type, ev)
	}
}

func (s *Server) watchers(sessionID string) int {
	if s.hub == nil {
		return 0
	}
	return s.hub.ClientCount(sessionID)
}

func (s *Server) logControl(sessionID, action string, result *service.ControlResult) {
	s.logger.Info().
		Str("session", sessionID).
		Str("action", action).
		Str("outcome", string(result.Outcome)).
		Str("code", result.Error).
		Str("gear", result.Snapshot.Gear).
		Str("rpm", result.Snapshot.RPM).
		Str("speed", result.Snapshot.Speed).
		Msg("control")
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id,omitempty"`
	}

	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := s.service.CreateSession(r.Context(), req.ConfigID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort") // "created", "accessed" (default)
	order := query.Get("order") // "asc", "desc" (default)
	if sortBy != "created" {
		sortBy = "accessed"
	}
	if order != "asc" {
		order = "desc"
	}

	sort.Slice(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(sessions)
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(sessions) {
			sessions = sessions[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := s.service.GetSession(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		*service.SessionInfo
		Watchers int `json:"watchers"`
	}{session, s.watchers(sessionID)})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

func (s *Server) handleSwitchProfile(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		ConfigID string `json:"config_id"`
	}
	if err := decodeBody(r, &req); err != nil || req.ConfigID == "" {
		respondError(w, http.StatusBadRequest, `Invalid request body, expected {"config_id": "..."}`)
		return
	}

	session, err := s.service.SwitchProfile(r.Context(), sessionID, req.ConfigID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, session.State, []service.DrivingEvent{{
		Type:      service.EventReset,
		Message:   fmt.Sprintf("Switched to profile %s", session.ConfigName),
		Timestamp: time.Now(),
	}})
	s.logger.Info().Str("session", sessionID).Str("profile", session.ConfigName).Msg("profile")
	respondJSON(w, http.StatusOK, session)
}

// Vehicle Handlers

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.GetSnapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleToggleEngine(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	result, err := s.service.ToggleEngine(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.State, result.Events)
	s.logControl(sessionID, string(engine.ActionToggleEngine), result)
	respondJSON(w, http.StatusOK, result)
}

// handlePedal serves clutch, throttle and brake, which all take {"value": 0..1}
func (s *Server) handlePedal(action engine.Action, set func(ctx context.Context, sessionID string, value float64) (*service.ControlResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["id"]

		var req struct {
			Value *float64 `json:"value"`
		}
		if err := decodeBody(r, &req); err != nil || req.Value == nil {
			respondError(w, http.StatusBadRequest, `Invalid request body, expected {"value": 0..1}`)
			return
		}

		result, err := set(r.Context(), sessionID, *req.Value)
		if err != nil {
			respondServiceError(w, err)
			return
		}

		s.broadcast(sessionID, result.State, result.Events)
		s.logControl(sessionID, string(action), result)
		respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleShiftGear(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Gear *int `json:"gear"`
	}
	if err := decodeBody(r, &req); err != nil || req.Gear == nil {
		respondError(w, http.StatusBadRequest, `Invalid request body, expected {"gear": -1..5}`)
		return
	}

	result, err := s.service.ShiftGear(r.Context(), sessionID, engine.Gear(*req.Gear))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.State, result.Events)
	s.logControl(sessionID, string(engine.ActionShift), result)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	req := struct {
		DeltaTime float64 `json:"dt"`
		Count     int     `json:"count"`
	}{DeltaTime: 1, Count: 1}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := engine.CheckDeltaTime(req.DeltaTime); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.Tick(r.Context(), sessionID, req.DeltaTime, req.Count)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.State, result.Events)
	s.logControl(sessionID, string(engine.ActionTick), result)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleApplyInputs(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Inputs []engine.Input `json:"inputs"`
		Reset  bool           `json:"reset,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Inputs) == 0 && !req.Reset {
		respondError(w, http.StatusBadRequest, "inputs must not be empty")
		return
	}

	result, err := s.service.ApplyInputs(r.Context(), sessionID, req.Inputs, req.Reset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.State, result.Events)
	s.logger.Info().
		Str("session", sessionID).
		Int("executed", result.InputsExecuted).
		Int("requested", result.RequestedInputs).
		Str("stop", result.StopReasonCode).
		Float64("distance_delta", result.DistanceDelta).
		Msg("inputs")

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	result, err := s.service.Reset(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.State, result.Events)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetActionHistory(r.Context(), sessionID, opts)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// Lesson Handlers

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListLessons(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "lesson id must be a number")
		return
	}

	lesson, err := s.service.GetLesson(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, lesson)
}

// Configuration Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	configName := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	cfg, err := s.service.LoadConfig(r.Context(), configName)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id"`
		engine.PhysicsConfig
	}

	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Config name is required")
		return
	}

	configID := req.ConfigID
	if configID == "" {
		configID = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(req.Name)), " ", "-")
	}

	cfg := req.PhysicsConfig
	if err := s.service.SaveConfig(r.Context(), configID, &cfg); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Configuration saved successfully",
		"config_id": configID,
	})
}

func (s *Server) handleReloadConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ReloadConfigs(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(configs),
		"configs": configs,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	if _, err := s.service.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, sessionID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
