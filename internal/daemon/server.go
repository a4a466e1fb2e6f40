// Package daemon is the casebook HTTP server: it exposes lessons, learner
// sessions, answer submission, investigation dialogue and progress over a
// JSON API.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/casebooklabs/casebook/internal/config"
	"github.com/casebooklabs/casebook/internal/dialogue"
	"github.com/casebooklabs/casebook/internal/domain"
	"github.com/casebooklabs/casebook/internal/lessonpack"
	"github.com/casebooklabs/casebook/internal/player"
	"github.com/casebooklabs/casebook/internal/progress"
	"github.com/casebooklabs/casebook/internal/queue"
)

// Server represents the casebook daemon HTTP server
type Server struct {
	cfg    *config.LocalConfig
	server *http.Server
	router *http.ServeMux

	lessons    *lessonpack.Registry
	store      progress.Store
	dialogue   *dialogue.Service
	dispatcher *domain.EventDispatcher

	mu       sync.Mutex
	sessions map[string]*liveSession
	byRecord map[string]string // learnerID/lessonID -> session id
}

// liveSession binds an open player session to its identifiers.
type liveSession struct {
	ID        string
	LearnerID string
	LessonID  string
	Player    *player.Session
	OpenedAt  time.Time
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config      *config.LocalConfig
	LessonsPath string
	Store       progress.Store
	// Evaluator judges investigation messages; nil disables dialogue.
	Evaluator dialogue.Evaluator
	// Producer forwards lesson completions to the queue; nil disables it.
	Producer *queue.Producer
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) (*Server, error) {
	s := &Server{
		cfg:        cfg.Config,
		router:     http.NewServeMux(),
		store:      cfg.Store,
		dispatcher: domain.NewEventDispatcher(),
		sessions:   make(map[string]*liveSession),
		byRecord:   make(map[string]string),
	}

	// Load lessons
	loader := lessonpack.NewLoader(cfg.LessonsPath)
	s.lessons = lessonpack.NewRegistry(loader)
	if err := s.lessons.Load(); err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	slog.Info("lessons loaded", "count", s.lessons.Count())

	// Dialogue service, armored with retry and a circuit breaker
	if cfg.Evaluator != nil {
		timeout := time.Duration(cfg.Config.Dialogue.TimeoutSeconds) * time.Second
		resilientCfg := dialogue.DefaultResilientConfig()
		resilientCfg.MaxAttempts = cfg.Config.Dialogue.MaxRetries
		evaluator := dialogue.NewResilientEvaluator(cfg.Evaluator, resilientCfg)
		s.dialogue = dialogue.NewService(evaluator, timeout)
	}

	// Forward completions to the queue when a broker is configured
	if cfg.Producer != nil {
		cfg.Producer.BindDispatcher(s.dispatcher)
	}

	// Setup routes
	s.setupRoutes()

	// Create HTTP server with middleware chain
	addr := fmt.Sprintf("%s:%d", cfg.Config.Daemon.Bind, cfg.Config.Daemon.Port)
	handler := recoveryMiddleware(loggingMiddleware(correlationIDMiddleware(s.router)))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health & status
	s.router.HandleFunc("GET /v1/health", s.handleHealth)
	s.router.HandleFunc("GET /v1/status", s.handleStatus)

	// Lessons
	s.router.HandleFunc("GET /v1/lessons", s.handleListLessons)
	s.router.HandleFunc("GET /v1/lessons/{id}", s.handleGetLesson)

	// Sessions
	s.router.HandleFunc("POST /v1/sessions", s.handleOpenSession)
	s.router.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.router.HandleFunc("DELETE /v1/sessions/{id}", s.handleCloseSession)

	// Navigation
	s.router.HandleFunc("POST /v1/sessions/{id}/next", s.handleNext)
	s.router.HandleFunc("POST /v1/sessions/{id}/previous", s.handlePrevious)
	s.router.HandleFunc("POST /v1/sessions/{id}/jump", s.handleJump)

	// Answers & dialogue
	s.router.HandleFunc("POST /v1/sessions/{id}/submit", s.handleSubmit)
	s.router.HandleFunc("POST /v1/sessions/{id}/message", s.handleSendMessage)

	// Progress
	s.router.HandleFunc("GET /v1/sessions/{id}/progress", s.handleGetProgress)
	s.router.HandleFunc("DELETE /v1/progress/{learner}/{lesson}", s.handleDeleteProgress)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting casebook daemon",
		"addr", s.server.Addr,
		"lessons", s.lessons.Count(),
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server, flushing open sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	s.mu.Lock()
	for _, live := range s.sessions {
		live.Player.Close()
	}
	s.sessions = make(map[string]*liveSession)
	s.byRecord = make(map[string]string)
	s.mu.Unlock()

	return s.server.Shutdown(ctx)
}

// Handler returns the middleware-wrapped handler; used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Handler implementations

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	open := len(s.sessions)
	s.mu.Unlock()

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":        "running",
		"version":       "0.1.0",
		"lessons":       s.lessons.Count(),
		"open_sessions": open,
		"dialogue":      s.dialogue != nil,
	})
}

func (s *Server) handleListLessons(w http.ResponseWriter, r *http.Request) {
	lessons := s.lessons.List()
	result := make([]map[string]interface{}, 0, len(lessons))
	for _, lesson := range lessons {
		result = append(result, map[string]interface{}{
			"id":                         lesson.ID,
			"title":                      lesson.Title,
			"description":                lesson.Description,
			"slide_count":                lesson.SlideCount(),
			"estimated_duration_minutes": lesson.EstimatedDurationMinutes,
		})
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"lessons": result,
	})
}

func (s *Server) handleGetLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := s.lessons.Get(r.PathValue("id"))
	if err != nil {
		s.jsonError(w, http.StatusNotFound, "lesson not found", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, lesson)
}

// Session handlers

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LearnerID string `json:"learner_id"`
		LessonID  string `json:"lesson_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.LearnerID == "" || req.LessonID == "" {
		s.jsonError(w, http.StatusBadRequest, "learner_id and lesson_id are required", nil)
		return
	}

	lesson, err := s.lessons.Get(req.LessonID)
	if err != nil {
		s.jsonError(w, http.StatusNotFound, "lesson not found", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Reuse an already-open session for this learner and lesson.
	recordKey := req.LearnerID + "/" + req.LessonID
	if id, ok := s.byRecord[recordKey]; ok {
		live := s.sessions[id]
		s.jsonResponse(w, http.StatusOK, s.sessionView(live))
		return
	}

	tracker, err := progress.NewTracker(r.Context(), s.store, lesson, req.LearnerID, s.dispatcher, slog.Default())
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to open session", err)
		return
	}
	// The record exists in the store from the first view, not the first
	// mutation.
	tracker.EnsurePersisted()

	live := &liveSession{
		ID:        uuid.New().String(),
		LearnerID: req.LearnerID,
		LessonID:  req.LessonID,
		Player:    player.NewSession(lesson, tracker, s.dialogue, slog.Default()),
		OpenedAt:  time.Now(),
	}
	s.sessions[live.ID] = live
	s.byRecord[recordKey] = live.ID

	s.jsonResponse(w, http.StatusCreated, s.sessionView(live))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(r.PathValue("id"))
	if !ok {
		s.jsonError(w, http.StatusNotFound, "session not found", nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.sessionView(live))
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	live, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		delete(s.byRecord, live.LearnerID+"/"+live.LessonID)
	}
	s.mu.Unlock()

	if !ok {
		s.jsonError(w, http.StatusNotFound, "session not found", nil)
		return
	}

	live.Player.Close()
	w.WriteHeader(http.StatusNoContent)
}

// Navigation handlers

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(r.PathValue("id"))
	if !ok {
		s.jsonError(w, http.StatusNotFound, "session not found", nil)
		return
	}
	live.Player.Next()
	s.jsonResponse(w, http.StatusOK, s.sessionView(live))
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(r.PathValue("id"))
	if !ok {
		s.jsonError(w, http.StatusNotFound, "session not found", nil)
		return
	}
	live.Player.Previous()
	s.jsonResponse(w, http.StatusOK, s.sessionView(live))
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(r.PathValue("id"))
	if !ok {
		s.jsonError(w, http.StatusNotFound, "session not found", nil)
		return
	}

	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	live.Player.JumpTo(req.Index)
	s.jsonResponse(w, http.StatusOK, s.sessionView(live))
}

// Answer & dialogue handlers

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(r.PathValue("id"))
	if !ok {
		s.jsonError(w, http.StatusNotFound, "session not found", nil)
		return
	}

	var req struct {
		SelectedOptionID string            `json:"selected_option_id,omitempty"`
		Assignments      map[string]string `json:"assignments,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.SelectedOptionID != "" {
		if err := live.Player.SelectOption(req.SelectedOptionID); err != nil {
			s.jsonError(w, http.StatusConflict, "cannot answer this slide", err)
			return
		}
	}
	for item, category := range req.Assignments {
		if err := live.Player.AssignItem(item, category); err != nil {
			s.jsonError(w, http.StatusConflict, "cannot answer this slide", err)
			return
		}
	}

	result, err := live.Player.Submit(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSlideLocked):
			s.jsonError(w, http.StatusConflict, "slide already answered this visit", err)
		case errors.Is(err, domain.ErrNotEvaluable):
			s.jsonError(w, http.StatusConflict, "slide has no answer to submit", err)
		default:
			s.jsonError(w, http.StatusInternalServerError, "evaluation failed", err)
		}
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"correct":     result.Correct,
		"explanation": result.Explanation,
		"progress":    live.Player.Progress(),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(r.PathValue("id"))
	if !ok {
		s.jsonError(w, http.StatusNotFound, "session not found", nil)
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Message == "" {
		s.jsonError(w, http.StatusBadRequest, "message is required", nil)
		return
	}

	result, err := live.Player.SendMessage(r.Context(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvestigationClosed):
			s.jsonError(w, http.StatusConflict, "investigation already resolved", err)
		case errors.Is(err, domain.ErrNotEvaluable):
			s.jsonError(w, http.StatusConflict, "active slide is not an investigation", err)
		case errors.Is(err, domain.ErrDialogueUnavailable):
			s.jsonError(w, http.StatusServiceUnavailable, "dialogue temporarily unavailable, please retry", err)
		case errors.Is(err, player.ErrStaleRequest):
			s.jsonError(w, http.StatusConflict, "navigation moved on, message discarded", err)
		default:
			s.jsonError(w, http.StatusInternalServerError, "message handling failed", err)
		}
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"entries":       result.Entries,
		"phase":         result.Phase,
		"resolved":      result.Resolved,
		"hint_provided": result.HintProvided,
		"progress":      live.Player.Progress(),
	})
}

// Progress handlers

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	live, ok := s.lookup(r.PathValue("id"))
	if !ok {
		s.jsonError(w, http.StatusNotFound, "session not found", nil)
		return
	}
	s.jsonResponse(w, http.StatusOK, live.Player.Progress())
}

func (s *Server) handleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	learnerID := r.PathValue("learner")
	lessonID := r.PathValue("lesson")

	// Close any open session for this record first so its writer cannot
	// resurrect the deleted row.
	recordKey := learnerID + "/" + lessonID
	s.mu.Lock()
	var live *liveSession
	if id, ok := s.byRecord[recordKey]; ok {
		live = s.sessions[id]
		delete(s.sessions, id)
		delete(s.byRecord, recordKey)
	}
	s.mu.Unlock()
	if live != nil {
		live.Player.Close()
	}

	if err := progress.DeleteProgress(r.Context(), s.store, learnerID, lessonID); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to delete progress", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helpers

func (s *Server) lookup(id string) (*liveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.sessions[id]
	return live, ok
}

func (s *Server) sessionView(live *liveSession) map[string]interface{} {
	slide, index := live.Player.Current()
	return map[string]interface{}{
		"session_id":    live.ID,
		"learner_id":    live.LearnerID,
		"lesson_id":     live.LessonID,
		"current_index": index,
		"slide":         slide,
		"view":          live.Player.View(),
		"progress":      live.Player.Progress(),
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	s.jsonResponse(w, status, response)
}
