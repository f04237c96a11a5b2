package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/genesis-minds/genesis/internal/models"
)

// Server exposes the control plane over HTTP.
type Server struct {
	service *Service
	hub     *Hub
	http    *http.Server
	log     *slog.Logger
}

// NewServer creates the HTTP server bound to addr.
func NewServer(addr string, service *Service, hub *Hub) *Server {
	s := &Server{
		service: service,
		hub:     hub,
		log:     slog.With("component", "controlplane"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", hub.HandleWS)

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", s.handleSubmitTask)
		r.Get("/", s.handleListTasks)
		r.Get("/recovered", s.handleRecoveredTasks)
		r.Get("/{id}", s.handleGetTask)
	})

	r.Post("/events", s.handleAddEvent)
	r.Post("/goals", s.handleAddGoal)
	r.Post("/routines", s.handleAddRoutine)
	r.Get("/life/status", s.handleLifeStatus)

	r.Route("/decisions", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/{id}/outcome", s.handleOutcome)
		r.Get("/", s.handleListDecisions)
	})

	r.Get("/conversation", s.handleConversation)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      otelhttp.NewHandler(r, "controlplane"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the underlying HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	s.log.Info("control plane listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("control plane server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitTaskRequest struct {
	Request   string `json:"request"`
	Requester string `json:"requester"`
	Context   string `json:"context,omitempty"`
	Notify    bool   `json:"notify,omitempty"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Request == "" {
		writeError(w, http.StatusBadRequest, "request is required")
		return
	}

	task, err := s.service.SubmitTask(req.Request, req.Requester, req.Context, req.Notify)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	requester := r.URL.Query().Get("requester")
	limit := queryInt(r, "limit", 50)
	tasks := s.service.ListTasks(requester, limit)
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := s.service.GetTask(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, ErrTaskNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleRecoveredTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.service.ListRecoveredTasks()
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

type addEventRequest struct {
	Type        string            `json:"type"`
	Data        map[string]string `json:"data,omitempty"`
	Priority    int               `json:"priority,omitempty"`
	RequiresLLM bool              `json:"requires_llm,omitempty"`
}

func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var req addEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.service.AddEvent(models.Event{
		Type:        models.EventType(req.Type),
		Data:        req.Data,
		Priority:    req.Priority,
		RequiresLLM: req.RequiresLLM,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type addGoalRequest struct {
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Progress    float64    `json:"progress,omitempty"`
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	var req addGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Description == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}

	goal := s.service.AddGoal(models.Goal{
		Description: req.Description,
		Deadline:    req.Deadline,
		Progress:    req.Progress,
	})
	writeJSON(w, http.StatusCreated, goal)
}

type addRoutineRequest struct {
	Name        string   `json:"name"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	State       string   `json:"state"`
	Activities  []string `json:"activities,omitempty"`
	WarrantsLLM bool     `json:"warrants_llm,omitempty"`
}

func (s *Server) handleAddRoutine(w http.ResponseWriter, r *http.Request) {
	var req addRoutineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	routine, err := s.service.AddRoutine(req.Name, req.Start, req.End,
		models.LifeState(req.State), req.Activities, req.WarrantsLLM)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, routine)
}

func (s *Server) handleLifeStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LifeStatus())
}

type evaluateRequest struct {
	Action        string            `json:"action"`
	Params        map[string]string `json:"params,omitempty"`
	Context       string            `json:"context,omitempty"`
	UserRequested bool              `json:"user_requested,omitempty"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	d := s.service.EvaluateAction(r.Context(), req.Action, req.Params, req.Context, req.UserRequested)
	writeJSON(w, http.StatusOK, d)
}

type outcomeRequest struct {
	Outcome string `json:"outcome"`
	Success bool   `json:"success"`
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.service.RecordOutcome(id, req.Outcome, req.Success); err != nil {
		if errors.Is(err, ErrDecisionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (s *Server) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	decisions := s.service.ListDecisions(limit)
	writeJSON(w, http.StatusOK, map[string]any{"decisions": decisions, "count": len(decisions)})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	requester := r.URL.Query().Get("requester")
	limit := queryInt(r, "limit", 100)
	entries, err := s.service.ListConversation(requester, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
