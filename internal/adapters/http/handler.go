package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PabloGalante/farum-triage/internal/app/conversation"
	"github.com/PabloGalante/farum-triage/internal/app/journal"
	"github.com/PabloGalante/farum-triage/internal/domain"
	"github.com/PabloGalante/farum-triage/internal/observability"
)

const maxBodyBytes = 64 << 10

type Server struct {
	svc     *conversation.Service
	journal *journal.Service
}

// NewServer wires the routes. allowedOrigin is sent as
// Access-Control-Allow-Origin; empty means "*".
func NewServer(svc *conversation.Service, journalSvc *journal.Service, allowedOrigin string) http.Handler {
	s := &Server{svc: svc, journal: journalSvc}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /chat → one dialogue turn (POST)
	mux.HandleFunc("/chat", s.handleChat)

	// /sessions?escalated=true → sessions flagged for follow-up (GET)
	mux.HandleFunc("/sessions", s.handleSessions)

	// /sessions/{id}        → GET: session state
	// /sessions/{id}/events → GET: session events
	mux.HandleFunc("/sessions/", s.handleSessionWithID)

	// /review → escalated sessions with their event history (GET)
	mux.HandleFunc("/review", s.handleReview)

	return chainMiddlewares(mux,
		withLogging,
		withCORS(allowedOrigin),
		withRequestID,
	)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

// chatRequest keeps raw fields so a non-string message degrades to "".
type chatRequest struct {
	Message   json.RawMessage `json:"message"`
	SessionID json.RawMessage `json:"session_id"`
}

type chatResponse struct {
	Reply     string `json:"reply"`
	Escalate  bool   `json:"escalate"`
	SessionID string `json:"session_id"`
}

type sessionResponse struct {
	ID                  string    `json:"id"`
	ScreeningInProgress bool      `json:"screening_in_progress"`
	Step                int       `json:"step"`
	Answers             []string  `json:"answers"`
	Escalated           bool      `json:"escalated"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type eventResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Score     *int      `json:"score,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type listEventsResponse struct {
	SessionID string          `json:"session_id"`
	Events    []eventResponse `json:"events"`
}

type reviewEntryResponse struct {
	Session  sessionResponse `json:"session"`
	Events   []eventResponse `json:"events"`
	Score    *int            `json:"last_score,omitempty"`
	Severity string          `json:"last_severity,omitempty"`
}

type reviewResponse struct {
	Entries []reviewEntryResponse `json:"entries"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePostChat(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListEscalated(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /sessions/{id} or /sessions/{id}/events
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(path, "/")
	id := parts[0]

	if id == "" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	switch {
	case len(parts) == 1:
		s.handleGetSession(w, r, domain.SessionID(id))
	case len(parts) == 2 && parts[1] == "events":
		s.handleGetEvents(w, r, domain.SessionID(id))
	default:
		http.NotFound(w, r)
	}
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handlePostChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	out, err := s.svc.Chat(r.Context(), conversation.ChatInput{
		SessionID: domain.SessionID(optionalString(req.SessionID)),
		Message:   optionalString(req.Message),
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			clientClosed(w, r, err)
		case errors.Is(err, context.DeadlineExceeded):
			writeJSON(w, http.StatusGatewayTimeout, map[string]string{
				"error": "request timed out",
			})
		default:
			internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:     out.Reply,
		Escalate:  out.Escalate,
		SessionID: string(out.SessionID),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	sess, err := s.svc.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			notFound(w, "session not found")
			return
		}
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleListEscalated(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("escalated") != "true" {
		badRequest(w, "only escalated=true listing is supported")
		return
	}

	sessions, err := s.svc.ListEscalated(r.Context(), parseLimit(r))
	if err != nil {
		internalError(w, r, err)
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(sess))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	evs, err := s.svc.GetSessionEvents(r.Context(), id, parseLimit(r))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			notFound(w, "session not found")
			return
		}
		internalError(w, r, err)
		return
	}

	resp := listEventsResponse{SessionID: string(id), Events: make([]eventResponse, 0, len(evs))}
	for _, ev := range evs {
		resp.Events = append(resp.Events, toEventResponse(ev))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	entries, err := s.journal.Escalated(r.Context(), parseLimit(r))
	if err != nil {
		internalError(w, r, err)
		return
	}

	resp := reviewResponse{Entries: make([]reviewEntryResponse, 0, len(entries))}
	for _, e := range entries {
		item := reviewEntryResponse{
			Session: toSessionResponse(e.Session),
			Events:  make([]eventResponse, 0, len(e.Events)),
		}
		for _, ev := range e.Events {
			item.Events = append(item.Events, toEventResponse(ev))
		}
		if last, ok := e.LastScore(); ok {
			score := last.Score
			item.Score = &score
			item.Severity = last.Severity
		}
		resp.Entries = append(resp.Entries, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─────────────────────────────────────────────
// Conversation Helpers
// ─────────────────────────────────────────────

// optionalString decodes a JSON string; anything else (absent, null, number, object) is "".
func optionalString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	return v
}

func parseLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func toSessionResponse(s *domain.Session) sessionResponse {
	answers := s.Answers
	if answers == nil {
		answers = []string{}
	}
	return sessionResponse{
		ID:                  string(s.ID),
		ScreeningInProgress: s.ScreeningInProgress,
		Step:                s.Step,
		Answers:             answers,
		Escalated:           s.Escalated,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

func toEventResponse(ev *domain.Event) eventResponse {
	resp := eventResponse{
		ID:        string(ev.ID),
		Kind:      string(ev.Kind),
		Severity:  ev.Severity,
		CreatedAt: ev.CreatedAt,
	}
	if ev.Kind == domain.EventScreeningCompleted {
		score := ev.Score
		resp.Score = &score
	}
	return resp
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed",
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

// statusClientClosedRequest is nginx's non-standard 499.
const statusClientClosedRequest = 499

func clientClosed(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Info("client went away",
		"path", r.URL.Path,
		"error", err,
	)
	writeJSON(w, statusClientClosedRequest, map[string]string{
		"error": "client closed request",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
