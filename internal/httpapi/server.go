package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Upendra2003/Aira-Backend/internal/config"
	"github.com/Upendra2003/Aira-Backend/internal/observability"
	"github.com/Upendra2003/Aira-Backend/internal/retrieval"
	"github.com/Upendra2003/Aira-Backend/internal/store"
	"github.com/Upendra2003/Aira-Backend/internal/turn"
)

const userIDHeader = "X-User-ID"

type Server struct {
	cfg       config.Config
	pipeline  *turn.Pipeline
	history   store.HistoryStore
	retriever retrieval.Retriever
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, pipeline *turn.Pipeline, history store.HistoryStore, retriever retrieval.Retriever, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		pipeline:  pipeline,
		history:   history,
		retriever: retriever,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot drive a user's chat
				// session if the backend is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/chat/send", s.handleChatSend)
	r.Get("/api/chat/history", s.handleChatHistory)
	r.Get("/api/chat/ws", s.handleChatWS)
	r.Post("/api/retrieval/snippets", s.handleIndexSnippet)
	r.Get("/api/perf/turns", s.handlePerfTurns)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ready",
		"turns_in_flight":  s.pipeline.InFlight(),
		"retrieval_active": s.indexer() != nil,
	})
}

type sendRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "X-User-ID header is required")
		return
	}

	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	reply, err := s.pipeline.HandleTurn(r.Context(), userID, req.Message)
	if err != nil {
		status := http.StatusBadGateway
		code := "turn_failed"
		if errors.Is(err, turn.ErrEmptyMessage) {
			status = http.StatusBadRequest
			code = "empty_message"
		} else if turn.IsRetryable(err) {
			status = http.StatusServiceUnavailable
			code = "turn_retryable"
		}
		respondError(w, status, code, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, reply)
}

type historyResponse struct {
	UserID string       `json:"user_id"`
	Turns  []store.Turn `json:"turns"`
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "X-User-ID header is required")
		return
	}

	turns, err := s.history.ReadAll(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history_unavailable", err.Error())
		return
	}
	if turns == nil {
		turns = []store.Turn{}
	}
	respondJSON(w, http.StatusOK, historyResponse{UserID: userID, Turns: turns})
}

func requestUserID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(userIDHeader))
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
