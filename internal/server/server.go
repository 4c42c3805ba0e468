// Package server exposes the recommendation core over a thin HTTP JSON
// surface.
//
// The endpoints mirror what the chat UI consumes: POST /api/chat drives the
// conversational pipeline, the /api/books routes serve catalog listings and
// semantic lookups, and /healthz, /readyz and /metrics serve operations. The
// server holds no domain state of its own; every handler delegates to the
// injected components.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/corpus"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/health"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/observe"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/rag"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/retrieve"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
)

const (
	// shutdownTimeout bounds graceful connection draining on Run exit.
	shutdownTimeout = 10 * time.Second

	// maxChatBodyBytes caps the /api/chat request body. Queries are short;
	// anything larger is a client bug.
	maxChatBodyBytes = 64 << 10

	// defaultListLimit caps /api/books listings when the client does not ask
	// for a specific limit.
	defaultListLimit = 20
)

// Server routes HTTP requests to the recommendation core. Construct with
// [New]; the zero value is not usable.
type Server struct {
	chat      *rag.Service
	retriever *retrieve.Retriever
	store     corpus.Store
	checks    *health.Handler
	metrics   *observe.Metrics
}

// New creates a Server over the given components. The health handler may be
// nil, in which case only a liveness probe is registered.
func New(chat *rag.Service, retriever *retrieve.Retriever, store corpus.Store, checks *health.Handler, metrics *observe.Metrics) *Server {
	if checks == nil {
		checks = health.New()
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		chat:      chat,
		retriever: retriever,
		store:     store,
		checks:    checks,
		metrics:   metrics,
	}
}

// Handler returns the full route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/books", s.handleListBooks)
	mux.HandleFunc("GET /api/books/search", s.handleSearch)
	mux.HandleFunc("GET /api/books/{id}/similar", s.handleSimilar)

	s.checks.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// Run serves HTTP on addr until ctx is cancelled, then drains connections
// for up to shutdownTimeout. certFile and keyFile enable TLS when both are
// non-empty.
func (s *Server) Run(ctx context.Context, addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if certFile != "" && keyFile != "" {
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// ─── /api/chat ───────────────────────────────────────────────────────────────

// chatRequest is the POST /api/chat body.
type chatRequest struct {
	// SessionID ties this turn to a conversation. Empty means "start a new
	// conversation"; the generated ID comes back in the response.
	SessionID string `json:"session_id"`

	// Message is the user's free-text question.
	Message string `json:"message"`

	// Language selects the response language, "tr" or "en". Empty defaults
	// to English.
	Language string `json:"language"`
}

// chatResponse is the POST /api/chat body on success.
type chatResponse struct {
	SessionID string         `json:"session_id"`
	Response  string         `json:"response"`
	Books     []books.Record `json:"books,omitempty"`
	Cached    bool           `json:"cached"`
	Degraded  bool           `json:"degraded,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	body := http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resp, err := s.chat.Chat(r.Context(), rag.Request{
		SessionID: sessionID,
		Query:     req.Message,
		Language:  books.Language(req.Language),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing useful to write.
			return
		}
		observe.Logger(r.Context()).Error("chat turn failed", slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "chat turn failed")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		SessionID: sessionID,
		Response:  resp.Text,
		Books:     resp.Citations,
		Cached:    resp.Cached,
		Degraded:  resp.Degraded,
		Timestamp: resp.Timestamp,
	})
}

// ─── /api/books ──────────────────────────────────────────────────────────────

// scoredBook is one semantic search or similarity hit.
type scoredBook struct {
	Book  books.Record `json:"book"`
	Score float64      `json:"score"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	k := intParam(r, "k", 0)

	results, err := s.retriever.Retrieve(r.Context(), query, k)
	if err != nil {
		observe.Logger(r.Context()).Error("search failed", slog.String("err", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "search unavailable")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Results []scoredBook `json:"results"`
	}{Results: toScored(results)})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	k := intParam(r, "k", 0)

	results, err := s.retriever.Similar(r.Context(), id, k)
	if err != nil {
		if errors.Is(err, corpus.ErrNotFound) {
			writeError(w, http.StatusNotFound, "book not found")
			return
		}
		observe.Logger(r.Context()).Error("similar lookup failed",
			slog.String("id", id), slog.String("err", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "similarity lookup unavailable")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Results []scoredBook `json:"results"`
	}{Results: toScored(results)})
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := corpus.ListFilter{
		Genre:    books.Genre(q.Get("genre")),
		Language: books.Language(q.Get("language")),
		Limit:    intParam(r, "limit", defaultListLimit),
	}
	if filter.Genre != "" && !filter.Genre.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown genre")
		return
	}
	if filter.Language != "" && !filter.Language.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown language")
		return
	}
	if raw := q.Get("min_rating"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 5 {
			writeError(w, http.StatusBadRequest, "min_rating must be a number in [0, 5]")
			return
		}
		filter.MinRating = v
	}

	records, err := s.store.List(r.Context(), filter)
	if err != nil {
		observe.Logger(r.Context()).Error("list books failed", slog.String("err", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Books []books.Record `json:"books"`
	}{Books: records})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func toScored(results []retrieve.Result) []scoredBook {
	out := make([]scoredBook, len(results))
	for i, res := range results {
		out[i] = scoredBook{Book: res.Record, Score: res.Score}
	}
	return out
}

// intParam parses a positive integer query parameter, falling back to def
// when absent or malformed.
func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response encode failed", slog.String("err", err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
