// Package rag wires the retrieval and generation stages into one chat turn.
//
// A request travels cache → retriever → composer → generator → cache → session
// history. Independent sessions run fully in parallel; the session layer
// serialises history commits per session id. Identical in-flight questions are
// collapsed with singleflight so a burst of the same query produces one
// retrieval and one LLM call.
//
// Component failures degrade instead of aborting the turn: an unreachable
// vector index drops to an ungrounded answer, an unreachable generator or
// embedding provider drops to a deterministic per-language fallback message.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/cache"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/compose"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/corpus"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/generate"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/observe"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/retrieve"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/session"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/types"
)

// DefaultGenerateTimeout bounds a single generator call. A client that
// disconnects earlier does not cancel the call; a completed generation is
// still committed to cache and history.
const DefaultGenerateTimeout = 25 * time.Second

// Request is one inbound chat turn. SessionID is an opaque identifier minted
// by the auth layer; the core never interprets it.
type Request struct {
	SessionID string
	Query     string
	Language  books.Language
}

// Response is the outcome of one chat turn.
type Response struct {
	// Text is the assistant's reply. Never empty: degraded turns carry the
	// per-language fallback message.
	Text string

	// Citations are the full records for every book the reply cites, in
	// first-mention order.
	Citations []books.Record

	// Cached reports whether Text was served from the answer cache.
	Cached bool

	// Degraded reports that a pipeline stage was unavailable and Text is a
	// fallback rather than a grounded answer.
	Degraded bool

	Timestamp time.Time
}

// answer is the shareable part of a chat turn: everything except the
// per-session history commit. This is what singleflight deduplicates.
type answer struct {
	text      string
	citations []books.Record
	degraded  bool

	// ungrounded marks an answer produced without index results.
	ungrounded bool
}

func (a *answer) outcome() string {
	switch {
	case a.degraded:
		return "fallback"
	case a.ungrounded:
		return "ungrounded"
	default:
		return "grounded"
	}
}

// Service orchestrates one chat turn end to end.
type Service struct {
	retriever *retrieve.Retriever
	composer  *compose.Composer
	generator *generate.Generator
	sessions  *session.Manager
	store     corpus.Store
	cache     cache.Store
	log       *slog.Logger
	metrics   *observe.Metrics

	flight singleflight.Group

	// mu guards the tunables below; Tune may change them while turns are in
	// flight.
	mu              sync.RWMutex
	topK            int
	maxContextToken int
	cacheTTL        time.Duration
	generateTimeout time.Duration
}

// Tune adjusts the runtime-tunable limits of a live Service. Zero or negative
// values leave the current setting unchanged. Used by the config watcher to
// apply hot-reloadable changes without a restart.
func (s *Service) Tune(topK, maxContextTokens int, cacheTTL, generateTimeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if topK > 0 {
		s.topK = topK
	}
	if maxContextTokens > 0 {
		s.maxContextToken = maxContextTokens
	}
	if cacheTTL > 0 {
		s.cacheTTL = cacheTTL
	}
	if generateTimeout > 0 {
		s.generateTimeout = generateTimeout
	}
}

// limits snapshots the tunables for one turn.
func (s *Service) limits() (topK, maxContextTokens int, cacheTTL, generateTimeout time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topK, s.maxContextToken, s.cacheTTL, s.generateTimeout
}

// Option configures a Service.
type Option func(*Service)

// WithTopK sets how many candidates the retriever is asked for per turn.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithMaxContextTokens sets the composer budget per turn.
func WithMaxContextTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxContextToken = n
		}
	}
}

// WithCacheTTL sets how long answers stay cached.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

// WithGenerateTimeout sets the hard deadline on a single generator call.
func WithGenerateTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.generateTimeout = d
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a Service from its pipeline stages.
func New(
	retriever *retrieve.Retriever,
	composer *compose.Composer,
	generator *generate.Generator,
	sessions *session.Manager,
	store corpus.Store,
	responseCache cache.Store,
	opts ...Option,
) *Service {
	s := &Service{
		retriever:       retriever,
		composer:        composer,
		generator:       generator,
		sessions:        sessions,
		store:           store,
		cache:           responseCache,
		log:             slog.Default(),
		metrics:         observe.DefaultMetrics(),
		topK:            retrieve.DefaultTopK,
		maxContextToken: compose.DefaultMaxTokens,
		cacheTTL:        cache.DefaultTTL,
		generateTimeout: DefaultGenerateTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat runs one full turn. The returned error is reserved for request-level
// problems (empty query, cancelled context); component outages never surface
// as errors, they degrade the Response instead.
func (s *Service) Chat(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("rag: empty query")
	}
	if req.SessionID == "" {
		return nil, fmt.Errorf("rag: empty session id")
	}
	lang := req.Language
	if !lang.IsValid() {
		lang = books.LanguageEnglish
	}

	start := time.Now()

	window, err := s.sessions.Window(ctx, req.SessionID)
	if err != nil {
		if !errors.Is(err, session.ErrCorrupted) {
			return nil, fmt.Errorf("rag: read session window: %w", err)
		}
		window = nil
	}

	key := s.cacheKey(query, lang, window)
	if entry, ok, err := s.cache.Get(ctx, key); err == nil {
		s.metrics.RecordCacheLookup(ctx, ok)
		if ok {
			resp, err := s.respondCached(ctx, req.SessionID, query, entry)
			if err == nil {
				s.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds())
				s.metrics.RecordChatTurn(ctx, "grounded", true)
			}
			return resp, err
		}
	} else {
		s.log.Warn("cache lookup failed, continuing without cache",
			slog.String("session_id", req.SessionID), slog.String("error", err.Error()))
	}

	// The expensive part is shared: concurrent identical questions over the
	// same window wait on one retrieval + generation.
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.answer(query, lang, window, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		ans := res.Val.(*answer)
		s.commitHistory(ctx, req.SessionID, query, ans, false)
		s.metrics.ChatDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.RecordChatTurn(ctx, ans.outcome(), false)
		return &Response{
			Text:      ans.text,
			Citations: ans.citations,
			Degraded:  ans.degraded,
			Timestamp: time.Now(),
		}, nil
	case <-ctx.Done():
		// The caller is gone but the LLM call may still finish. Let it, and
		// commit its history entry so the conversation stays coherent if the
		// client reconnects to the same session.
		go func() {
			res := <-ch
			if res.Err != nil {
				return
			}
			s.commitHistory(context.Background(), req.SessionID, query, res.Val.(*answer), false)
		}()
		return nil, ctx.Err()
	}
}

// answer runs the miss path: retrieve → compose → generate → cache store.
// It deliberately runs on a detached context: the work is shared across
// callers and survives any single caller's disconnect, bounded only by the
// generator timeout.
func (s *Service) answer(query string, lang books.Language, window []types.Turn, key string) (*answer, error) {
	topK, maxContextTokens, cacheTTL, generateTimeout := s.limits()

	ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
	defer cancel()

	ungrounded := false
	results, err := s.retriever.Retrieve(ctx, query, topK)
	switch {
	case err == nil:
	case errors.Is(err, retrieve.ErrIndexUnavailable):
		// The index being down does not stop the generator from answering
		// from general knowledge, just without citations.
		s.log.Warn("vector index unavailable, answering ungrounded", slog.String("error", err.Error()))
		results = nil
		ungrounded = true
	case errors.Is(err, retrieve.ErrEmbeddingUnavailable):
		s.log.Warn("embedding provider unavailable, serving fallback", slog.String("error", err.Error()))
		return s.fallback(lang), nil
	default:
		return nil, fmt.Errorf("rag: retrieve: %w", err)
	}

	block := s.composer.Compose(results, window, maxContextTokens)

	resp, err := s.generator.Generate(ctx, block, query, lang)
	if err != nil {
		s.log.Warn("generation failed, serving fallback", slog.String("error", err.Error()))
		return s.fallback(lang), nil
	}

	citations, err := s.store.GetBatch(ctx, resp.Citations)
	if err != nil {
		s.log.Warn("citation lookup failed", slog.String("error", err.Error()))
		citations = nil
	}

	ans := &answer{text: resp.Text, citations: citations, ungrounded: ungrounded}

	// Only real answers are cached; a fallback served from cache would outlive
	// the outage that produced it. The same goes for a citation-free answer
	// forced by an index outage: once the index is back, the question deserves
	// a grounded retrieval, not the outage answer for a full TTL.
	if ungrounded {
		return ans, nil
	}
	entry := cache.Entry{Response: resp.Text, Citations: resp.Citations, CreatedAt: time.Now()}
	if err := s.cache.Set(ctx, key, entry, cacheTTL); err != nil {
		s.log.Warn("cache store failed", slog.String("error", err.Error()))
	}
	return ans, nil
}

func (s *Service) fallback(lang books.Language) *answer {
	return &answer{text: generate.FallbackMessage(lang), degraded: true}
}

// respondCached serves a cache hit, resolving cited ids back to full records.
func (s *Service) respondCached(ctx context.Context, sessionID, query string, entry cache.Entry) (*Response, error) {
	citations, err := s.store.GetBatch(ctx, entry.Citations)
	if err != nil {
		s.log.Warn("citation lookup failed", slog.String("error", err.Error()))
		citations = nil
	}
	ans := &answer{text: entry.Response, citations: citations}
	s.commitHistory(ctx, sessionID, query, ans, true)
	return &Response{
		Text:      ans.text,
		Citations: citations,
		Cached:    true,
		Timestamp: time.Now(),
	}, nil
}

// commitHistory appends the finished turn to the session window. Fallback
// answers are not recorded: they carry no conversational content and would
// only pollute future context.
func (s *Service) commitHistory(ctx context.Context, sessionID, query string, ans *answer, cached bool) {
	if ans.degraded {
		return
	}
	ids := make([]string, 0, len(ans.citations))
	for _, rec := range ans.citations {
		ids = append(ids, rec.ID)
	}
	turn := types.Turn{
		UserText:      query,
		AssistantText: ans.text,
		BookIDs:       ids,
		Cached:        cached,
		Timestamp:     time.Now(),
	}
	if _, err := s.sessions.Append(ctx, sessionID, turn); err != nil && !errors.Is(err, session.ErrCorrupted) {
		s.log.Warn("history commit failed",
			slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}
}

// cacheKey derives the answer-cache key for a query asked over a window.
//
// The language is folded into the hashed query so a Turkish and an English
// answer to the same question never collide. If the newest turn in the window
// is this very question (the user asked again), it is excluded from the key:
// the repeat itself must not change the key, otherwise a repeated question
// could never hit its own cached answer.
func (s *Service) cacheKey(query string, lang books.Language, window []types.Turn) string {
	if n := len(window); n > 0 &&
		cache.NormalizeQuery(window[n-1].UserText) == cache.NormalizeQuery(query) {
		window = window[:n-1]
	}
	return cache.Key(string(lang)+"|"+query, window)
}
