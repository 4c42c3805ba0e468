// Package app wires all Luminis subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject in-memory implementations via functional options
// (WithCorpusStore, WithIndex, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/cache"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/compose"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/config"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/corpus"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/generate"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/health"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/index"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/ingest"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/postgres"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/rag"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/resilience"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/retrieve"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/server"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/session"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/tokens"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/provider/embeddings"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/provider/llm"
)

// defaultEmbeddingDims applies when neither the config nor the provider
// reports a dimensionality. Matches OpenAI text-embedding-3-small.
const defaultEmbeddingDims = 1536

// Providers holds one interface value per model boundary. Populated by
// main.go via the config registry; nil means the provider is not configured.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

// App owns all subsystem lifetimes and wires the recommendation pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	store     corpus.Store
	idx       index.Index
	respCache cache.Store
	sessions  *session.Manager
	retriever *retrieve.Retriever
	syncer    *ingest.Syncer
	chat      *rag.Service
	srv       *server.Server

	// closers are called in reverse order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCorpusStore injects a corpus store instead of creating one from config.
func WithCorpusStore(s corpus.Store) Option {
	return func(a *App) { a.store = s }
}

// WithIndex injects a vector index instead of creating one from config.
func WithIndex(i index.Index) Option {
	return func(a *App) { a.idx = i }
}

// WithResponseCache injects an answer cache instead of creating one from config.
func WithResponseCache(c cache.Store) Option {
	return func(a *App) { a.respCache = c }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: storage connection, cache
// backend, session manager, pipeline assembly, and the catalog bootstrap.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Embeddings == nil {
		return nil, fmt.Errorf("app: an embeddings provider is required")
	}
	if providers.LLM == nil {
		return nil, fmt.Errorf("app: an llm provider is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Storage ───────────────────────────────────────────────────────
	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 2. Answer cache ──────────────────────────────────────────────────
	if err := a.initCache(ctx); err != nil {
		return nil, fmt.Errorf("app: init cache: %w", err)
	}

	// ── 3. Sessions ──────────────────────────────────────────────────────
	a.initSessions()

	// ── 4. Pipeline ──────────────────────────────────────────────────────
	a.initPipeline()

	// ── 5. Catalog bootstrap ─────────────────────────────────────────────
	if err := a.syncer.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("app: bootstrap catalog: %w", err)
	}

	// ── 6. HTTP surface ──────────────────────────────────────────────────
	checks := health.New(
		health.CorpusChecker(a.store),
		health.IndexChecker(a.idx),
		health.CacheChecker(a.respCache),
	)
	a.srv = server.New(a.chat, a.retriever, a.store, checks, nil)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// embeddingDims resolves the index dimensionality: explicit config wins, then
// whatever the provider reports, then the package default.
func (a *App) embeddingDims() int {
	if d := a.cfg.Catalog.EmbeddingDimensions; d > 0 {
		return d
	}
	if d := a.providers.Embeddings.Dimensions(); d > 0 {
		return d
	}
	return defaultEmbeddingDims
}

// initStorage sets up the corpus store and vector index: PostgreSQL when a
// DSN is configured, in-memory otherwise.
func (a *App) initStorage(ctx context.Context) error {
	if a.store != nil && a.idx != nil {
		return nil // both injected
	}

	dsn := a.cfg.Catalog.PostgresDSN
	if dsn == "" {
		slog.Info("no postgres_dsn configured, using in-memory catalog")
		if a.store == nil {
			a.store = corpus.NewMemStore()
		}
		if a.idx == nil {
			idx, err := index.NewMem(a.embeddingDims())
			if err != nil {
				return err
			}
			a.idx = idx
		}
		return nil
	}

	pg, err := postgres.NewStore(ctx, dsn, a.embeddingDims())
	if err != nil {
		return err
	}
	if a.store == nil {
		a.store = pg.Corpus()
	}
	if a.idx == nil {
		a.idx = pg.Index()
	}
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	return nil
}

// initCache sets up the answer cache: Redis when configured, in-memory
// otherwise.
func (a *App) initCache(ctx context.Context) error {
	if a.respCache != nil {
		return nil
	}

	ttl := time.Duration(a.cfg.Cache.TTLSeconds) * time.Second

	if r := a.cfg.Cache.Redis; r != nil {
		store, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:       r.Addr,
			Password:   r.Password,
			DB:         r.DB,
			DefaultTTL: ttl,
		})
		if err != nil {
			return err
		}
		a.respCache = store
		a.closers = append(a.closers, store.Close)
		slog.Info("answer cache ready", "backend", "redis", "addr", r.Addr)
		return nil
	}

	var memOpts []cache.MemoryOption
	if a.cfg.Cache.Capacity > 0 {
		memOpts = append(memOpts, cache.WithCapacity(a.cfg.Cache.Capacity))
	}
	if ttl > 0 {
		memOpts = append(memOpts, cache.WithTTL(ttl))
	}
	mem := cache.NewMemory(memOpts...)
	a.respCache = mem
	a.closers = append(a.closers, mem.Close)
	slog.Info("answer cache ready", "backend", "memory")
	return nil
}

// initSessions creates the conversation history manager from config.
func (a *App) initSessions() {
	var opts []session.Option
	if n := a.cfg.Session.WindowSize; n > 0 {
		opts = append(opts, session.WithWindowSize(n))
	}
	if s := a.cfg.Session.IdleTimeoutSeconds; s > 0 {
		opts = append(opts, session.WithIdleTimeout(time.Duration(s)*time.Second))
	}
	a.sessions = session.NewManager(opts...)
	a.closers = append(a.closers, func() error {
		a.sessions.Close()
		return nil
	})
}

// initPipeline assembles retriever, composer, generator, catalog syncer and
// the chat orchestrator. The embedding and generation providers are wrapped
// in circuit-breaker fallback groups so a flapping provider trips open
// instead of stalling every turn.
func (a *App) initPipeline() {
	embedder := resilience.NewEmbeddingFallback(
		a.providers.Embeddings, a.cfg.Providers.Embeddings.Name, resilience.FallbackConfig{})
	model := resilience.NewLLMFallback(
		a.providers.LLM, a.cfg.Providers.LLM.Name, resilience.FallbackConfig{})

	var retrOpts []retrieve.Option
	if k := a.cfg.Retrieval.TopK; k > 0 {
		retrOpts = append(retrOpts, retrieve.WithTopK(k))
	}
	if th := a.cfg.Retrieval.SimilarityThreshold; th > 0 {
		retrOpts = append(retrOpts, retrieve.WithThreshold(th))
	}
	if n := a.cfg.Catalog.EmbeddingTokenBudget; n > 0 {
		retrOpts = append(retrOpts, retrieve.WithEmbedBudget(n))
	}
	a.retriever = retrieve.New(embedder, a.idx, a.store, retrOpts...)

	composer := compose.New(tokens.NewCounter(a.cfg.Providers.LLM.Model))

	var genOpts []generate.Option
	genOpts = append(genOpts, generate.WithProviderName(a.cfg.Providers.LLM.Name))
	if c := a.cfg.Generator.Creativity; c > 0 {
		genOpts = append(genOpts, generate.WithCreativity(c))
	}
	if n := a.cfg.Generator.MaxResponseTokens; n > 0 {
		genOpts = append(genOpts, generate.WithMaxResponseTokens(n))
	}
	generator := generate.New(model, genOpts...)

	var ingestOpts []ingest.Option
	if n := a.cfg.Catalog.EmbeddingBatchSize; n > 0 {
		ingestOpts = append(ingestOpts, ingest.WithBatchSize(n))
	}
	if n := a.cfg.Catalog.EmbeddingTokenBudget; n > 0 {
		ingestOpts = append(ingestOpts, ingest.WithEmbedBudget(n))
	}
	ingestOpts = append(ingestOpts, ingest.WithCache(a.respCache))
	a.syncer = ingest.New(embedder, a.store, a.idx, ingestOpts...)

	var chatOpts []rag.Option
	if k := a.cfg.Retrieval.TopK; k > 0 {
		chatOpts = append(chatOpts, rag.WithTopK(k))
	}
	if n := a.cfg.Retrieval.MaxContextTokens; n > 0 {
		chatOpts = append(chatOpts, rag.WithMaxContextTokens(n))
	}
	if s := a.cfg.Cache.TTLSeconds; s > 0 {
		chatOpts = append(chatOpts, rag.WithCacheTTL(time.Duration(s)*time.Second))
	}
	if s := a.cfg.Generator.TimeoutSeconds; s > 0 {
		chatOpts = append(chatOpts, rag.WithGenerateTimeout(time.Duration(s)*time.Second))
	}
	a.chat = rag.New(a.retriever, composer, generator, a.sessions, a.store, a.respCache, chatOpts...)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Chat returns the chat orchestrator. The config watcher uses it to apply
// hot-reloadable tuning.
func (a *App) Chat() *rag.Service { return a.chat }

// Syncer returns the catalog sync consumer, for feeding external catalog
// event streams.
func (a *App) Syncer() *ingest.Syncer { return a.syncer }

// Server returns the HTTP surface, for serving through a custom listener.
func (a *App) Server() *server.Server { return a.srv }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP until ctx is cancelled. It returns context.Canceled on a
// clean shutdown.
func (a *App) Run(ctx context.Context) error {
	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}

	var certFile, keyFile string
	if tls := a.cfg.Server.TLS; tls != nil {
		certFile, keyFile = tls.CertFile, tls.KeyFile
	}

	slog.Info("http server listening", "addr", addr, "tls", certFile != "")
	return a.srv.Run(ctx, addr, certFile, keyFile)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
