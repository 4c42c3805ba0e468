package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; chat responses will always fall back")
	}
	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("no embeddings provider configured; retrieval will be unavailable")
	}

	// Retrieval
	if t := cfg.Retrieval.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("retrieval.similarity_threshold %.2f is out of range [0, 1]", t))
	}
	if cfg.Retrieval.TopK < 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k %d must not be negative", cfg.Retrieval.TopK))
	}
	if cfg.Retrieval.MaxContextTokens < 0 {
		errs = append(errs, fmt.Errorf("retrieval.max_context_tokens %d must not be negative", cfg.Retrieval.MaxContextTokens))
	}

	// Generator
	if c := cfg.Generator.Creativity; c < 0 || c > 1 {
		errs = append(errs, fmt.Errorf("generator.creativity %.2f is out of range [0, 1]", c))
	}
	if cfg.Generator.MaxResponseTokens < 0 {
		errs = append(errs, fmt.Errorf("generator.max_response_tokens %d must not be negative", cfg.Generator.MaxResponseTokens))
	}
	if cfg.Generator.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("generator.timeout_seconds %d must not be negative", cfg.Generator.TimeoutSeconds))
	}

	// Session
	if cfg.Session.WindowSize < 0 {
		errs = append(errs, fmt.Errorf("session.window_size %d must not be negative", cfg.Session.WindowSize))
	}
	if cfg.Session.IdleTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("session.idle_timeout_seconds %d must not be negative", cfg.Session.IdleTimeoutSeconds))
	}

	// Cache
	if cfg.Cache.TTLSeconds < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl_seconds %d must not be negative", cfg.Cache.TTLSeconds))
	}
	if cfg.Cache.Capacity < 0 {
		errs = append(errs, fmt.Errorf("cache.capacity %d must not be negative", cfg.Cache.Capacity))
	}
	if cfg.Cache.Redis != nil && cfg.Cache.Redis.Addr == "" {
		errs = append(errs, errors.New("cache.redis.addr is required when cache.redis is set"))
	}

	// Catalog
	if cfg.Catalog.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("catalog.embedding_dimensions %d must not be negative", cfg.Catalog.EmbeddingDimensions))
	}
	if cfg.Catalog.EmbeddingBatchSize < 0 {
		errs = append(errs, fmt.Errorf("catalog.embedding_batch_size %d must not be negative", cfg.Catalog.EmbeddingBatchSize))
	}
	if cfg.Catalog.EmbeddingTokenBudget < 0 {
		errs = append(errs, fmt.Errorf("catalog.embedding_token_budget %d must not be negative", cfg.Catalog.EmbeddingTokenBudget))
	}
	if cfg.Catalog.PostgresDSN == "" {
		slog.Warn("catalog.postgres_dsn is empty; running on the in-memory store with the starter catalog")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
