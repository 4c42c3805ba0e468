// Package generate adapts an LLM provider into the grounded recommendation
// generator.
//
// The generator's prompt instructs the model to recommend only books present in
// the composed context and to mark every recommendation with an inline
// [id: <record-id>] citation. Citations are parsed out of the raw completion,
// validated against the context, and stripped from the user-visible text, so a
// hallucinated id can never reach the caller.
package generate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/compose"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/observe"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/provider/llm"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/types"
)

// ErrGenerationUnavailable is returned when the LLM keeps failing (or returns
// blank output) after bounded retries. The orchestrator substitutes the
// deterministic fallback message instead of surfacing this to the user.
var ErrGenerationUnavailable = errors.New("generation provider unavailable")

const (
	// DefaultCreativity is the temperature-like knob applied when not
	// configured. Low by default: grounded answers should stay close to the
	// retrieved catalog context.
	DefaultCreativity = 0.2

	// DefaultMaxResponseTokens caps the completion length.
	DefaultMaxResponseTokens = 512

	completeAttempts = 2
	completeBaseWait = 250 * time.Millisecond
)

// citationPattern matches the inline citation markers the prompt asks the
// model to emit.
var (
	citationPattern = regexp.MustCompile(`\[id:\s*([^\]\s]+)\s*\]`)
	spaceRuns       = regexp.MustCompile(`[ \t]{2,}`)
	spacePunct      = regexp.MustCompile(` +([.,!?:;])`)
)

// fallbackMessages are the deterministic per-language replies used when
// generation is unavailable. Never blank.
var fallbackMessages = map[books.Language]string{
	books.LanguageTurkish: "Şu anda kitap önerilerine ulaşamıyorum, lütfen daha sonra tekrar deneyin.",
	books.LanguageEnglish: "I couldn't retrieve recommendations right now, please try again.",
}

// FallbackMessage returns the deterministic reply for lang, defaulting to
// English for unknown languages.
func FallbackMessage(lang books.Language) string {
	if msg, ok := fallbackMessages[lang]; ok {
		return msg
	}
	return fallbackMessages[books.LanguageEnglish]
}

// Response is a generated recommendation with its validated citations.
type Response struct {
	// Text is the user-visible reply with citation markers stripped.
	Text string

	// Citations lists the cited record ids in first-mention order. Every id is
	// guaranteed to appear in the context the generator was called with.
	Citations []string
}

// Generator wraps an LLM provider with grounded prompt assembly and citation
// validation. Safe for concurrent use.
type Generator struct {
	provider     llm.Provider
	providerName string
	creativity   float64
	maxTokens    int
	metrics      *observe.Metrics
}

// Option configures a [Generator].
type Option func(*Generator)

// WithCreativity sets the temperature-like knob in [0, 1].
func WithCreativity(c float64) Option {
	return func(g *Generator) {
		if c >= 0 && c <= 1 {
			g.creativity = c
		}
	}
}

// WithMaxResponseTokens caps the completion length.
func WithMaxResponseTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithProviderName sets the provider label used in error telemetry.
func WithProviderName(name string) Option {
	return func(g *Generator) {
		if name != "" {
			g.providerName = name
		}
	}
}

// New creates a Generator over the given provider.
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		provider:     provider,
		providerName: "llm",
		creativity:   DefaultCreativity,
		maxTokens:    DefaultMaxResponseTokens,
		metrics:      observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate produces a grounded recommendation for query in the given language.
// block may be nil or empty, in which case the model is instructed to answer
// conversationally without recommending specific catalog books; the returned
// citations are then empty by construction.
func (g *Generator) Generate(ctx context.Context, block *compose.ContextBlock, query string, lang books.Language) (*Response, error) {
	ctx, span := observe.StartSpan(ctx, "generate.completion")
	defer span.End()

	req := llm.CompletionRequest{
		Messages:     []types.Message{{Role: "user", Content: query}},
		Temperature:  g.creativity,
		MaxTokens:    g.maxTokens,
		SystemPrompt: systemPrompt(block, lang),
	}

	start := time.Now()
	resp, err := retry.DoWithData(
		func() (*llm.CompletionResponse, error) {
			return g.provider.Complete(ctx, req)
		},
		retry.Context(ctx),
		retry.Attempts(completeAttempts),
		retry.Delay(completeBaseWait),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	g.metrics.GenerateDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		g.metrics.RecordProviderError(ctx, g.providerName, "llm")
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		g.metrics.RecordProviderError(ctx, g.providerName, "llm")
		return nil, fmt.Errorf("%w: blank completion", ErrGenerationUnavailable)
	}

	text, citations := extractCitations(resp.Content, allowedIDs(block))
	return &Response{Text: text, Citations: citations}, nil
}

// systemPrompt assembles the grounding instructions plus the composed context.
func systemPrompt(block *compose.ContextBlock, lang books.Language) string {
	var sb strings.Builder
	sb.WriteString("You are Luminis, a friendly librarian assistant who recommends books.\n")

	hasContext := block != nil && block.Text != ""
	if hasContext {
		sb.WriteString("Recommend only books that appear in the catalog context below. " +
			"Mark every book you recommend with its id in the form [id: <id>], " +
			"using only ids from the context. " +
			"If none of the listed books fit the request, say so instead of inventing one.\n")
	} else {
		sb.WriteString("No catalog context is available for this request. " +
			"Answer conversationally, do not invent specific catalog books, " +
			"and do not emit [id: ...] markers.\n")
	}

	if lang == books.LanguageTurkish {
		sb.WriteString("Yanıtlarını Türkçe ver.\n")
	} else {
		sb.WriteString("Respond in English.\n")
	}

	if hasContext {
		sb.WriteString("\n")
		sb.WriteString(block.Text)
	}
	return sb.String()
}

// allowedIDs collects the set of ids the model is permitted to cite.
func allowedIDs(block *compose.ContextBlock) map[string]bool {
	if block == nil {
		return nil
	}
	ids := make(map[string]bool, len(block.Books))
	for _, b := range block.Books {
		ids[b.ID] = true
	}
	return ids
}

// extractCitations strips [id: ...] markers from content and returns the
// cleaned text plus the cited ids, deduplicated in first-mention order.
// Markers citing ids outside the allowed set are removed but not returned.
func extractCitations(content string, allowed map[string]bool) (string, []string) {
	var citations []string
	seen := make(map[string]bool)

	for _, m := range citationPattern.FindAllStringSubmatch(content, -1) {
		id := m[1]
		if allowed[id] && !seen[id] {
			seen[id] = true
			citations = append(citations, id)
		}
	}

	text := citationPattern.ReplaceAllString(content, "")
	// Collapse the whitespace holes the markers leave behind.
	text = spaceRuns.ReplaceAllString(text, " ")
	text = spacePunct.ReplaceAllString(text, "$1")
	return strings.TrimSpace(text), citations
}
