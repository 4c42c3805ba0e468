// Package tokens provides token counting for context-budget enforcement.
//
// The context composer needs a token measure that matches what the generation
// model will actually consume. Counter wraps a tiktoken BPE encoding when one
// is available for the configured model and falls back to a character-based
// approximation otherwise, so budget checks still work for models tiktoken
// has never heard of.
package tokens

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// charsPerToken is the fallback approximation: roughly 4 characters per token
// for GPT-series models. The fallback intentionally rounds up so that budget
// enforcement overcounts rather than overflows the model's window.
const charsPerToken = 4

// Counter measures text length in model tokens.
//
// Counter is safe for concurrent use. The zero value is not usable; construct
// with NewCounter.
type Counter struct {
	model string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewCounter returns a Counter for the given model name (e.g., "gpt-4o-mini").
// The tiktoken encoding is resolved lazily on first use: resolution may touch
// the encoding cache on disk, and constructing a Counter should stay cheap.
func NewCounter(model string) *Counter {
	return &Counter{model: model}
}

// encoding resolves the tiktoken encoding on first use. Nil means the model
// is unknown to tiktoken and the approximation applies.
func (c *Counter) encoding() *tiktoken.Tiktoken {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			// Unknown model: stay on the approximation.
			return
		}
		c.enc = enc
	})
	return c.enc
}

// Count returns the number of tokens text occupies for the configured model.
// Empty text counts as zero.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := c.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// Truncate returns text cut to at most maxTokens tokens. The cut is
// deterministic: a given text and budget always yield the same prefix, and
// Count of the result never exceeds maxTokens. maxTokens <= 0 disables the
// cut.
func (c *Counter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}
	if enc := c.encoding(); enc != nil {
		toks := enc.Encode(text, nil, nil)
		if len(toks) <= maxTokens {
			return text
		}
		return enc.Decode(toks[:maxTokens])
	}
	limit := maxTokens * charsPerToken
	if len(text) <= limit {
		return text
	}
	cut := text[:limit]
	// Keep the cut on a rune boundary.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

// CountAll returns the total token count across all texts.
func (c *Counter) CountAll(texts ...string) int {
	total := 0
	for _, t := range texts {
		total += c.Count(t)
	}
	return total
}

// Model returns the model name the counter was built for.
func (c *Counter) Model() string {
	return c.model
}
