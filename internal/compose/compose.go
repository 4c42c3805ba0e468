// Package compose builds the bounded grounding context for the generator.
//
// A composed block contains the retrieved book summaries ordered by score,
// followed by the most recent conversation turns (most recent last). The block
// never exceeds its token budget: history is dropped first (oldest turns
// first), then the lowest-score book summaries, and the single top-ranked book
// is truncated rather than dropped when it alone overflows the budget.
package compose

import (
	"fmt"
	"strings"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/retrieve"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/tokens"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/types"
)

// DefaultMaxTokens is the context budget applied when the caller passes no
// explicit limit.
const DefaultMaxTokens = 2048

const (
	booksHeader   = "## Recommended Books"
	historyHeader = "## Recent Conversation"
)

// BookRef identifies a book that made it into the composed context, with the
// retrieval score it carried. The generator may only cite ids listed here.
type BookRef struct {
	ID    string
	Score float64
}

// ContextBlock is the bounded grounding text handed to the generator.
type ContextBlock struct {
	// Text is the rendered context. Empty when nothing fit the budget.
	Text string

	// Books lists the included books in descending score order.
	Books []BookRef

	// HistoryTurns is the number of conversation turns that survived trimming.
	HistoryTurns int

	// TokenCount is the measured token length of Text.
	TokenCount int
}

// Composer renders retrieval results and session history into a ContextBlock.
// Safe for concurrent use.
type Composer struct {
	counter   *tokens.Counter
	maxTokens int
}

// Option configures a [Composer].
type Option func(*Composer)

// WithMaxTokens sets the default token budget.
func WithMaxTokens(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// New creates a Composer that measures text with counter.
func New(counter *tokens.Counter, opts ...Option) *Composer {
	c := &Composer{
		counter:   counter,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose builds the context block for one generation call. maxTokens <= 0
// uses the composer's default. Compose is pure: no I/O, deterministic for
// identical inputs.
func (c *Composer) Compose(retrieval []retrieve.Result, history []types.Turn, maxTokens int) *ContextBlock {
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	summaries := make([]string, len(retrieval))
	refs := make([]BookRef, len(retrieval))
	for i, res := range retrieval {
		summaries[i] = renderSummary(res)
		refs[i] = BookRef{ID: res.Record.ID, Score: res.Score}
	}
	turns := make([]string, 0, len(history))
	for _, t := range history {
		turns = append(turns, renderTurn(t))
	}

	for {
		text := renderBlock(summaries, turns)
		count := c.counter.Count(text)
		if count <= maxTokens {
			return &ContextBlock{
				Text:         text,
				Books:        refs[:len(summaries)],
				HistoryTurns: len(turns),
				TokenCount:   count,
			}
		}
		switch {
		case len(turns) > 0:
			// Oldest history goes first.
			turns = turns[1:]
		case len(summaries) > 1:
			// Then the lowest-score summary.
			summaries = summaries[:len(summaries)-1]
		case len(summaries) == 1:
			// The top-ranked book is never dropped outright: shrink it to fit.
			return c.truncateTop(summaries[0], refs[0], maxTokens)
		default:
			return &ContextBlock{}
		}
	}
}

// truncateTop shrinks the sole remaining summary until the rendered block fits
// the budget. Returns an empty block when not even the section header fits.
func (c *Composer) truncateTop(summary string, ref BookRef, maxTokens int) *ContextBlock {
	runes := []rune(summary)
	// Largest prefix that fits, found by binary search. Invariant: lo fits
	// (or is zero), hi does not.
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		text := renderBlock([]string{string(runes[:mid])}, nil)
		if c.counter.Count(text) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		return &ContextBlock{}
	}
	text := renderBlock([]string{string(runes[:lo])}, nil)
	return &ContextBlock{
		Text:       text,
		Books:      []BookRef{ref},
		TokenCount: c.counter.Count(text),
	}
}

// renderSummary renders one retrieval result as a two-line summary with the
// record id embedded for citation.
func renderSummary(res retrieve.Result) string {
	r := res.Record
	head := fmt.Sprintf("- %s by %s (%s, %.1f/5, %d) [id: %s]",
		r.Title, r.Author, r.Genre.DisplayName(), r.Rating, r.Year, r.ID)
	if r.Description == "" {
		return head
	}
	return head + "\n  " + r.Description
}

// renderTurn renders one conversation exchange.
func renderTurn(t types.Turn) string {
	var sb strings.Builder
	sb.WriteString("User: " + t.UserText)
	if t.AssistantText != "" {
		sb.WriteString("\nAssistant: " + t.AssistantText)
	}
	return sb.String()
}

// renderBlock assembles the final text. Empty sections are omitted rather than
// rendered as bare headers.
func renderBlock(summaries, turns []string) string {
	var sections []string
	if len(summaries) > 0 {
		sections = append(sections, booksHeader+"\n"+strings.Join(summaries, "\n"))
	}
	if len(turns) > 0 {
		sections = append(sections, historyHeader+"\n"+strings.Join(turns, "\n"))
	}
	return strings.Join(sections, "\n\n")
}
