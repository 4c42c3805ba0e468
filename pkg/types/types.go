// Package types defines the shared conversation types used across all Luminis
// packages.
//
// These types form the lingua franca between the LLM providers, the session
// layer, and the chat orchestrator. They are intentionally minimal — each
// package defines its own domain types, but cross-cutting data structures live
// here to avoid circular imports. Book-domain types live in pkg/books.
package types

import "time"

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (for multi-participant contexts).
	Name string
}

// Turn is a complete user/assistant exchange recorded in a chat session.
// It is the atomic unit of session history: the session window is measured
// in turns, and context composition walks turns from newest to oldest.
type Turn struct {
	// Seq is the 1-based position of this turn within its session. Assigned by
	// the session store; strictly increasing with no gaps.
	Seq int

	// UserText is the user's message exactly as received.
	UserText string

	// AssistantText is the assistant's reply.
	AssistantText string

	// BookIDs lists the catalog IDs of books cited in AssistantText, in the
	// order they were recommended. Empty for fallback answers.
	BookIDs []string

	// Cached reports whether AssistantText was served from the answer cache
	// rather than freshly generated.
	Cached bool

	// Timestamp is when the turn was committed to the session.
	Timestamp time.Time
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one completion.
	MaxOutputTokens int

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
