// Package cache stores generated responses keyed by query and conversation
// context.
//
// Two backends implement the same Store interface: an in-memory LRU with TTL
// for single-instance deployments and tests, and a Redis-backed store for
// shared deployments. Keys hash the normalized query together with the recent
// session window, so the same literal question asked in sessions with
// different prior context never collides.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/types"
)

// DefaultTTL is the entry lifetime applied when the caller passes no explicit
// TTL.
const DefaultTTL = 300 * time.Second

// keyPrefix namespaces chat-response keys in shared backends.
const keyPrefix = "chat:cache:"

// Entry is one cached chat response.
type Entry struct {
	Response  string    `json:"response"`
	Citations []string  `json:"citations,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the response cache abstraction. Implementations must be safe for
// concurrent use, and writes must be all-or-nothing: a failed Set leaves no
// partial entry behind.
type Store interface {
	// Get returns the entry for key. The boolean reports whether the key was
	// present and unexpired; an expired entry is a miss, not an error.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set stores entry under key for ttl. ttl <= 0 applies DefaultTTL.
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error

	// Delete removes a single entry. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Flush drops every chat-response entry. Used as best-effort invalidation
	// when the catalog changes materially.
	Flush(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Key derives the cache key for a query asked with the given recent session
// window. The query is whitespace- and case-normalized; the window is hashed
// as-is so that any difference in prior context produces a different key.
func Key(query string, window []types.Turn) string {
	payload, err := json.Marshal(struct {
		Query  string       `json:"query"`
		Window []types.Turn `json:"window"`
	}{
		Query:  NormalizeQuery(query),
		Window: window,
	})
	if err != nil {
		// Marshalling Turn values cannot realistically fail; keep a
		// deterministic fallback anyway.
		payload = []byte(fmt.Sprintf("%s|%v", query, window))
	}
	sum := sha256.Sum256(payload)
	return keyPrefix + hex.EncodeToString(sum[:16])
}

// NormalizeQuery lowercases the query and collapses runs of whitespace, so
// trivially reworded repeats ("dune?  " vs "Dune?") share a key.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
