package health

import (
	"context"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/cache"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/corpus"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/index"
)

// CorpusChecker reports readiness of the book corpus store. A store that can
// answer a count query is considered reachable; an empty corpus is still
// ready, it just serves ungrounded answers.
func CorpusChecker(store corpus.Store) Checker {
	return Checker{
		Name: "corpus",
		Check: func(ctx context.Context) error {
			_, err := store.Count(ctx)
			return err
		},
	}
}

// IndexChecker reports readiness of the vector index.
func IndexChecker(idx index.Index) Checker {
	return Checker{
		Name: "index",
		Check: func(ctx context.Context) error {
			_, err := idx.Len(ctx)
			return err
		},
	}
}

// CacheChecker reports readiness of the response cache. It issues a lookup
// for a key that is never written; a miss proves the backend is reachable.
func CacheChecker(store cache.Store) Checker {
	return Checker{
		Name: "cache",
		Check: func(ctx context.Context) error {
			_, _, err := store.Get(ctx, "chat:cache:readyz-probe")
			return err
		},
	}
}
