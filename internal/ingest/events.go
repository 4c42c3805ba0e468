package ingest

import (
	"context"
	"log/slog"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
)

// EventKind discriminates catalog sync events.
type EventKind int

const (
	// EventUpsert carries new or refreshed records.
	EventUpsert EventKind = iota
	// EventRemove carries ids of records deleted from the catalog.
	EventRemove
)

// Event is one message from the external catalog sync job.
type Event struct {
	Kind EventKind

	// Records holds the payload for EventUpsert.
	Records []books.Record

	// IDs holds the payload for EventRemove.
	IDs []string
}

// Run consumes events until the channel closes or ctx is cancelled. Events
// are applied strictly in arrival order so a remove can never overtake the
// upsert it supersedes. A failed event is logged and skipped: the sync job
// owns retry policy, and one bad batch must not stall the whole stream.
func (s *Syncer) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			var err error
			switch ev.Kind {
			case EventUpsert:
				err = s.Upsert(ctx, ev.Records)
			case EventRemove:
				err = s.Remove(ctx, ev.IDs)
			default:
				s.log.Warn("unknown catalog event kind", slog.Int("kind", int(ev.Kind)))
				continue
			}
			if err != nil {
				s.log.Error("catalog event failed",
					slog.Int("kind", int(ev.Kind)), slog.String("error", err.Error()))
			}
		}
	}
}
