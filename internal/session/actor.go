package session

import (
	"context"
	"sync"
	"time"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/types"
)

type cmdKind int

const (
	cmdAppend cmdKind = iota
	cmdWindow
	cmdReset
)

type command struct {
	kind  cmdKind
	turn  types.Turn
	reply chan result
}

type result struct {
	seq   int
	turns []types.Turn
	err   error
}

// actor owns one session's window. The run goroutine is the only writer of
// turns and nextSeq; state and lastActive are shared with the manager's
// sweeper behind mu.
type actor struct {
	id         string
	windowSize int
	cmds       chan command
	done       chan struct{}
	closeOnce  sync.Once

	mu         sync.Mutex
	state      State
	lastActive time.Time

	// run-goroutine-local.
	turns   []types.Turn
	nextSeq int
}

func newActor(id string, windowSize int) *actor {
	a := &actor{
		id:         id,
		windowSize: windowSize,
		cmds:       make(chan command, commandBuffer),
		done:       make(chan struct{}),
		state:      StateCreated,
		lastActive: time.Now(),
		nextSeq:    1,
	}
	go a.run()
	return a
}

// send delivers cmd to the actor and waits for its reply. The second return is
// false when the actor has been purged, meaning the command was not applied.
func (a *actor) send(ctx context.Context, cmd command) (result, bool) {
	if err := ctx.Err(); err != nil {
		return result{err: err}, true
	}
	cmd.reply = make(chan result, 1)
	select {
	case a.cmds <- cmd:
	case <-a.done:
		return result{}, false
	case <-ctx.Done():
		return result{err: ctx.Err()}, true
	}
	select {
	case res := <-cmd.reply:
		return res, true
	case <-a.done:
		return result{}, false
	case <-ctx.Done():
		return result{err: ctx.Err()}, true
	}
}

func (a *actor) run() {
	for {
		select {
		case <-a.done:
			return
		case cmd := <-a.cmds:
			switch cmd.kind {
			case cmdAppend:
				cmd.reply <- a.handleAppend(cmd.turn)
			case cmdWindow:
				// An expired session has already forfeited its history; the
				// next append starts fresh, so reads must not leak the old
				// window either.
				if a.currentState() == StateExpired {
					cmd.reply <- result{}
					continue
				}
				turns := make([]types.Turn, len(a.turns))
				copy(turns, a.turns)
				cmd.reply <- result{turns: turns}
			case cmdReset:
				a.turns = nil
				a.nextSeq = 1
				cmd.reply <- result{}
			}
		}
	}
}

func (a *actor) handleAppend(turn types.Turn) result {
	// A turn landing on an expired (not yet purged) session starts fresh.
	if a.currentState() == StateExpired {
		a.turns = nil
		a.nextSeq = 1
	}

	var corrupted bool
	switch {
	case turn.Seq == 0:
		turn.Seq = a.nextSeq
	case turn.Seq != a.nextSeq:
		// Out-of-order explicit sequence: drop the window, keep the turn.
		a.turns = nil
		a.nextSeq = 1
		turn.Seq = 1
		corrupted = true
	}

	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	a.turns = append(a.turns, turn)
	a.nextSeq = turn.Seq + 1
	if len(a.turns) > a.windowSize {
		a.turns = a.turns[len(a.turns)-a.windowSize:]
	}

	a.mu.Lock()
	a.state = StateActive
	a.lastActive = time.Now()
	a.mu.Unlock()

	if corrupted {
		return result{seq: turn.Seq, err: ErrCorrupted}
	}
	return result{seq: turn.Seq}
}

func (a *actor) currentState() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *actor) lastActivity() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastActive
}

func (a *actor) expire() {
	a.mu.Lock()
	a.state = StateExpired
	a.mu.Unlock()
}

func (a *actor) close() {
	a.closeOnce.Do(func() {
		close(a.done)
	})
}
