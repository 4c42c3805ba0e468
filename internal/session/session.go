// Package session keeps per-conversation history windows.
//
// Each session is an actor: a goroutine owning the session's turn slice,
// fed by a buffered command channel. Turns are committed in the order their
// commands arrive at the channel, which makes the ordering guarantee explicit —
// concurrent requests for one session serialize at the channel, not behind a
// shared lock. Sessions expire after an idle timeout and are purged by a
// background sweeper.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/observe"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/types"
)

// ErrCorrupted is returned when a turn carries an explicit sequence number that
// does not continue the session's window. The window is reset to contain only
// the offending turn; the error tells the caller that prior context was
// discarded, it does not fail the request.
var ErrCorrupted = errors.New("session: out-of-order turn, window reset")

const (
	// DefaultWindowSize is the number of turns kept per session.
	DefaultWindowSize = 20

	// DefaultIdleTimeout is how long a session survives without a new turn.
	DefaultIdleTimeout = 30 * time.Minute

	// defaultSweepInterval is how often the sweeper scans for idle sessions.
	defaultSweepInterval = time.Minute

	// commandBuffer is the per-session command channel capacity.
	commandBuffer = 16
)

// State is the lifecycle stage of a session.
type State int

const (
	// StateCreated means the session exists but has no committed turn yet.
	StateCreated State = iota

	// StateActive means at least one turn has been committed and the idle
	// timeout has not elapsed.
	StateActive

	// StateExpired means the idle timeout elapsed. The window is still held
	// until the next sweep purges it; a new turn revives the session with a
	// fresh window.
	StateExpired

	// StatePurged means the session has been removed (or never existed).
	StatePurged
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	case StatePurged:
		return "purged"
	default:
		return "unknown"
	}
}

// Manager owns all live sessions. Safe for concurrent use.
type Manager struct {
	windowSize    int
	idleTimeout   time.Duration
	sweepInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*actor
	stop     chan struct{}
	stopped  sync.Once
	wg       sync.WaitGroup

	metrics *observe.Metrics
}

// Option configures a [Manager].
type Option func(*Manager)

// WithWindowSize sets the number of turns kept per session.
func WithWindowSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.windowSize = n
		}
	}
}

// WithIdleTimeout sets how long a session survives without a new turn.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idleTimeout = d
		}
	}
}

// WithSweepInterval sets how often idle sessions are expired and purged.
// Mostly useful to speed up tests.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// NewManager creates a session manager and starts its background sweeper.
// Call [Manager.Close] to stop it.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		windowSize:    DefaultWindowSize,
		idleTimeout:   DefaultIdleTimeout,
		sweepInterval: defaultSweepInterval,
		sessions:      make(map[string]*actor),
		stop:          make(chan struct{}),
		metrics:       observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.wg.Add(1)
	go m.sweep()
	return m
}

// Append commits a turn to the session's window, creating the session on first
// use. The committed sequence number is returned.
//
// Turns with Seq == 0 get the next sequence number assigned. A non-zero Seq
// must exactly continue the window; when it does not, the window is reset to
// contain only this turn (committed as Seq 1) and [ErrCorrupted] is returned so
// the caller knows prior context was dropped.
func (m *Manager) Append(ctx context.Context, sessionID string, turn types.Turn) (int, error) {
	for {
		a := m.acquire(sessionID)
		res, ok := a.send(ctx, command{kind: cmdAppend, turn: turn})
		if !ok {
			// The actor was purged between lookup and send; retry against a
			// fresh one.
			continue
		}
		if res.err != nil && !errors.Is(res.err, ErrCorrupted) {
			return 0, res.err
		}
		return res.seq, res.err
	}
}

// Window returns the session's turns in commit order, oldest first. Unknown or
// purged sessions yield an empty window without creating a session.
func (m *Manager) Window(ctx context.Context, sessionID string) ([]types.Turn, error) {
	m.mu.Lock()
	a, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}
	res, alive := a.send(ctx, command{kind: cmdWindow})
	if !alive {
		return nil, nil
	}
	return res.turns, res.err
}

// Reset discards the session's window but keeps the session alive.
func (m *Manager) Reset(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	a, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	res, alive := a.send(ctx, command{kind: cmdReset})
	if !alive {
		return nil
	}
	return res.err
}

// State reports the lifecycle stage of a session. Unknown sessions report
// StatePurged.
func (m *Manager) State(sessionID string) State {
	m.mu.Lock()
	a, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return StatePurged
	}
	return a.currentState()
}

// Len returns the number of tracked (created, active or expired) sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the sweeper and all session actors.
func (m *Manager) Close() {
	m.stopped.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()

	m.mu.Lock()
	for id, a := range m.sessions {
		a.close()
		delete(m.sessions, id)
		m.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	m.mu.Unlock()
}

// acquire returns the live actor for sessionID, creating one if needed.
func (m *Manager) acquire(sessionID string) *actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.sessions[sessionID]; ok {
		return a
	}
	a := newActor(sessionID, m.windowSize)
	m.sessions[sessionID] = a
	m.metrics.ActiveSessions.Add(context.Background(), 1)
	return a
}

// sweep periodically expires idle sessions and purges already-expired ones.
func (m *Manager) sweep() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweepOnce(now)
		}
	}
}

func (m *Manager) sweepOnce(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.sessions {
		switch a.currentState() {
		case StateExpired:
			a.close()
			delete(m.sessions, id)
			m.metrics.ActiveSessions.Add(context.Background(), -1)
		case StateCreated, StateActive:
			if now.Sub(a.lastActivity()) >= m.idleTimeout {
				a.expire()
			}
		}
	}
}
