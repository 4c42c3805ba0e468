package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// Ensure Mem implements the Index interface.
var _ Index = (*Mem)(nil)

// Mem is an in-memory Index with copy-on-write snapshot isolation.
//
// Reads load an immutable snapshot through an atomic pointer and never block.
// Mutations serialize on a mutex, build a fresh snapshot, and publish it
// atomically, so a Search running concurrently with an Upsert sees either the
// whole batch or none of it.
type Mem struct {
	dims int

	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[memSnapshot]
}

// memSnapshot is one immutable generation of the index. norms caches the
// Euclidean norm of each entry vector so Search avoids recomputing it.
type memSnapshot struct {
	entries []Entry
	norms   []float64
	byID    map[string]int
}

// NewMem returns an empty Mem accepting vectors of length dims.
func NewMem(dims int) (*Mem, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("index: dimensions must be positive, got %d", dims)
	}
	m := &Mem{dims: dims}
	m.snap.Store(&memSnapshot{byID: map[string]int{}})
	return m, nil
}

// Dimensions returns the vector length the index accepts.
func (m *Mem) Dimensions() int { return m.dims }

// Upsert implements Index.
func (m *Mem) Upsert(_ context.Context, entries []Entry) error {
	for _, e := range entries {
		if len(e.Vector) != m.dims {
			return fmt.Errorf("%w: entry %s has %d dimensions, index expects %d",
				ErrDimensionMismatch, e.ID, len(e.Vector), m.dims)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.Load()
	next := &memSnapshot{
		entries: make([]Entry, len(old.entries), len(old.entries)+len(entries)),
		norms:   make([]float64, len(old.norms), len(old.norms)+len(entries)),
		byID:    make(map[string]int, len(old.byID)+len(entries)),
	}
	copy(next.entries, old.entries)
	copy(next.norms, old.norms)
	for id, i := range old.byID {
		next.byID[id] = i
	}

	for _, e := range entries {
		if i, ok := next.byID[e.ID]; ok {
			next.entries[i] = e
			next.norms[i] = norm(e.Vector)
			continue
		}
		next.byID[e.ID] = len(next.entries)
		next.entries = append(next.entries, e)
		next.norms = append(next.norms, norm(e.Vector))
	}

	m.snap.Store(next)
	return nil
}

// Remove implements Index.
func (m *Mem) Remove(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.Load()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	next := &memSnapshot{
		entries: make([]Entry, 0, len(old.entries)),
		norms:   make([]float64, 0, len(old.norms)),
		byID:    make(map[string]int, len(old.byID)),
	}
	for i, e := range old.entries {
		if drop[e.ID] {
			continue
		}
		next.byID[e.ID] = len(next.entries)
		next.entries = append(next.entries, e)
		next.norms = append(next.norms, old.norms[i])
	}

	m.snap.Store(next)
	return nil
}

// Search implements Index.
func (m *Mem) Search(_ context.Context, vector []float32, topK int, minScore float64, filter Filter) ([]Result, error) {
	if len(vector) != m.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			ErrDimensionMismatch, len(vector), m.dims)
	}
	if topK <= 0 {
		return []Result{}, nil
	}

	snap := m.snap.Load()
	queryNorm := norm(vector)

	type scored struct {
		Result
		year int
	}
	hits := make([]scored, 0, topK)
	for i, e := range snap.entries {
		if !filter.Match(e) {
			continue
		}
		score := normalizedCosine(vector, queryNorm, e.Vector, snap.norms[i])
		if score < minScore {
			continue
		}
		hits = append(hits, scored{Result{ID: e.ID, Score: score}, e.Year})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].year != hits[j].year {
			return hits[i].year > hits[j].year
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = h.Result
	}
	return results, nil
}

// Len implements Index.
func (m *Mem) Len(_ context.Context) (int, error) {
	return len(m.snap.Load().entries), nil
}

// norm returns the Euclidean norm of v.
func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// normalizedCosine maps the cosine of the angle between a and b from [-1, 1]
// into [0, 1]. Zero vectors score 0: they carry no direction to compare.
func normalizedCosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	cos := dot / (aNorm * bNorm)
	// Guard against floating point drift outside [-1, 1].
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}
