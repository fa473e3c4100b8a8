package executor

import (
	"sync"
	"time"

	"github.com/arm-control/acc/internal/policy"
)

// State is a job lifecycle state.
type State string

const (
	StatePlanning     State = "planning"
	StateExecuting    State = "executing"
	StateHandoffMacro State = "handoff_macro"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
	StateAborted      State = "aborted"
)

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateAborted:
		return true
	}
	return false
}

// Record is the externally visible snapshot of a job. Only the owning worker
// mutates it; after a terminal state it is effectively read-only.
type Record struct {
	ID          string       `json:"id"`
	Instruction string       `json:"instruction"`
	State       State        `json:"state"`
	Phase       policy.Phase `json:"phase"`

	// Confidence mirrors the last applied chunk's model confidence. Omitted
	// whenever the producing model supplied none.
	Confidence *float64 `json:"confidence,omitempty"`

	Code          string `json:"code,omitempty"`
	Message       string `json:"message,omitempty"`
	ChunksApplied int    `json:"chunksApplied"`

	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

type regEntry struct {
	mu  sync.RWMutex
	rec Record
}

// Registry holds job records. Reads take a per-entry lock only, so polling a
// job never contends with the worker loop of another.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*regEntry
	order    []string // insertion order, for terminal-record eviction
	maxTotal int
}

// NewRegistry returns a registry retaining at most max records. Non-terminal
// records are never evicted.
func NewRegistry(max int) *Registry {
	if max <= 0 {
		max = 128
	}
	return &Registry{
		entries:  make(map[string]*regEntry),
		maxTotal: max,
	}
}

// Create inserts a new record and evicts the oldest terminal records when the
// retention bound is exceeded.
func (r *Registry) Create(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[rec.ID] = &regEntry{rec: rec}
	r.order = append(r.order, rec.ID)

	for len(r.entries) > r.maxTotal {
		evicted := false
		for i, id := range r.order {
			e := r.entries[id]
			e.mu.RLock()
			terminal := e.rec.State.Terminal()
			e.mu.RUnlock()
			if terminal {
				delete(r.entries, id)
				r.order = append(r.order[:i], r.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			break
		}
	}
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return Record{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rec, true
}

// Update applies fn to the record for id under its entry lock.
func (r *Registry) Update(id string, fn func(*Record)) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	fn(&e.rec)
	e.mu.Unlock()
}
