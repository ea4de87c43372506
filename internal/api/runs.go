package api

import (
	"sync"
	"time"

	"github.com/codecatalog/harvester/internal/catalog"
)

// RunStatus is the lifecycle state of a triggered harvest run.
type RunStatus string

// Run status values reported by the API.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
)

// RunState is the API view of one harvest run.
type RunState struct {
	ID         string          `json:"id"`
	Status     RunStatus       `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Result     *catalog.Result `json:"result,omitempty"`
}

// runRegistry tracks triggered runs in memory.
type runRegistry struct {
	mu   sync.RWMutex
	runs map[string]*RunState
}

func newRunRegistry() *runRegistry {
	return &runRegistry{runs: make(map[string]*RunState)}
}

func (r *runRegistry) start(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[id] = &RunState{
		ID:        id,
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

func (r *runRegistry) complete(id string, result catalog.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.runs[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	state.Status = RunStatusCompleted
	state.FinishedAt = &now
	state.Result = &result
}

func (r *runRegistry) get(id string) (RunState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.runs[id]
	if !ok {
		return RunState{}, false
	}
	return *state, true
}
