package workflow

import (
	"context"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It uses a map with RWMutex for thread-safe access.
// Suitable for development and testing; swap for persistent storage in production.
type MemoryRepository struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewMemoryRepository creates a new in-memory run repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		runs: make(map[string]*Run),
	}
}

// Save persists a run to the in-memory storage.
// Creates a clone to avoid external mutations.
func (r *MemoryRepository) Save(_ context.Context, run *Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run.Clone()
	return nil
}

// FindByID retrieves a run by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.Clone(), nil
}

// List returns all runs in the repository.
// Returns clones to prevent external mutations.
func (r *MemoryRepository) List(_ context.Context) ([]*Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Run, 0, len(r.runs))
	for _, run := range r.runs {
		result = append(result, run.Clone())
	}
	return result, nil
}

// Delete removes a run from storage.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; !ok {
		return ErrRunNotFound
	}
	delete(r.runs, id)
	return nil
}
