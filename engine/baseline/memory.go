package baseline

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/csaptu/flow/scheduling/common/errors"
	"github.com/csaptu/flow/scheduling/common/models"
)

// MemoryStore keeps baselines in memory. Used in tests and in embedded
// setups where the caller owns persistence.
type MemoryStore struct {
	mu        sync.RWMutex
	baselines map[uuid.UUID]*models.Baseline
}

// NewMemoryStore creates an empty in-memory baseline store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{baselines: make(map[uuid.UUID]*models.Baseline)}
}

// Save stores a baseline. Saved baselines are never overwritten.
func (s *MemoryStore) Save(_ context.Context, b *models.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.baselines[b.ID]; exists {
		return errors.ErrConflict
	}
	s.baselines[b.ID] = b
	return nil
}

// Get retrieves a baseline by id
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.baselines[id]
	if !ok {
		return nil, errors.ErrBaselineNotFound
	}
	return b, nil
}

// List returns baselines for a project, oldest first
func (s *MemoryStore) List(_ context.Context, projectID uuid.UUID) ([]*models.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Baseline
	for _, b := range s.baselines {
		if b.ProjectID == projectID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
