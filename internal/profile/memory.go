package profile

import (
	"context"
	"sort"
	"sync"

	"github.com/shelfsight/demand-cli/internal/model"
)

// MemoryStore is an in-memory Store for tests and fixture-backed CLI runs.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]model.CalibrationProfile
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]model.CalibrationProfile)}
}

func (s *MemoryStore) Lookup(_ context.Context, keyword string) (*model.CalibrationProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[NormalizeKeyword(keyword)]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) Put(_ context.Context, p model.CalibrationProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Keyword = NormalizeKeyword(p.Keyword)
	s.profiles[p.Keyword] = p
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]model.CalibrationProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CalibrationProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Keyword < out[j].Keyword })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
