package projects

import (
	"context"
	"sync"

	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/hyperiot"
)

// MemoryStore keeps the index in process memory for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	byName map[string]hyperiot.ProjectID
	pos    map[hyperiot.ProjectID]int
	order  []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName: make(map[string]hyperiot.ProjectID),
		pos:    make(map[hyperiot.ProjectID]int),
	}
}

// Upsert is last-write-wins on names. A known id keeps its display slot and
// takes the newest name; an unknown id is appended.
func (s *MemoryStore) Upsert(_ context.Context, projects []hyperiot.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range projects {
		s.byName[NormalizeName(p.Name)] = p.ID
		if i, ok := s.pos[p.ID]; ok {
			s.order[i] = p.Name
			continue
		}
		s.pos[p.ID] = len(s.order)
		s.order = append(s.order, p.Name)
	}
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, key string) (hyperiot.ProjectID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[key]
	return id, ok, nil
}

func (s *MemoryStore) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}
