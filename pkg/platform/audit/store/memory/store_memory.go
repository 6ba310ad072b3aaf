package memory

import (
	"context"
	"slices"
	"sync"

	id "civitas/pkg/domain"
	audit "civitas/pkg/platform/audit"
)

// InMemoryStore keeps one append-only log and indexes it by entity.
type InMemoryStore struct {
	mu       sync.RWMutex
	log      []audit.Event
	byEntity map[id.EntityID][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byEntity: make(map[id.EntityID][]int)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byEntity[event.EntityID] = append(s.byEntity[event.EntityID], len(s.log))
	s.log = append(s.log, event)
	return nil
}

// ListByEntity returns the entity's events in append order.
func (s *InMemoryStore) ListByEntity(_ context.Context, entityID id.EntityID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byEntity[entityID]
	out := make([]audit.Event, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.log[i])
	}
	return out, nil
}

// ListBySubject returns every event whose subject is subject, such as all
// party records of one contract, in append order.
func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.log {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListAll returns every event ordered by timestamp; ties keep append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	all := slices.Clone(s.log)
	s.mu.RUnlock()

	slices.SortStableFunc(all, func(a, b audit.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return all, nil
}

// Reset drops every event.
func (s *InMemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
	s.byEntity = make(map[id.EntityID][]int)
}
