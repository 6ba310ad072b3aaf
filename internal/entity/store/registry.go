// Package store keeps entities in an in-memory arena keyed by EntityID.
// Declarations and guardianship relations refer to entities by id and resolve
// them here; no entity owns a pointer to another.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"civitas/internal/entity/models"
	id "civitas/pkg/domain"
	"civitas/pkg/platform/sentinel"
)

// Registry is safe for concurrent use. It guards the map only; entities
// handle their own field locking.
type Registry struct {
	mu       sync.RWMutex
	entities map[id.EntityID]models.Entity
}

func NewRegistry() *Registry {
	return &Registry{entities: make(map[id.EntityID]models.Entity)}
}

// Put adds an entity. Returns sentinel.ErrConflict when the id is taken.
func (r *Registry) Put(_ context.Context, e models.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[e.ID()]; ok {
		return fmt.Errorf("entity %s: %w", e.ID(), sentinel.ErrConflict)
	}
	r.entities[e.ID()] = e
	return nil
}

func (r *Registry) Get(_ context.Context, entityID id.EntityID) (models.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[entityID]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	return e, nil
}

// Person resolves a natural person. Returns sentinel.ErrInvalidState when the
// id belongs to an organization.
func (r *Registry) Person(ctx context.Context, entityID id.EntityID) (models.Person, error) {
	e, err := r.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	p, ok := e.(models.Person)
	if !ok {
		return nil, fmt.Errorf("entity %s is a %s: %w", entityID, e.EntityType(), sentinel.ErrInvalidState)
	}
	return p, nil
}

// WardsOf returns, in id order, the persons whose guardianship names
// guardianID.
func (r *Registry) WardsOf(_ context.Context, guardianID id.EntityID) ([]id.EntityID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var wards []id.EntityID
	for entityID, e := range r.entities {
		p, ok := e.(models.Person)
		if !ok {
			continue
		}
		if g, ok := p.Guardianship(); ok && g.Guardian == guardianID {
			wards = append(wards, entityID)
		}
	}
	sort.Slice(wards, func(i, j int) bool { return wards[i].Compare(wards[j]) < 0 })
	return wards, nil
}

func (r *Registry) Delete(_ context.Context, entityID id.EntityID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entities[entityID]; !ok {
		return fmt.Errorf("entity %s: %w", entityID, sentinel.ErrNotFound)
	}
	delete(r.entities, entityID)
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}
