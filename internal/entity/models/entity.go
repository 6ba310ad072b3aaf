package models

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"civitas/internal/capacity"
	id "civitas/pkg/domain"
	dErrors "civitas/pkg/domain-errors"
	"civitas/pkg/platform/sentinel"
)

// Entity is the capability every civil-law actor exposes. The set of
// implementations is closed: the three entity kinds in their single-owner and
// locked variants.
//
// Invariants:
//   - CapacityStatus().EntityType() == EntityType()
//   - ID and CreatedAt never change after construction
type Entity interface {
	ID() id.EntityID
	EntityType() id.EntityType
	CapacityStatus() capacity.Status
	// HasCapacity reports whether the entity may perform binding acts on its own.
	HasCapacity() bool
	CreatedAt() time.Time
	UpdatedAt() time.Time

	entity()
}

// IsNil reports whether e is absent, including a nil pointer of one of the
// entity kinds stored in the interface.
func IsNil(e Entity) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *NaturalPerson:
		return v == nil
	case *SyncNaturalPerson:
		return v == nil
	case *LegalPerson:
		return v == nil
	case *SyncLegalPerson:
		return v == nil
	case *UnincorporatedOrg:
		return v == nil
	case *SyncUnincorporatedOrg:
		return v == nil
	}
	return false
}

// Option configures entity construction.
type Option func(*options)

type options struct {
	id  id.EntityID
	now func() time.Time
}

// WithID fixes the entity id instead of generating one.
func WithID(entityID id.EntityID) Option {
	return func(o *options) { o.id = entityID }
}

// WithClock sets the clock used for timestamps and age evaluation.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.id.IsNil() {
		o.id = id.NewEntityID()
	}
	return o
}

// checkShape panics when a capacity value does not belong to the entity kind.
// Constructors make this unreachable; hitting it means an internal bug.
func checkShape(kind id.EntityType, status capacity.Status) capacity.Status {
	if status.EntityType() != kind {
		panic("entity: capacity status " + string(status.EntityType()) + " held by " + string(kind))
	}
	return status
}

// guarded is a value behind its own reader-writer lock. Locked variants wrap
// each mutable field in one; no method holds two guarded locks at once.
type guarded[T any] struct {
	mu sync.RWMutex
	v  T
}

func (g *guarded[T]) load() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v
}

func (g *guarded[T]) store(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.v = v
}

// update runs fn with exclusive access. The value is written only when fn
// returns nil.
func (g *guarded[T]) update(fn func(v *T) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.v
	if err := fn(&v); err != nil {
		return err
	}
	g.v = v
	return nil
}

// writeGate serializes whole-entity mutations in the locked variants. It is
// acquired with a context so a blocked caller can give up.
type writeGate struct {
	sem *semaphore.Weighted
}

func newWriteGate() writeGate {
	return writeGate{sem: semaphore.NewWeighted(1)}
}

func (g writeGate) acquire(ctx context.Context, component string, entityID id.EntityID) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, lockFailure(err, component, entityID)
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, lockFailure(err, component, entityID)
	}
	var once sync.Once
	return func() { once.Do(func() { g.sem.Release(1) }) }, nil
}

func lockFailure(err error, component string, entityID id.EntityID) error {
	return dErrors.Wrap(fmt.Errorf("%w: %w", sentinel.ErrLockUnavailable, err), dErrors.CodeLockFailure, "entity write lock unavailable").
		In(component, "Acquire").
		WithEntities(entityID.String())
}

// noopAcquire gives single-owner variants the same Acquire surface. It still
// honors an already finished context.
func noopAcquire(ctx context.Context, component string, entityID id.EntityID) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, lockFailure(err, component, entityID)
	}
	return func() {}, nil
}

var (
	_ Person = (*NaturalPerson)(nil)
	_ Person = (*SyncNaturalPerson)(nil)
	_ Entity = (*LegalPerson)(nil)
	_ Entity = (*SyncLegalPerson)(nil)
	_ Entity = (*UnincorporatedOrg)(nil)
	_ Entity = (*SyncUnincorporatedOrg)(nil)
)
