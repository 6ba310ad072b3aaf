package ops

import (
	"math/rand/v2"
	"sync"

	audit "civitas/pkg/platform/audit"
)

// Sampler decides which operational events reach the store. Submission and
// match checks dominate volume, so rates can be set per event.
type Sampler struct {
	mu       sync.RWMutex
	fallback float64
	rates    map[audit.AuditEvent]float64
	draw     func() float64
}

type SamplerOption func(*Sampler)

// WithDraw replaces the random source. draw must return values in [0, 1).
func WithDraw(draw func() float64) SamplerOption {
	return func(s *Sampler) {
		if draw != nil {
			s.draw = draw
		}
	}
}

// WithEventRate overrides the rate for one event.
func WithEventRate(event audit.AuditEvent, rate float64) SamplerOption {
	return func(s *Sampler) { s.rates[event] = clampRate(rate) }
}

// NewSampler keeps rate of all events. Rates outside [0, 1] are clamped.
func NewSampler(rate float64, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		fallback: clampRate(rate),
		rates:    make(map[audit.AuditEvent]float64),
		draw:     rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keep reports whether event should be written.
func (s *Sampler) Keep(event audit.AuditEvent) bool {
	rate := s.rateFor(event)
	if rate >= 1 {
		return true
	}
	return rate > 0 && s.draw() < rate
}

func (s *Sampler) SetRate(event audit.AuditEvent, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[event] = clampRate(rate)
}

func (s *Sampler) rateFor(event audit.AuditEvent) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rate, ok := s.rates[event]; ok {
		return rate
	}
	return s.fallback
}

func clampRate(rate float64) float64 {
	return min(max(rate, 0), 1)
}
