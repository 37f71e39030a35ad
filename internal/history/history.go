// Package history keeps bounded in-memory series of past metric values for
// chart rendering. Nothing here is persisted across restarts.
package history

import "sync"

// DefaultCapacity matches the number of points the frontend charts plot.
const DefaultCapacity = 60

// Ring is a fixed-capacity FIFO of metric samples. When full, appending
// evicts the oldest value. The zero value is not usable; use NewRing.
type Ring struct {
	values []float64
	head   int
	size   int
}

// NewRing returns a ring holding at most capacity samples. Capacities
// below 1 fall back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Ring{values: make([]float64, capacity)}
}

// Append adds a sample, evicting the oldest one when the ring is full.
func (r *Ring) Append(v float64) {
	idx := (r.head + r.size) % len(r.values)
	r.values[idx] = v
	if r.size < len(r.values) {
		r.size++
		return
	}
	r.head = (r.head + 1) % len(r.values)
}

// Values returns the samples oldest-first as a fresh slice.
func (r *Ring) Values() []float64 {
	out := make([]float64, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.values[(r.head+i)%len(r.values)]
	}
	return out
}

// Len returns the number of samples currently held.
func (r *Ring) Len() int { return r.size }

// Cap returns the configured capacity.
func (r *Ring) Cap() int { return len(r.values) }

// Set is a registry of named rings, safe for one writer (the monitor
// worker) and any number of readers (HTTP handlers).
type Set struct {
	mu       sync.RWMutex
	capacity int
	rings    map[string]*Ring
}

// NewSet returns an empty registry whose rings hold capacity samples each.
func NewSet(capacity int) *Set {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Set{capacity: capacity, rings: make(map[string]*Ring)}
}

// Append records a sample for the named metric, creating its ring on
// first use.
func (s *Set) Append(metric string, v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ring, ok := s.rings[metric]
	if !ok {
		ring = NewRing(s.capacity)
		s.rings[metric] = ring
	}
	ring.Append(v)
}

// Values returns the named metric's samples oldest-first, or an empty
// slice when the metric has never been recorded.
func (s *Set) Values(metric string) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ring, ok := s.rings[metric]
	if !ok {
		return []float64{}
	}
	return ring.Values()
}

// Metrics lists the metric names recorded so far.
func (s *Set) Metrics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.rings))
	for name := range s.rings {
		names = append(names, name)
	}
	return names
}
