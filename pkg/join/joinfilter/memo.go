package joinfilter

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Memo is a compute-once cache. Concurrent first reads of a key share a
// single computation and every reader observes the same published value.
// Entries are never invalidated.
type Memo[V any] struct {
	values   sync.Map
	group    singleflight.Group
	computed atomic.Int64
}

// Get returns the value for key, computing it with compute on first access.
func (m *Memo[V]) Get(key string, compute func() V) V {
	if v, ok := m.values.Load(key); ok {
		return v.(V)
	}
	v, _, _ := m.group.Do(key, func() (interface{}, error) {
		// a racing caller may have published between Load and Do
		if v, ok := m.values.Load(key); ok {
			return v, nil
		}
		val := compute()
		m.values.Store(key, val)
		m.computed.Add(1)
		return val, nil
	})
	return v.(V)
}

// Computations returns how many times a value was computed.
func (m *Memo[V]) Computations() int64 {
	return m.computed.Load()
}
