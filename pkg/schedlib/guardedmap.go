package schedlib

import "sync"

// GuardedMap is a mutex-protected generic map. The fetcher keeps its
// in-flight request registry in one.
type GuardedMap[kT comparable, vT any] struct {
	kv map[kT]vT
	mu sync.RWMutex
}

// NewGuardedMap creates an empty GuardedMap.
func NewGuardedMap[kT comparable, vT any]() *GuardedMap[kT, vT] {
	return &GuardedMap[kT, vT]{kv: make(map[kT]vT)}
}

// Set stores a value for the given key.
func (m *GuardedMap[kT, vT]) Set(key kT, val vT) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = val
}

// Get retrieves the value for key and whether it was present.
func (m *GuardedMap[kT, vT]) Get(key kT) (vT, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.kv[key]
	return val, ok
}

// Swap stores val under key and returns the previous value, if any.
func (m *GuardedMap[kT, vT]) Swap(key kT, val vT) (vT, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.kv[key]
	m.kv[key] = val
	return prev, ok
}

// Delete removes key. Deleting an absent key is a no-op.
func (m *GuardedMap[kT, vT]) Delete(key kT) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.kv, key)
}

// DeleteIf removes key only if pred reports true for the stored value,
// atomically with respect to other map operations. Returns whether a
// deletion happened.
func (m *GuardedMap[kT, vT]) DeleteIf(key kT, pred func(vT) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.kv[key]
	if !ok || !pred(val) {
		return false
	}
	delete(m.kv, key)
	return true
}

// Len returns the number of stored entries.
func (m *GuardedMap[kT, vT]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.kv)
}

// Range iterates over all entries. If f returns false, iteration stops.
// f must not modify the map.
func (m *GuardedMap[kT, vT]) Range(f func(key kT, val vT) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, v := range m.kv {
		if !f(k, v) {
			return
		}
	}
}
