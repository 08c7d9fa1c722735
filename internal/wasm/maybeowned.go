package wasm

import "sync"

// MaybeOwned is a three-state ownership handle for T: it begins Owned,
// granting the holder exclusive mutable access, and can be frozen exactly
// once into Shared, after which any number of cheap, read-only clones of
// the underlying value may be handed to concurrent readers.
//
// This is the Go rendering of the "builder seals into a snapshot" pattern:
// rather than an enum with an Empty transient case (needed in a
// move-semantics language to make the owned→shared transition safe), a
// mutex-guarded flag is enough here, because Go values are not moved out
// from under their owner.
type MaybeOwned[T any] struct {
	mu     sync.RWMutex
	value  *T
	shared bool
}

// NewOwned returns a MaybeOwned in the Owned state, wrapping v.
func NewOwned[T any](v *T) *MaybeOwned[T] {
	return &MaybeOwned[T]{value: v}
}

// AssertMut returns an exclusive mutable view of the wrapped value. It
// panics if the handle has already been shared: by the time §4.3's freeze
// point has run, no code path may attempt to keep mutating the module,
// and a reachable call here indicates a programmer error in the state
// machine, not a malformed module.
func (m *MaybeOwned[T]) AssertMut() *T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shared {
		panic("wasm: MaybeOwned.AssertMut called after Share; module state was already frozen")
	}
	return m.value
}

// AsMut returns an exclusive mutable view, or nil if the handle has
// already been shared.
func (m *MaybeOwned[T]) AsMut() *T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shared {
		return nil
	}
	return m.value
}

// Share transitions the handle to Shared, so that Deref may safely be
// called from multiple goroutines without further synchronization. It is a
// no-op if already shared.
func (m *MaybeOwned[T]) Share() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shared = true
}

// IsShared reports whether Share has been called.
func (m *MaybeOwned[T]) IsShared() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shared
}

// Deref returns a read-only view of the wrapped value, valid in both the
// Owned and Shared states.
func (m *MaybeOwned[T]) Deref() *T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.value
}
