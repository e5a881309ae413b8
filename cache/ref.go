package cache

import "sync/atomic"

// Ref is an external reference to a table entry.
//
// While at least one Ref to an entry is unreleased, ClearUnused keeps the
// entry. A Ref may be shared between goroutines; Release is idempotent, so
// releasing the same Ref twice only drops one reference.
type Ref[V any] struct {
	e        *entry[V]
	released atomic.Bool
}

// Value returns the referenced value.
// A nil Ref returns the zero value.
func (r *Ref[V]) Value() V {
	if r == nil {
		var zero V
		return zero
	}
	return r.e.value
}

// Retain returns a new, independent reference to the same entry.
// Retaining a nil or released Ref returns nil.
func (r *Ref[V]) Retain() *Ref[V] {
	if r == nil || r.released.Load() {
		return nil
	}
	r.e.refs.Add(1)
	return &Ref[V]{e: r.e}
}

// Release drops this reference. It is safe to call on a nil Ref and safe to
// call more than once.
func (r *Ref[V]) Release() {
	if r == nil {
		return
	}
	if r.released.CompareAndSwap(false, true) {
		r.e.refs.Add(-1)
	}
}

// Released reports whether Release has been called on this Ref.
func (r *Ref[V]) Released() bool {
	return r == nil || r.released.Load()
}

// Same reports whether r and other reference the same entry.
func (r *Ref[V]) Same(other *Ref[V]) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.e == other.e
}
