package transport

import "sync/atomic"

// Slot hands one value from a background task to a polling consumer.
// A value is delivered at most once.
type Slot[T any] struct {
	v atomic.Pointer[T]
}

// Put stores v if the slot is empty and reports whether it did.
func (s *Slot[T]) Put(v T) bool {
	return s.v.CompareAndSwap(nil, &v)
}

// Take removes and returns the stored value. It never blocks.
func (s *Slot[T]) Take() (T, bool) {
	p := s.v.Swap(nil)
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Full reports whether a value is waiting.
func (s *Slot[T]) Full() bool {
	return s.v.Load() != nil
}
