// Package lazy provides one-time, retryable initialization of expensive
// collaborators such as model clients and index handles.
package lazy

import (
	"context"
	"sync"
)

// Value holds a T built on first use. A failed build is not cached: the
// next Get tries again.
type Value[T any] struct {
	mu       sync.Mutex
	init     func(ctx context.Context) (T, error)
	value    T
	ready    bool
	building chan struct{} // non-nil while a build is in flight
}

// New returns a Value that builds its content with init.
func New[T any](init func(ctx context.Context) (T, error)) *Value[T] {
	return &Value[T]{init: init}
}

// Get returns the value, building it if needed. Only one build runs at a
// time; other callers wait for it or for their own ctx, whichever ends
// first. The build runs under the ctx of the caller that started it.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		v.mu.Lock()
		if v.ready {
			val := v.value
			v.mu.Unlock()
			return val, nil
		}
		if wait := v.building; wait != nil {
			v.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
		done := make(chan struct{})
		v.building = done
		v.mu.Unlock()

		val, err := v.init(ctx)

		v.mu.Lock()
		if err == nil {
			v.value = val
			v.ready = true
		}
		v.building = nil
		close(done)
		v.mu.Unlock()

		if err != nil {
			return zero, err
		}
		return val, nil
	}
}

// Ready reports whether the value has been built. It never waits on an
// in-flight build.
func (v *Value[T]) Ready() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ready
}
