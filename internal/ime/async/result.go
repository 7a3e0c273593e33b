// Package async provides a settle-once result shared by any number of
// waiters.
package async

import (
	"context"
	"sync"
)

// Result is a value that becomes available later. It settles exactly once,
// either with a value or with an error; later settle attempts are ignored.
type Result[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// New creates a pending result.
func New[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

// Resolved creates a result that already holds v.
func Resolved[T any](v T) *Result[T] {
	r := New[T]()
	r.Resolve(v)
	return r
}

// Rejected creates a result that already failed with err.
func Rejected[T any](err error) *Result[T] {
	r := New[T]()
	r.Reject(err)
	return r
}

// Go runs fn on a new goroutine and settles the result with its return
// values. A panic in fn settles the result with a *PanicError.
func Go[T any](fn func() (T, error)) *Result[T] {
	r := New[T]()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.Reject(&PanicError{Value: p})
			}
		}()
		v, err := fn()
		r.settle(v, err)
	}()
	return r
}

// Resolve settles the result with v.
func (r *Result[T]) Resolve(v T) {
	r.settle(v, nil)
}

// Reject settles the result with err.
func (r *Result[T]) Reject(err error) {
	var zero T
	r.settle(zero, err)
}

func (r *Result[T]) settle(v T, err error) {
	r.once.Do(func() {
		r.value = v
		r.err = err
		close(r.done)
	})
}

// Done is closed once the result settles.
func (r *Result[T]) Done() <-chan struct{} {
	return r.done
}

// Settled reports whether the result has settled.
func (r *Result[T]) Settled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the result settles or ctx is done.
func (r *Result[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Err returns the error of a settled result, or nil while pending.
func (r *Result[T]) Err() error {
	if !r.Settled() {
		return nil
	}
	return r.err
}
