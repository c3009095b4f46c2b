// Package future provides a single-resolution asynchronous result.
//
// A Future settles exactly once, either resolved with a value or rejected with
// an error. There is no cancellation: a context passed to Await only bounds
// how long the caller waits, the producer keeps running.
package future

import (
	"context"
	"sync"
)

// Future holds the eventual outcome of an asynchronous operation.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// New creates an unsettled Future.
func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a Future already resolved with v.
func Resolved[T any](v T) *Future[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

// Rejected returns a Future already rejected with err.
func Rejected[T any](err error) *Future[T] {
	f := New[T]()
	f.Reject(err)
	return f
}

// Resolve settles the future with v. It reports false if the future was
// already settled.
func (f *Future[T]) Resolve(v T) bool {
	settled := false
	f.once.Do(func() {
		f.value = v
		close(f.done)
		settled = true
	})
	return settled
}

// Reject settles the future with err. It reports false if the future was
// already settled.
func (f *Future[T]) Reject(err error) bool {
	if err == nil {
		err = ErrNilRejection
	}
	settled := false
	f.once.Do(func() {
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}

// Done returns a channel closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while the future
// is still pending.
func (f *Future[T]) Result() (value T, ok bool, err error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	default:
		var zero T
		return zero, false, nil
	}
}

// Then derives a future from src. fn runs after src resolves; a rejection of
// src is forwarded as is. The derived future never settles before src.
func Then[T, U any](src *Future[T], fn func(T) (U, error)) *Future[U] {
	out := New[U]()
	go func() {
		<-src.done
		if src.err != nil {
			out.Reject(src.err)
			return
		}
		v, err := fn(src.value)
		if err != nil {
			out.Reject(err)
			return
		}
		out.Resolve(v)
	}()
	return out
}
