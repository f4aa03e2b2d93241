// Package fn provides small generic helpers for error handling, slices, and
// traced processing stages.
package fn

import "fmt"

// Result[T] is a generic result type for error handling.
type Result[T any] struct {
	val T
	err error
	ok  bool
}

// Ok creates a successful Result.
func Ok[T any](v T) Result[T] {
	return Result[T]{val: v, ok: true}
}

// Err creates a failed Result from an error.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Errf creates a failed Result from a formatted string.
func Errf[T any](format string, args ...any) Result[T] {
	return Result[T]{err: fmt.Errorf(format, args...)}
}

// IsOk returns true if the result is successful.
func (r Result[T]) IsOk() bool { return r.ok }

// IsErr returns true if the result is an error.
func (r Result[T]) IsErr() bool { return !r.ok }

// Unwrap returns the value and error.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// UnwrapOr returns the value or a fallback on error.
func (r Result[T]) UnwrapOr(fallback T) T {
	if !r.ok {
		return fallback
	}
	return r.val
}

// Collect turns a slice of Results into a Result of a slice, failing on the
// first error in order.
func Collect[T any](results []Result[T]) Result[[]T] {
	out := make([]T, 0, len(results))
	for _, r := range results {
		if r.IsErr() {
			_, err := r.Unwrap()
			return Err[[]T](err)
		}
		v, _ := r.Unwrap()
		out = append(out, v)
	}
	return Ok(out)
}
