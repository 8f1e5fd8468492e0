// Package result provides a generic success/failure container.
//
// A Result carries exactly one of a success value or a failure payload. The
// fields are unexported and the only constructors are Success and Failure, so
// a Result can never hold both arms or neither.
package result

import "encoding/json"

// Result is a tagged union of a success value T and a failure payload E.
//
// The zero value is a failure carrying the zero E. Code that produces Results
// should always go through Success or Failure.
type Result[T, E any] struct {
	value T
	err   E
	ok    bool
}

// Success returns a Result holding v.
func Success[T, E any](v T) Result[T, E] {
	return Result[T, E]{value: v, ok: true}
}

// Failure returns a Result holding e.
func Failure[T, E any](e E) Result[T, E] {
	return Result[T, E]{err: e}
}

// IsSuccess reports whether r holds a success value.
func (r Result[T, E]) IsSuccess() bool {
	return r.ok
}

// IsFailure reports whether r holds a failure payload.
func (r Result[T, E]) IsFailure() bool {
	return !r.ok
}

// Value returns the success value and true, or the zero T and false.
func (r Result[T, E]) Value() (T, bool) {
	if !r.ok {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Err returns the failure payload and true, or the zero E and false.
func (r Result[T, E]) Err() (E, bool) {
	if r.ok {
		var zero E
		return zero, false
	}
	return r.err, true
}

// Fold collapses r into a single value by applying onSuccess or onFailure.
func Fold[T, E, R any](r Result[T, E], onSuccess func(T) R, onFailure func(E) R) R {
	if r.ok {
		return onSuccess(r.value)
	}
	return onFailure(r.err)
}

type wireResult[T, E any] struct {
	IsSuccess bool `json:"is_success"`
	Value     *T   `json:"value,omitempty"`
	Error     *E   `json:"error,omitempty"`
}

// MarshalJSON encodes r as {"is_success":true,"value":...} or
// {"is_success":false,"error":...}.
func (r Result[T, E]) MarshalJSON() ([]byte, error) {
	w := wireResult[T, E]{IsSuccess: r.ok}
	if r.ok {
		w.Value = &r.value
	} else {
		w.Error = &r.err
	}
	return json.Marshal(w)
}
