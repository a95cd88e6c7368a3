// Package loadstate models the lifecycle of an independently fetched data source.
//
// A State is one of Loading, Empty, Ready or Failed. Consumers decide what to
// render from the tag instead of inferring it from nil values or slice lengths.
package loadstate

import (
	"encoding/json"
	"errors"
)

// Status tags a State.
type Status uint8

const (
	StatusLoading Status = iota
	StatusEmpty
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusEmpty:
		return "empty"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrUnknown is reported by Failed states created without a reason.
var ErrUnknown = errors.New("unknown_failure")

// State holds the current status of a data source and, when Ready, its data.
// The zero value is Loading.
type State[T any] struct {
	status Status
	data   T
	err    error
}

func Loading[T any]() State[T] {
	return State[T]{status: StatusLoading}
}

func Empty[T any]() State[T] {
	return State[T]{status: StatusEmpty}
}

func Ready[T any](data T) State[T] {
	return State[T]{status: StatusReady, data: data}
}

func Failed[T any](err error) State[T] {
	if err == nil {
		err = ErrUnknown
	}
	return State[T]{status: StatusFailed, err: err}
}

// FromResult converts a fetch result into a State. isEmpty may be nil.
func FromResult[T any](data T, err error, isEmpty func(T) bool) State[T] {
	if err != nil {
		return Failed[T](err)
	}
	if isEmpty != nil && isEmpty(data) {
		return Empty[T]()
	}
	return Ready(data)
}

// Map transforms Ready data and carries every other status through unchanged.
func Map[T, U any](s State[T], fn func(T) U) State[U] {
	switch s.status {
	case StatusReady:
		return Ready(fn(s.data))
	case StatusEmpty:
		return Empty[U]()
	case StatusFailed:
		return Failed[U](s.err)
	default:
		return Loading[U]()
	}
}

func (s State[T]) Status() Status { return s.status }

func (s State[T]) IsLoading() bool { return s.status == StatusLoading }

func (s State[T]) IsReady() bool { return s.status == StatusReady }

func (s State[T]) IsFailed() bool { return s.status == StatusFailed }

// Settled reports whether the source has stopped loading.
func (s State[T]) Settled() bool { return s.status != StatusLoading }

// Data returns the payload and true only when the state is Ready.
func (s State[T]) Data() (T, bool) {
	if s.status != StatusReady {
		var zero T
		return zero, false
	}
	return s.data, true
}

// DataOr returns the Ready payload or fallback.
func (s State[T]) DataOr(fallback T) T {
	if s.status != StatusReady {
		return fallback
	}
	return s.data
}

func (s State[T]) Err() error { return s.err }

type wireState[T any] struct {
	Status string `json:"status"`
	Data   *T     `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// MarshalJSON renders {"status": ..., "data": ..., "error": ...}.
func (s State[T]) MarshalJSON() ([]byte, error) {
	out := wireState[T]{Status: s.status.String()}
	if s.status == StatusReady {
		data := s.data
		out.Data = &data
	}
	if s.status == StatusFailed && s.err != nil {
		out.Error = s.err.Error()
	}
	return json.Marshal(out)
}
