package analytics

import (
	"errors"
	"fmt"
)

// Status classifies a metric outcome.
type Status int

const (
	// StatusOK means Value holds the computed metric.
	StatusOK Status = iota
	// StatusUnavailable means the table lacked the roles or data the metric
	// needs. Reason says which.
	StatusUnavailable
	// StatusFailed means the computation itself broke. Err holds the cause.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnavailable:
		return "unavailable"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status name in JSON and YAML output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the typed outcome of one metric. Unavailable and failed results
// carry the zero Value, so callers that only render values can ignore Status.
type Result[T any] struct {
	Value  T      `json:"value"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// OK reports whether Value is meaningful.
func (r Result[T]) OK() bool { return r.Status == StatusOK }

// errNotEnoughData marks a degenerate aggregation (too few periods, zero
// totals). It maps to StatusUnavailable rather than StatusFailed.
var errNotEnoughData = errors.New("not enough data")

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

func unavailable[T any](reason string) Result[T] {
	return Result[T]{Status: StatusUnavailable, Reason: reason}
}

func failed[T any](err error) Result[T] {
	return Result[T]{Status: StatusFailed, Reason: err.Error(), Err: err}
}
