// Package scraper defines the acquisition contract and the fallback pipeline
// that turns the first usable document into a feature collection
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable marks a source whose required resource is absent
var ErrUnavailable = errors.New("source unavailable")

// ErrExhausted is returned when no source produced any feature
var ErrExhausted = errors.New("all sources exhausted")

// Source acquires the raw HTML of the company map
type Source interface {
	// Name identifies the source in logs
	Name() string

	// Acquire returns the document. Errors wrapping ErrUnavailable mean the
	// capability is missing; any other error is an acquisition failure
	Acquire(ctx context.Context) (string, error)
}

// Unavailable builds an error wrapping ErrUnavailable
func Unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

// Status is the outcome of one attempt
type Status int

const (
	StatusUnavailable Status = iota
	StatusFailed
	StatusEmpty
	StatusSucceeded
)

func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusFailed:
		return "failed"
	case StatusEmpty:
		return "empty"
	case StatusSucceeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// Attempt records what happened when a source was tried
type Attempt struct {
	Source   string
	Status   Status
	Err      error
	Features int
	Failures int
	Duration time.Duration
}

// ExhaustedError carries the attempts of a run that produced nothing
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v after %d attempts", ErrExhausted, len(e.Attempts))
}

func (e *ExhaustedError) Unwrap() error { return ErrExhausted }

// SourceFunc adapts a function to the Source interface
type SourceFunc struct {
	ID string
	Fn func(ctx context.Context) (string, error)
}

func (s SourceFunc) Name() string { return s.ID }

func (s SourceFunc) Acquire(ctx context.Context) (string, error) { return s.Fn(ctx) }
