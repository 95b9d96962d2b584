// Package sink delivers masked log entries to their destinations.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/crudgate/internal/domain"
)

// Sink writes one already masked and sanitized entry.
type Sink interface {
	Name() string
	Write(ctx context.Context, entry domain.LogEntry) error
}

// WriteError reports which sink failed.
type WriteError struct {
	Sink string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s sink: %v", e.Sink, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// FailedSinks lists the sink names carried by err, walking joined errors.
// An error that is not a WriteError is attributed to fallback.
func FailedSinks(err error, fallback string) []string {
	if err == nil {
		return nil
	}
	var we *WriteError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var names []string
		for _, e := range joined.Unwrap() {
			names = append(names, FailedSinks(e, fallback)...)
		}
		return names
	}
	if errors.As(err, &we) {
		return []string{we.Sink}
	}
	return []string{fallback}
}

// Multi fans an entry out to every sink. All sinks are attempted even when
// some fail; failures are joined.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fan-out over sinks, skipping nils.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Write(ctx context.Context, entry domain.LogEntry) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, entry); err != nil {
			errs = append(errs, &WriteError{Sink: s.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}
