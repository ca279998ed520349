package action

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/nerrad567/bosun-core/internal/rules"
)

// Logger defines the logging interface used by sinks.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sink delivers one action.
type Sink interface {
	Dispatch(ctx context.Context, a rules.Action) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, a rules.Action) error

// Dispatch implements Sink.
func (f SinkFunc) Dispatch(ctx context.Context, a rules.Action) error { return f(ctx, a) }

type multi []Sink

// Multi dispatches to every sink in order. Every sink is tried; the errors
// are joined.
func Multi(sinks ...Sink) Sink {
	return multi(slices.Clone(sinks))
}

func (m multi) Dispatch(ctx context.Context, a rules.Action) error {
	if a.Type == "" {
		return ErrInvalidAction
	}
	var errs []error
	for _, s := range m {
		if err := s.Dispatch(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrDispatchFailed, errors.Join(errs...))
	}
	return nil
}

type filtered struct {
	types []string
	sink  Sink
}

// ForTypes passes only actions whose type is one of types to sink.
func ForTypes(sink Sink, types ...string) Sink {
	return filtered{types: slices.Clone(types), sink: sink}
}

func (f filtered) Dispatch(ctx context.Context, a rules.Action) error {
	if !slices.Contains(f.types, a.Type) {
		return nil
	}
	return f.sink.Dispatch(ctx, a)
}

// LogSink writes every action to a logger.
type LogSink struct {
	logger Logger
}

// NewLogSink creates a LogSink. A nil logger discards.
func NewLogSink(logger Logger) *LogSink {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogSink{logger: logger}
}

// Dispatch implements Sink.
func (s *LogSink) Dispatch(_ context.Context, a rules.Action) error {
	args := []any{"rule", a.Rule, "type", a.Type, "target", a.Target}
	if len(a.Payload) > 0 {
		args = append(args, "payload", a.Payload)
	}
	if a.Type == rules.ActionNotify {
		s.logger.Warn("rule action", args...)
		return nil
	}
	s.logger.Info("rule action", args...)
	return nil
}
