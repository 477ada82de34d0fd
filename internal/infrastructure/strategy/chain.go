package strategy

import "context"

// Strategy is one way of finding something. Attempt reports false when the
// strategy does not apply; it never fails the chain.
type Strategy[T any] interface {
	Name() string
	Attempt(ctx context.Context) (T, bool)
}

type funcStrategy[T any] struct {
	name string
	fn   func(context.Context) (T, bool)
}

func (s funcStrategy[T]) Name() string { return s.name }

func (s funcStrategy[T]) Attempt(ctx context.Context) (T, bool) { return s.fn(ctx) }

// Named wraps fn as a Strategy.
func Named[T any](name string, fn func(context.Context) (T, bool)) Strategy[T] {
	return funcStrategy[T]{name: name, fn: fn}
}

// Result is the value found by a chain and the strategy that found it.
type Result[T any] struct {
	Value    T
	Strategy string
	Tried    int
}

// First attempts strategies in order and stops at the first success.
// A cancelled context stops the chain before the next attempt.
func First[T any](ctx context.Context, strategies []Strategy[T]) (Result[T], bool) {
	var res Result[T]
	for _, s := range strategies {
		if ctx.Err() != nil {
			return res, false
		}
		res.Tried++
		if v, ok := s.Attempt(ctx); ok {
			res.Value = v
			res.Strategy = s.Name()
			return res, true
		}
	}
	return res, false
}

// Names lists strategy names in order, for logs and error messages.
func Names[T any](strategies []Strategy[T]) []string {
	out := make([]string, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, s.Name())
	}
	return out
}

// Recorder is told which strategy won a chain.
type Recorder interface {
	RecordStrategy(component, strategy string)
}

type NopRecorder struct{}

func (NopRecorder) RecordStrategy(string, string) {}
