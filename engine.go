package replica

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"
)

// Strategy selects how the engine walks the source graph.
type Strategy int

const (
	// StrategyIterative keeps pending work on an explicit stack.
	StrategyIterative Strategy = iota

	// StrategyRecursive descends into members with direct calls.
	StrategyRecursive
)

func (s Strategy) String() string {
	switch s {
	case StrategyIterative:
		return "iterative"
	case StrategyRecursive:
		return "recursive"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Engine produces deep copies.
//
// An Engine holds configuration only. Each call to Copy gets its own
// identity map and work stack, so an Engine is safe for concurrent use and
// unrelated calls never alias each other's values. Type classifications
// are cached process-wide.
type Engine struct {
	strategy Strategy
}

// Option configures an Engine.
type Option func(*Engine)

// WithStrategy selects the traversal strategy.
func WithStrategy(s Strategy) Option {
	return func(e *Engine) {
		e.strategy = s
	}
}

// New creates an Engine. The default strategy is StrategyIterative.
func New(opts ...Option) *Engine {
	e := &Engine{strategy: StrategyIterative}
	for _, opt := range opts {
		opt(e)
	}
	emitEngineCreated(context.Background(), e.strategy)
	return e
}

// Strategy returns the engine's traversal strategy.
func (e *Engine) Strategy() Strategy {
	return e.strategy
}

// Copy returns a deep copy of src. A nil src is returned as nil.
// On error no part of the copy is returned.
func (e *Engine) Copy(ctx context.Context, src any) (any, error) {
	if src == nil {
		return nil, nil
	}
	out, err := e.copyValue(ctx, reflect.ValueOf(src))
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// copyValue runs one top-level copy with a fresh identity map.
func (e *Engine) copyValue(ctx context.Context, src reflect.Value) (reflect.Value, error) {
	typeName := src.Type().String()

	start := time.Now()
	emitCopyStart(ctx, typeName, e.strategy)

	r := newRun(e.strategy)
	out, err := r.copyRoot(src)

	emitCopyComplete(ctx, typeName, e.strategy, r.ids.Len(), time.Since(start), err)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("copy %s: %w", typeName, err)
	}
	return out, nil
}

var defaultEngine = sync.OnceValue(func() *Engine {
	return New()
})

// Copy returns a deep copy of src using the default engine.
func Copy[T any](ctx context.Context, src T) (T, error) {
	return CopyWith(ctx, defaultEngine(), src)
}

// CopyWith returns a deep copy of src using the given engine.
// The static type T is preserved, including interface types.
func CopyWith[T any](ctx context.Context, e *Engine, src T) (T, error) {
	out, err := e.copyValue(ctx, reflect.ValueOf(&src).Elem())
	if err != nil {
		var zero T
		return zero, err
	}
	return *out.Addr().Interface().(*T), nil
}

// MustCopy is like Copy but panics on error.
// Use it for types known to be supported.
func MustCopy[T any](src T) T {
	out, err := Copy(context.Background(), src)
	if err != nil {
		panic(err)
	}
	return out
}
