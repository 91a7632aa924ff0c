package node

import "context"

// This file provides a small set of arity-specialized adapters: a typed
// Go function is wrapped into the erased Callable shape by extracting
// its arguments positionally from the args slice the executor
// assembles. Past arity three, FnN/ObsN fall back to an
// array-of-variants signature, which is the only genuinely generic
// piece.

// Transform adapters: pure functions returning one or more outputs.

// Fn1 adapts a one-argument transform.
func Fn1[A, R any](fn func(A) R) Callable {
	return func(_ context.Context, args []any) ([]any, error) {
		return []any{fn(args[0].(A))}, nil
	}
}

// Fn1E adapts a one-argument transform that may fail.
func Fn1E[A, R any](fn func(A) (R, error)) Callable {
	return func(_ context.Context, args []any) ([]any, error) {
		r, err := fn(args[0].(A))
		if err != nil {
			return nil, err
		}
		return []any{r}, nil
	}
}

// Fn2 adapts a two-argument transform.
func Fn2[A, B, R any](fn func(A, B) R) Callable {
	return func(_ context.Context, args []any) ([]any, error) {
		return []any{fn(args[0].(A), args[1].(B))}, nil
	}
}

// Fn2E adapts a two-argument transform that may fail.
func Fn2E[A, B, R any](fn func(A, B) (R, error)) Callable {
	return func(_ context.Context, args []any) ([]any, error) {
		r, err := fn(args[0].(A), args[1].(B))
		if err != nil {
			return nil, err
		}
		return []any{r}, nil
	}
}

// Fn3 adapts a three-argument transform.
func Fn3[A, B, C, R any](fn func(A, B, C) R) Callable {
	return func(_ context.Context, args []any) ([]any, error) {
		return []any{fn(args[0].(A), args[1].(B), args[2].(C))}, nil
	}
}

// Fn3E adapts a three-argument transform that may fail.
func Fn3E[A, B, C, R any](fn func(A, B, C) (R, error)) Callable {
	return func(_ context.Context, args []any) ([]any, error) {
		r, err := fn(args[0].(A), args[1].(B), args[2].(C))
		if err != nil {
			return nil, err
		}
		return []any{r}, nil
	}
}

// FnN is the array-of-variants fallback for transforms of arity four
// and above, or whose arity is only known at declaration time.
func FnN[R any](fn func([]any) (R, error)) Callable {
	return func(_ context.Context, args []any) ([]any, error) {
		r, err := fn(args)
		if err != nil {
			return nil, err
		}
		return []any{r}, nil
	}
}

// Observer adapters: side-effecting functions with no declared outputs.

// Obs1 adapts a one-argument observer.
func Obs1[A any](fn func(A) error) Callable {
	return func(_ context.Context, args []any) ([]any, error) {
		return nil, fn(args[0].(A))
	}
}

// Obs2 adapts a two-argument observer.
func Obs2[A, B any](fn func(A, B) error) Callable {
	return func(_ context.Context, args []any) ([]any, error) {
		return nil, fn(args[0].(A), args[1].(B))
	}
}

// Obs3 adapts a three-argument observer.
func Obs3[A, B, C any](fn func(A, B, C) error) Callable {
	return func(_ context.Context, args []any) ([]any, error) {
		return nil, fn(args[0].(A), args[1].(B), args[2].(C))
	}
}

// ObsN is the array-of-variants fallback for observers of arity four and
// above.
func ObsN(fn func([]any) error) Callable {
	return func(_ context.Context, args []any) ([]any, error) {
		return nil, fn(args)
	}
}

// Ctx1 adapts a one-argument transform that additionally needs
// the invocation context, e.g. for cancellation-aware callables.
func Ctx1[A, R any](fn func(context.Context, A) R) Callable {
	return func(ctx context.Context, args []any) ([]any, error) {
		return []any{fn(ctx, args[0].(A))}, nil
	}
}

// CtxObs1 adapts a one-argument, context-aware observer.
func CtxObs1[A any](fn func(context.Context, A) error) Callable {
	return func(ctx context.Context, args []any) ([]any, error) {
		return nil, fn(ctx, args[0].(A))
	}
}
