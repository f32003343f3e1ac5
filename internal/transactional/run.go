package transactional

import "context"

// Do runs fn through r and returns its value. The value is the zero T whenever an error is returned.
func Do[T any](ctx context.Context, r Runner, fn func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var result T
	if r == nil {
		return result, ErrNotInitialized
	}
	err := r.Run(ctx, func(txCtx context.Context) error {
		v, err := fn(txCtx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Wrap turns a unit of work taking one argument into its transactional version.
func Wrap[A, T any](r Runner, fn func(ctx context.Context, arg A) (T, error), opts ...Option) func(ctx context.Context, arg A) (T, error) {
	return func(ctx context.Context, arg A) (T, error) {
		return Do(ctx, r, func(txCtx context.Context) (T, error) {
			return fn(txCtx, arg)
		}, opts...)
	}
}

// WrapFunc is Wrap for units of work that only return an error.
func WrapFunc[A any](r Runner, fn func(ctx context.Context, arg A) error, opts ...Option) func(ctx context.Context, arg A) error {
	return func(ctx context.Context, arg A) error {
		if r == nil {
			return ErrNotInitialized
		}
		return r.Run(ctx, func(txCtx context.Context) error {
			return fn(txCtx, arg)
		}, opts...)
	}
}

// Future is the pending result of Async.
type Future[T any] struct {
	done   chan struct{}
	value  T
	err    error
	panicV any
}

// Async starts fn on its own goroutine through r. The goroutine inherits ctx, and with it the
// transaction visible to the caller.
func Async[T any](ctx context.Context, r Runner, fn func(ctx context.Context) (T, error), opts ...Option) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if p := recover(); p != nil {
				f.panicV = p
			}
		}()
		f.value, f.err = Do(ctx, r, fn, opts...)
	}()
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the unit of work finished or ctx is done. A panic inside the unit of
// work is re-raised on the awaiting goroutine.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.value, f.err
}
