package transactional

import (
	"context"
	"sync/atomic"
)

var defaultManager atomic.Pointer[Manager]

// Initialize builds a manager and installs it as the process default used by the package
// level helpers. Call it once during start-up, before any transactional call.
func Initialize(opts ...ManagerOption) *Manager {
	m := NewManager(opts...)
	defaultManager.Store(m)
	return m
}

// Default returns the manager installed by Initialize, or nil.
func Default() *Manager {
	return defaultManager.Load()
}

// Run executes fn through the default manager.
func Run(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	m := Default()
	if m == nil {
		return ErrNotInitialized
	}
	return m.Run(ctx, fn, opts...)
}

// Runner is satisfied by *Manager; the generic helpers accept it so tests can substitute one.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error
}

type defaultRunner struct{}

func (defaultRunner) Run(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) error {
	return Run(ctx, fn, opts...)
}

// DefaultRunner resolves the default manager at call time, so it may be captured before Initialize.
func DefaultRunner() Runner { return defaultRunner{} }
