package transactional

import (
	"context"
	"fmt"
	"sync"

	"txflow/internal/errs"
)

// Hook runs after the outermost transaction of the calling chain has committed or rolled back.
// It receives the context the owning wrapper was called with.
type Hook func(ctx context.Context) error

type hookKind uint8

const (
	hookCommit hookKind = iota
	hookRollback
	hookComplete
)

func (k hookKind) String() string {
	switch k {
	case hookCommit:
		return "commit"
	case hookRollback:
		return "rollback"
	default:
		return "complete"
	}
}

type hookRegistry struct {
	mu       sync.Mutex
	commit   []Hook
	rollback []Hook
	complete []Hook
	drained  bool
}

func (r *hookRegistry) add(kind hookKind, hook Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.drained {
		return ErrTransactionDone
	}
	switch kind {
	case hookCommit:
		r.commit = append(r.commit, hook)
	case hookRollback:
		r.rollback = append(r.rollback, hook)
	default:
		r.complete = append(r.complete, hook)
	}
	return nil
}

// drain runs the outcome hooks then the completion hooks, once. Every hook runs even
// if an earlier one failed.
func (r *hookRegistry) drain(ctx context.Context, status Status) []error {
	r.mu.Lock()
	if r.drained {
		r.mu.Unlock()
		return nil
	}
	r.drained = true
	outcomeKind, outcome := hookCommit, r.commit
	if status != StatusCommitted {
		outcomeKind, outcome = hookRollback, r.rollback
	}
	complete := r.complete
	r.commit, r.rollback, r.complete = nil, nil, nil
	r.mu.Unlock()

	var failed []error
	for i, hook := range outcome {
		if err := runHook(ctx, hook); err != nil {
			failed = append(failed, errs.Wrapf(err, "%s hook #%d", outcomeKind, i+1))
		}
	}
	for i, hook := range complete {
		if err := runHook(ctx, hook); err != nil {
			failed = append(failed, errs.Wrapf(err, "%s hook #%d", hookComplete, i+1))
		}
	}
	return failed
}

func runHook(ctx context.Context, hook Hook) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return hook(ctx)
}

// OnCommit registers hook against the outermost transaction visible to ctx.
// It fires only if that transaction commits.
func OnCommit(ctx context.Context, hook Hook) error {
	return register(ctx, hookCommit, hook)
}

// OnRollback registers hook against the outermost transaction visible to ctx.
// It fires only if that transaction rolls back.
func OnRollback(ctx context.Context, hook Hook) error {
	return register(ctx, hookRollback, hook)
}

// OnComplete registers hook against the outermost transaction visible to ctx.
// It fires after the commit or rollback hooks, whatever the outcome.
func OnComplete(ctx context.Context, hook Hook) error {
	return register(ctx, hookComplete, hook)
}

func register(ctx context.Context, kind hookKind, hook Hook) error {
	if ctx == nil {
		return ErrNoTransaction
	}
	if hook == nil {
		return fmt.Errorf("%s hook is required", kind)
	}

	top := CurrentStack(ctx).Visible()
	if top == nil {
		return errs.Wrapf(ErrNoTransaction, "register %s hook", kind)
	}
	root := top.Root()
	if !root.Active() {
		return errs.Wrapf(ErrTransactionDone, "register %s hook", kind)
	}
	return root.hooks.add(kind, hook)
}
