package uow

import (
	"context"

	"txflow/internal/ports"
	"txflow/internal/transactional"
)

// UnitOfWork implements ports.UnitOfWork on top of a transaction manager.
type UnitOfWork struct {
	runner transactional.Runner
}

var _ ports.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(runner transactional.Runner) *UnitOfWork {
	return &UnitOfWork{runner: runner}
}

func (u *UnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error, opts ...transactional.Option) error {
	return u.runner.Run(ctx, fn, opts...)
}
