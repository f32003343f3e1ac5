package ports

import (
	"context"

	"txflow/internal/transactional"
)

// UnitOfWork defines a transaction boundary.
//
// This is intentionally callback-style: returning an error causes rollback,
// returning nil causes commit. Options pick propagation, isolation and data source.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error, opts ...transactional.Option) error
}
