package transactional

import "context"

// DataSource hands out sessions. Every transaction the manager begins (as opposed to joins)
// acquires exactly one session and closes it once the transaction is finished.
type DataSource interface {
	Acquire(ctx context.Context) (Session, error)
}

// Session is one connection with at most one transaction in progress.
// Adapters expose the concrete handle (for example *gorm.DB) through their own methods;
// repositories reach it through Rebinder.
type Session interface {
	Begin(ctx context.Context, isolation Isolation) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Savepoint(ctx context.Context, name string) error
	ReleaseSavepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	// Close returns the connection to its pool.
	Close() error
}

// DataSourceFunc adapts a function to DataSource.
type DataSourceFunc func(ctx context.Context) (Session, error)

func (f DataSourceFunc) Acquire(ctx context.Context) (Session, error) { return f(ctx) }
