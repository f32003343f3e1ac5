// Package transactional runs units of work inside database transactions chosen by a
// propagation policy, without passing connections or transaction handles around.
//
// The transaction visible to a unit of work travels on its context.Context. A Manager reads
// the stack bound to the caller's context, decides whether to begin, join, suspend or refuse a
// transaction, and runs the unit of work with a derived context. Repositories built on an
// Interceptor resolve the visible transaction on every call.
//
//	m := transactional.Initialize(
//		transactional.WithDataSourceRegistered(transactional.DefaultDataSource, gormtx.NewDataSource(db)),
//	)
//	err := m.Run(ctx, func(ctx context.Context) error {
//		if err := posts.Save(ctx, post); err != nil {
//			return err // rolls back
//		}
//		return transactional.OnCommit(ctx, func(context.Context) error {
//			return notify(post)
//		})
//	})
//
// Hooks registered with OnCommit, OnRollback and OnComplete fire once, after the outermost
// transaction of the chain has finished, never on a savepoint release.
package transactional
