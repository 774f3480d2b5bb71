// Package application holds the transaction boundary shared by the license
// and billing services.
package application

import "context"

// UnitOfWork scopes a transaction to a context. Repositories called with the
// context returned by Begin take part in the transaction.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// WithUnitOfWork runs fn in a transaction and commits when fn returns nil.
// An error from fn is returned unchanged after rollback, so callers can
// match domain errors; a panic is re-raised after rollback.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn func(ctx context.Context) error) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = uow.Rollback(txCtx)
		}
	}()

	if err := fn(txCtx); err != nil {
		return err
	}
	committed = true
	return uow.Commit(txCtx)
}
