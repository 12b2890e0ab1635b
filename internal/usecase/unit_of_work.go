package usecase

import (
	"context"
	"fmt"
)

// UnitOfWork runs a function inside its own database transaction and commits
// it on success. Transient conflicts are retried when a Retrier is set.
type UnitOfWork struct {
	txManager TransactionManager
	retrier   Retrier
}

// NewUnitOfWork creates a new UnitOfWork. retrier may be nil.
func NewUnitOfWork(txManager TransactionManager, retrier Retrier) *UnitOfWork {
	return &UnitOfWork{txManager: txManager, retrier: retrier}
}

// Do executes fn in a fresh transaction.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	op := func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := u.txManager.Begin(txCtx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := fn(txCtx, tx); err != nil {
			return err
		}

		return tx.Commit(txCtx)
	}

	if u.retrier == nil {
		return op()
	}
	return u.retrier.Retry(ctx, op)
}
