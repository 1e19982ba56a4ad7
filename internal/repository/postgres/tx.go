package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"goride/internal/repository"
)

// Transactor is a PostgreSQL implementation of repository.Transactor.
type Transactor struct {
	db *sql.DB
}

// NewTransactor creates a transactor bound to db.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx runs fn in a transaction. It commits when fn returns nil and rolls back otherwise.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	repos := repository.Repositories{
		Rides:    NewRideRepositoryWithTx(tx),
		Drivers:  NewDriverRepositoryWithTx(tx),
		Payments: NewPaymentRepositoryWithTx(tx),
	}
	if err = fn(ctx, repos); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
