package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// withTx returns a context whose repository calls run inside tx.
func withTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// conn returns the transaction carried by ctx, or db when there is none.
// Reusing the carried transaction keeps a caller holding a row lock from waiting on a second pooled connection.
func conn(ctx context.Context, db *sql.DB) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}

// inTx runs fn atomically. Inside a carried transaction it runs under a savepoint, so a failure
// undoes only fn's statements and leaves the outer transaction usable.
func inTx(ctx context.Context, db *sql.DB, fn func(q querier) error) error {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		if _, err := tx.ExecContext(ctx, `SAVEPOINT nested`); err != nil {
			return fmt.Errorf("error creating savepoint: %w", err)
		}
		if err := fn(tx); err != nil {
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT nested`); rbErr != nil {
				return errors.Join(err, fmt.Errorf("error rolling back to savepoint: %w", rbErr))
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT nested`); err != nil {
			return fmt.Errorf("error releasing savepoint: %w", err)
		}
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}
