package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"employee_task_bot/internal/domain/conversation"
)

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, recipientID string) (*conversation.User, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `INSERT INTO conversation_users (recipient_id) VALUES ($1)
               ON CONFLICT (recipient_id) DO UPDATE SET recipient_id = EXCLUDED.recipient_id
               RETURNING id, recipient_id, state, created_at`
	u := &conversation.User{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, recipientID).Scan(&u.ID, &u.RecipientID, &u.State, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error creating conversation user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByRecipient(ctx context.Context, recipientID string) (*conversation.User, error) {
	query := `SELECT id, recipient_id, state, created_at FROM conversation_users WHERE recipient_id = $1`
	u := &conversation.User{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, recipientID).Scan(&u.ID, &u.RecipientID, &u.State, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, conversation.ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting conversation user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) Recreate(ctx context.Context, recipientID string) (*conversation.User, error) {
	u := &conversation.User{}
	err := inTx(ctx, r.db, func(q querier) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM conversation_users WHERE recipient_id = $1`, recipientID); err != nil {
			return fmt.Errorf("error deleting conversation user: %w", err)
		}
		err := q.QueryRowContext(ctx,
			`INSERT INTO conversation_users (recipient_id) VALUES ($1) RETURNING id, recipient_id, state, created_at`,
			recipientID).Scan(&u.ID, &u.RecipientID, &u.State, &u.CreatedAt)
		if err != nil {
			return fmt.Errorf("error inserting conversation user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Update holds a row lock on the user for the duration of fn. fn receives a context carrying the
// locking transaction, so repositories called with it run on the same connection.
func (r *PostgresUserRepository) Update(ctx context.Context, recipientID string, fn func(ctx context.Context, u *conversation.User) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	u := &conversation.User{}
	err = tx.QueryRowContext(ctx,
		`SELECT id, recipient_id, state, created_at FROM conversation_users WHERE recipient_id = $1 FOR UPDATE`,
		recipientID).Scan(&u.ID, &u.RecipientID, &u.State, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return conversation.ErrUserNotFound
		}
		return fmt.Errorf("error locking conversation user: %w", err)
	}

	if err := fn(withTx(ctx, tx), u); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE conversation_users SET state = $1 WHERE id = $2`, u.State, u.ID); err != nil {
		return fmt.Errorf("error updating conversation state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing conversation state: %w", err)
	}
	return nil
}
