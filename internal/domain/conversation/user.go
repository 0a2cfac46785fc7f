package conversation

import (
	"context"
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("conversation user not found")

// User is the bot-side identity of an end user.
type User struct {
	ID          int64
	RecipientID string // opaque transport identifier, stable per end user
	State       string // encoded State, see Decode
	CreatedAt   time.Time
}

// Repository persists conversation users.
type Repository interface {
	// Create inserts a user in the idle state, or returns the existing one for the recipient.
	Create(ctx context.Context, recipientID string) (*User, error)
	GetByRecipient(ctx context.Context, recipientID string) (*User, error)
	// Recreate deletes the user and inserts a fresh idle one in a single step.
	Recreate(ctx context.Context, recipientID string) (*User, error)
	// Update runs fn with the user locked against concurrent updates for the same recipient
	// and persists u.State when fn returns nil. Repository calls made inside fn must use the
	// context fn receives so they share the lock holder's storage session.
	Update(ctx context.Context, recipientID string, fn func(ctx context.Context, u *User) error) error
}
