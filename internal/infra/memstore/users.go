package memstore

import (
	"context"

	"employee_task_bot/internal/domain/conversation"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) Create(_ context.Context, recipientID string) (*conversation.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[recipientID]; ok {
		out := *u
		return &out, nil
	}
	return r.insert(recipientID), nil
}

// insert must be called with mu held.
func (r *userRepo) insert(recipientID string) *conversation.User {
	u := &conversation.User{
		ID:          r.s.id(),
		RecipientID: recipientID,
		State:       string(conversation.ModeIdle),
		CreatedAt:   r.s.now(),
	}
	r.s.users[recipientID] = u
	out := *u
	return &out
}

func (r *userRepo) GetByRecipient(_ context.Context, recipientID string) (*conversation.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[recipientID]
	if !ok {
		return nil, conversation.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *userRepo) Recreate(_ context.Context, recipientID string) (*conversation.User, error) {
	l := r.s.recipientLock(recipientID)
	l.Lock()
	defer l.Unlock()

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.users, recipientID)
	return r.insert(recipientID), nil
}

func (r *userRepo) Update(ctx context.Context, recipientID string, fn func(ctx context.Context, u *conversation.User) error) error {
	l := r.s.recipientLock(recipientID)
	l.Lock()
	defer l.Unlock()

	r.s.mu.Lock()
	stored, ok := r.s.users[recipientID]
	var u conversation.User
	if ok {
		u = *stored
	}
	r.s.mu.Unlock()
	if !ok {
		return conversation.ErrUserNotFound
	}

	if err := fn(ctx, &u); err != nil {
		return err
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if stored, ok := r.s.users[recipientID]; ok {
		stored.State = u.State
	}
	return nil
}
