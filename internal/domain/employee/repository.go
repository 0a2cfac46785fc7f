package employee

import (
	"context"
	"time"
)

// Repository defines the operations for persisting and retrieving Employee entities.
type Repository interface {
	// Save creates the employee for e.RecipientID or updates the existing one, replacing its departments.
	// Confirmation is never changed by Save.
	Save(ctx context.Context, e *Employee) error
	GetByID(ctx context.Context, id int64) (*Employee, error)
	GetByRecipient(ctx context.Context, recipientID string) (*Employee, error)
	ListAll(ctx context.Context) ([]*Employee, error)
	ListPending(ctx context.Context) ([]*Employee, error)
	// SetConfirmed stores the new value and returns the value it replaced.
	SetConfirmed(ctx context.Context, id int64, confirmed bool) (previous bool, err error)
	// ListManagersOf returns the distinct managers of any department the employee belongs to.
	ListManagersOf(ctx context.Context, employeeID int64) ([]*Employee, error)
}

type DepartmentRepository interface {
	ListAll(ctx context.Context) ([]*Department, error)
}

type DayOffRepository interface {
	Create(ctx context.Context, d *DayOff) error
	GetByID(ctx context.Context, id int64) (*DayOff, error)
	ListUnchecked(ctx context.Context) ([]*DayOff, error)
	// Decide marks an unchecked request checked with the given verdict.
	// It returns ErrDayOffAlreadyChecked when the request was decided before.
	Decide(ctx context.Context, id int64, confirmed bool) (*DayOff, error)
	// IsOnDayOff reports whether a confirmed day-off covers the instant.
	IsOnDayOff(ctx context.Context, employeeID int64, at time.Time) (bool, error)
}
