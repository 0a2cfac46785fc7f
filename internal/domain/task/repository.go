package task

import (
	"context"
	"time"

	"employee_task_bot/internal/domain/employee"
)

// Repository defines read access to tasks and the dispatch claim.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Task, error)
	// ListDue returns unsent tasks whose start date is null or before now.
	ListDue(ctx context.Context, now time.Time) ([]*Task, error)
	// MarkSent flips sent from false to true and reports whether this call did it.
	MarkSent(ctx context.Context, id int64) (bool, error)
	// ListRecipients returns the deduplicated union of targeted employees and members of targeted departments.
	ListRecipients(ctx context.Context, taskID int64) ([]*employee.Employee, error)
	// ListForEmployee returns tasks with an unfinished assignment of the employee in the given acceptance state.
	ListForEmployee(ctx context.Context, employeeID int64, accepted bool) ([]*Task, error)
}

type AssignmentRepository interface {
	// CreateIfAbsent creates the open assignment unless one exists; created reports which happened.
	CreateIfAbsent(ctx context.Context, taskID, employeeID int64) (a *Assignment, created bool, err error)
	GetOpen(ctx context.Context, taskID, employeeID int64) (*Assignment, error)
	GetByID(ctx context.Context, id int64) (*Assignment, error)
	// Accept marks the open assignment accepted, creating it first if needed.
	Accept(ctx context.Context, taskID, employeeID int64) (*Assignment, error)
	// Finish closes the assignment.
	Finish(ctx context.Context, id int64) error
	// Reopen finishes every assignment of the pair and creates a fresh open one.
	Reopen(ctx context.Context, taskID, employeeID int64) (*Assignment, error)
	// ListIgnored returns open, unaccepted assignments whose task started at or before the instant.
	ListIgnored(ctx context.Context, startedBefore time.Time) ([]*Assignment, error)
	// ListExpired returns open assignments past their task deadline and not yet escalated.
	ListExpired(ctx context.Context, now time.Time) ([]*Assignment, error)
	// MarkDeadlineNotified flips the escalation flag and reports whether this call did it.
	MarkDeadlineNotified(ctx context.Context, id int64) (bool, error)
}

type ReportRepository interface {
	Create(ctx context.Context, r *Report) error
	GetByID(ctx context.Context, id int64) (*Report, error)
	ListPending(ctx context.Context) ([]*Report, error)
	// SetVerdict marks an unchecked report checked with the verdict and the reviewer's answer.
	// It returns ErrReportAlreadyChecked when the report already has a verdict.
	SetVerdict(ctx context.Context, id int64, accepted bool, answerText string) (*Report, error)
}

type DelayedRepository interface {
	// Create adds a marker for the pair unless one exists.
	Create(ctx context.Context, taskID, employeeID int64) error
	List(ctx context.Context) ([]*DelayedTask, error)
	// Delete removes the marker and reports whether this call removed it.
	Delete(ctx context.Context, id int64) (bool, error)
}
