package task

import (
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("task not found")
	ErrAssignmentNotFound = errors.New("task assignment not found")
	ErrReportNotFound     = errors.New("task report not found")
	// ErrReportAlreadyChecked is returned when a verdict targets a report that already has one.
	ErrReportAlreadyChecked = errors.New("report has already been checked")
)

// File is an attachment reachable by URL.
type File struct {
	URL  string
	Name string
	Size int64
}

// Task is a piece of work targeted at employees and departments.
type Task struct {
	ID            int64
	Name          string
	Text          string
	File          *File
	Deadline      sql.NullTime
	StartDate     sql.NullTime // null means "send immediately"
	Sent          bool
	DepartmentIDs []int64
	EmployeeIDs   []int64
	CreatedAt     time.Time
}

// StartedAt is the instant the task became due for dispatch.
func (t *Task) StartedAt() time.Time {
	if t.StartDate.Valid {
		return t.StartDate.Time
	}
	return t.CreatedAt
}

// Assignment joins a task with one employee.
// At most one unfinished assignment exists per (task, employee).
type Assignment struct {
	ID                      int64
	TaskID                  int64
	EmployeeID              int64
	Accepted                bool
	Finished                bool
	DeadlineExpiredNotified bool
	CreatedAt               time.Time
}

// ReportStatus derives the review state of a report.
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportApproved ReportStatus = "approved"
	ReportReturned ReportStatus = "returned-for-correction"
)

type Report struct {
	ID           int64
	AssignmentID int64
	Text         string
	PhotoRef     string
	Checked      bool
	Accepted     bool
	AnswerText   string
	AnswerFile   *File
	CreatedAt    time.Time
}

func (r *Report) Status() ReportStatus {
	switch {
	case !r.Checked:
		return ReportPending
	case r.Accepted:
		return ReportApproved
	default:
		return ReportReturned
	}
}

// DelayedTask marks a delivery suppressed by a day-off, retried later.
type DelayedTask struct {
	ID         int64
	TaskID     int64
	EmployeeID int64
	CreatedAt  time.Time
}
