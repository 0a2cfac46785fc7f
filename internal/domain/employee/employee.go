package employee

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("employee not found")
	ErrDepartmentNotFound = errors.New("department not found")
	ErrDayOffNotFound     = errors.New("day-off request not found")

	ErrDayOffAlreadyChecked = errors.New("day-off request has already been checked")
)

// Employee represents a member of staff who may be linked to a bot conversation.
type Employee struct {
	ID                   int64
	FullName             string
	Phone                string
	RecipientID          string // empty when the employee has no linked conversation
	Confirmed            bool
	DepartmentIDs        []int64
	ManagedDepartmentIDs []int64
	CreatedAt            time.Time
}

// Linked reports whether messages can be delivered to the employee.
func (e *Employee) Linked() bool {
	return e != nil && e.RecipientID != ""
}

type Department struct {
	ID    int64
	Title string
}

// DayOff is a requested absence. Dates carry no time of day.
type DayOff struct {
	ID         int64
	EmployeeID int64
	StartDate  time.Time
	EndDate    time.Time
	Confirmed  bool
	Checked    bool
}

// Covers reports whether a confirmed day-off spans the instant strictly.
func (d *DayOff) Covers(at time.Time) bool {
	return d.Confirmed && d.StartDate.Before(at) && d.EndDate.After(at)
}
