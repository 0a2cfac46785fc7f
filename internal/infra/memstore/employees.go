package memstore

import (
	"context"
	"time"

	"employee_task_bot/internal/domain/employee"
)

type employeeRepo struct {
	s *Store
}

func (r *employeeRepo) Save(_ context.Context, e *employee.Employee) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range sortedKeys(r.s.employees) {
		stored := r.s.employees[id]
		if e.RecipientID == "" || stored.RecipientID != e.RecipientID {
			continue
		}
		stored.FullName = e.FullName
		stored.Phone = e.Phone
		stored.DepartmentIDs = append([]int64(nil), e.DepartmentIDs...)
		e.ID = stored.ID
		e.Confirmed = stored.Confirmed
		e.ManagedDepartmentIDs = append([]int64(nil), stored.ManagedDepartmentIDs...)
		e.CreatedAt = stored.CreatedAt
		return nil
	}
	stored := copyEmployee(e)
	stored.ID = r.s.id()
	stored.Confirmed = false
	stored.CreatedAt = r.s.now()
	r.s.employees[stored.ID] = stored
	e.ID = stored.ID
	e.Confirmed = false
	e.CreatedAt = stored.CreatedAt
	return nil
}

func (r *employeeRepo) GetByID(_ context.Context, id int64) (*employee.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[id]
	if !ok {
		return nil, employee.ErrNotFound
	}
	return copyEmployee(e), nil
}

func (r *employeeRepo) GetByRecipient(_ context.Context, recipientID string) (*employee.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range sortedKeys(r.s.employees) {
		if e := r.s.employees[id]; recipientID != "" && e.RecipientID == recipientID {
			return copyEmployee(e), nil
		}
	}
	return nil, employee.ErrNotFound
}

func (r *employeeRepo) ListAll(_ context.Context) ([]*employee.Employee, error) {
	return r.list(func(*employee.Employee) bool { return true }), nil
}

func (r *employeeRepo) ListPending(_ context.Context) ([]*employee.Employee, error) {
	return r.list(func(e *employee.Employee) bool { return !e.Confirmed }), nil
}

func (r *employeeRepo) list(keep func(*employee.Employee) bool) []*employee.Employee {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*employee.Employee
	for _, id := range sortedKeys(r.s.employees) {
		if e := r.s.employees[id]; keep(e) {
			out = append(out, copyEmployee(e))
		}
	}
	return out
}

func (r *employeeRepo) SetConfirmed(_ context.Context, id int64, confirmed bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[id]
	if !ok {
		return false, employee.ErrNotFound
	}
	previous := e.Confirmed
	e.Confirmed = confirmed
	return previous, nil
}

func (r *employeeRepo) ListManagersOf(_ context.Context, employeeID int64) ([]*employee.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[employeeID]
	if !ok {
		return nil, employee.ErrNotFound
	}
	var out []*employee.Employee
	for _, id := range sortedKeys(r.s.employees) {
		if m := r.s.employees[id]; intersects(m.ManagedDepartmentIDs, e.DepartmentIDs) {
			out = append(out, copyEmployee(m))
		}
	}
	return out, nil
}

type departmentRepo struct {
	s *Store
}

func (r *departmentRepo) ListAll(_ context.Context) ([]*employee.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*employee.Department, 0, len(r.s.departments))
	for _, id := range sortedKeys(r.s.departments) {
		d := *r.s.departments[id]
		out = append(out, &d)
	}
	return out, nil
}

type dayOffRepo struct {
	s *Store
}

func (r *dayOffRepo) Create(_ context.Context, d *employee.DayOff) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *d
	stored.ID = r.s.id()
	stored.Confirmed = false
	stored.Checked = false
	r.s.dayOffs[stored.ID] = &stored
	d.ID = stored.ID
	return nil
}

func (r *dayOffRepo) GetByID(_ context.Context, id int64) (*employee.DayOff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.dayOffs[id]
	if !ok {
		return nil, employee.ErrDayOffNotFound
	}
	out := *d
	return &out, nil
}

func (r *dayOffRepo) ListUnchecked(_ context.Context) ([]*employee.DayOff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*employee.DayOff
	for _, id := range sortedKeys(r.s.dayOffs) {
		if d := *r.s.dayOffs[id]; !d.Checked {
			out = append(out, &d)
		}
	}
	return out, nil
}

func (r *dayOffRepo) Decide(_ context.Context, id int64, confirmed bool) (*employee.DayOff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.dayOffs[id]
	if !ok {
		return nil, employee.ErrDayOffNotFound
	}
	if d.Checked {
		return nil, employee.ErrDayOffAlreadyChecked
	}
	d.Checked = true
	d.Confirmed = confirmed
	out := *d
	return &out, nil
}

func (r *dayOffRepo) IsOnDayOff(_ context.Context, employeeID int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.dayOffs {
		if d.EmployeeID == employeeID && d.Covers(at) {
			return true, nil
		}
	}
	return false, nil
}
