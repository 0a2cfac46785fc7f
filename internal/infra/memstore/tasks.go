package memstore

import (
	"context"
	"time"

	"employee_task_bot/internal/domain/employee"
	"employee_task_bot/internal/domain/task"
)

type taskRepo struct {
	s *Store
}

func (r *taskRepo) GetByID(_ context.Context, id int64) (*task.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, task.ErrNotFound
	}
	return copyTask(t), nil
}

func (r *taskRepo) ListDue(_ context.Context, now time.Time) ([]*task.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*task.Task
	for _, id := range sortedKeys(r.s.tasks) {
		t := r.s.tasks[id]
		if !t.Sent && (!t.StartDate.Valid || t.StartDate.Time.Before(now)) {
			out = append(out, copyTask(t))
		}
	}
	return out, nil
}

func (r *taskRepo) MarkSent(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return false, task.ErrNotFound
	}
	if t.Sent {
		return false, nil
	}
	t.Sent = true
	return true, nil
}

func (r *taskRepo) ListRecipients(_ context.Context, taskID int64) ([]*employee.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[taskID]
	if !ok {
		return nil, task.ErrNotFound
	}
	var out []*employee.Employee
	for _, id := range sortedKeys(r.s.employees) {
		e := r.s.employees[id]
		if intersects([]int64{e.ID}, t.EmployeeIDs) || intersects(e.DepartmentIDs, t.DepartmentIDs) {
			out = append(out, copyEmployee(e))
		}
	}
	return out, nil
}

func (r *taskRepo) ListForEmployee(_ context.Context, employeeID int64, accepted bool) ([]*task.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[int64]bool)
	var out []*task.Task
	for _, id := range sortedKeys(r.s.assignments) {
		a := r.s.assignments[id]
		if a.EmployeeID != employeeID || a.Finished || a.Accepted != accepted || seen[a.TaskID] {
			continue
		}
		t, ok := r.s.tasks[a.TaskID]
		if !ok {
			continue
		}
		seen[a.TaskID] = true
		out = append(out, copyTask(t))
	}
	return out, nil
}

type assignmentRepo struct {
	s *Store
}

// open must be called with mu held.
func (r *assignmentRepo) open(taskID, employeeID int64) *task.Assignment {
	for _, a := range r.s.assignments {
		if a.TaskID == taskID && a.EmployeeID == employeeID && !a.Finished {
			return a
		}
	}
	return nil
}

// insert must be called with mu held.
func (r *assignmentRepo) insert(taskID, employeeID int64) *task.Assignment {
	a := &task.Assignment{ID: r.s.id(), TaskID: taskID, EmployeeID: employeeID, CreatedAt: r.s.now()}
	r.s.assignments[a.ID] = a
	return a
}

func (r *assignmentRepo) CreateIfAbsent(_ context.Context, taskID, employeeID int64) (*task.Assignment, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a := r.open(taskID, employeeID); a != nil {
		out := *a
		return &out, false, nil
	}
	out := *r.insert(taskID, employeeID)
	return &out, true, nil
}

func (r *assignmentRepo) GetOpen(_ context.Context, taskID, employeeID int64) (*task.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.open(taskID, employeeID)
	if a == nil {
		return nil, task.ErrAssignmentNotFound
	}
	out := *a
	return &out, nil
}

func (r *assignmentRepo) GetByID(_ context.Context, id int64) (*task.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assignments[id]
	if !ok {
		return nil, task.ErrAssignmentNotFound
	}
	out := *a
	return &out, nil
}

func (r *assignmentRepo) Accept(_ context.Context, taskID, employeeID int64) (*task.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tasks[taskID]; !ok {
		return nil, task.ErrNotFound
	}
	a := r.open(taskID, employeeID)
	if a == nil {
		a = r.insert(taskID, employeeID)
	}
	a.Accepted = true
	out := *a
	return &out, nil
}

func (r *assignmentRepo) Finish(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assignments[id]
	if !ok {
		return task.ErrAssignmentNotFound
	}
	a.Finished = true
	return nil
}

func (r *assignmentRepo) Reopen(_ context.Context, taskID, employeeID int64) (*task.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.assignments {
		if a.TaskID == taskID && a.EmployeeID == employeeID {
			a.Finished = true
		}
	}
	out := *r.insert(taskID, employeeID)
	return &out, nil
}

func (r *assignmentRepo) ListIgnored(_ context.Context, startedBefore time.Time) ([]*task.Assignment, error) {
	return r.list(func(a *task.Assignment, t *task.Task) bool {
		return !a.Accepted && !a.Finished && !t.StartedAt().After(startedBefore)
	}), nil
}

func (r *assignmentRepo) ListExpired(_ context.Context, now time.Time) ([]*task.Assignment, error) {
	return r.list(func(a *task.Assignment, t *task.Task) bool {
		return !a.Finished && !a.DeadlineExpiredNotified && t.Deadline.Valid && t.Deadline.Time.Before(now)
	}), nil
}

func (r *assignmentRepo) list(keep func(*task.Assignment, *task.Task) bool) []*task.Assignment {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*task.Assignment
	for _, id := range sortedKeys(r.s.assignments) {
		a := r.s.assignments[id]
		t, ok := r.s.tasks[a.TaskID]
		if !ok || !keep(a, t) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out
}

func (r *assignmentRepo) MarkDeadlineNotified(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assignments[id]
	if !ok {
		return false, task.ErrAssignmentNotFound
	}
	if a.DeadlineExpiredNotified {
		return false, nil
	}
	a.DeadlineExpiredNotified = true
	return true, nil
}

type reportRepo struct {
	s *Store
}

func (r *reportRepo) Create(_ context.Context, rep *task.Report) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.assignments[rep.AssignmentID]; !ok {
		return task.ErrAssignmentNotFound
	}
	stored := copyReport(rep)
	stored.ID = r.s.id()
	stored.Checked = false
	stored.Accepted = false
	stored.CreatedAt = r.s.now()
	r.s.reports[stored.ID] = stored
	rep.ID = stored.ID
	rep.CreatedAt = stored.CreatedAt
	return nil
}

func (r *reportRepo) GetByID(_ context.Context, id int64) (*task.Report, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rep, ok := r.s.reports[id]
	if !ok {
		return nil, task.ErrReportNotFound
	}
	return copyReport(rep), nil
}

func (r *reportRepo) ListPending(_ context.Context) ([]*task.Report, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*task.Report
	for _, id := range sortedKeys(r.s.reports) {
		if rep := r.s.reports[id]; !rep.Checked {
			out = append(out, copyReport(rep))
		}
	}
	return out, nil
}

func (r *reportRepo) SetVerdict(_ context.Context, id int64, accepted bool, answerText string) (*task.Report, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rep, ok := r.s.reports[id]
	if !ok {
		return nil, task.ErrReportNotFound
	}
	if rep.Checked {
		return nil, task.ErrReportAlreadyChecked
	}
	rep.Checked = true
	rep.Accepted = accepted
	rep.AnswerText = answerText
	return copyReport(rep), nil
}

type delayedRepo struct {
	s *Store
}

func (r *delayedRepo) Create(_ context.Context, taskID, employeeID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.delayed {
		if d.TaskID == taskID && d.EmployeeID == employeeID {
			return nil
		}
	}
	d := &task.DelayedTask{ID: r.s.id(), TaskID: taskID, EmployeeID: employeeID, CreatedAt: r.s.now()}
	r.s.delayed[d.ID] = d
	return nil
}

func (r *delayedRepo) List(_ context.Context) ([]*task.DelayedTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*task.DelayedTask, 0, len(r.s.delayed))
	for _, id := range sortedKeys(r.s.delayed) {
		d := *r.s.delayed[id]
		out = append(out, &d)
	}
	return out, nil
}

func (r *delayedRepo) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.delayed[id]; !ok {
		return false, nil
	}
	delete(r.s.delayed, id)
	return true, nil
}
