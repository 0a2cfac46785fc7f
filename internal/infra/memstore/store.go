// Package memstore keeps all bot data in process memory. It backs the "memory" storage
// driver and the application tests.
package memstore

import (
	"sort"
	"sync"
	"time"

	"employee_task_bot/internal/domain/conversation"
	"employee_task_bot/internal/domain/employee"
	"employee_task_bot/internal/domain/task"
)

// Store holds every table. Repositories are views over it.
type Store struct {
	mu     sync.Mutex
	nextID int64
	now    func() time.Time

	locks       map[string]*sync.Mutex
	users       map[string]*conversation.User
	employees   map[int64]*employee.Employee
	departments map[int64]*employee.Department
	dayOffs     map[int64]*employee.DayOff
	tasks       map[int64]*task.Task
	assignments map[int64]*task.Assignment
	reports     map[int64]*task.Report
	delayed     map[int64]*task.DelayedTask
}

func New() *Store {
	return &Store{
		now:         time.Now,
		locks:       make(map[string]*sync.Mutex),
		users:       make(map[string]*conversation.User),
		employees:   make(map[int64]*employee.Employee),
		departments: make(map[int64]*employee.Department),
		dayOffs:     make(map[int64]*employee.DayOff),
		tasks:       make(map[int64]*task.Task),
		assignments: make(map[int64]*task.Assignment),
		reports:     make(map[int64]*task.Report),
		delayed:     make(map[int64]*task.DelayedTask),
	}
}

func (s *Store) Users() conversation.Repository             { return &userRepo{s} }
func (s *Store) Employees() employee.Repository             { return &employeeRepo{s} }
func (s *Store) Departments() employee.DepartmentRepository { return &departmentRepo{s} }
func (s *Store) DayOffs() employee.DayOffRepository         { return &dayOffRepo{s} }
func (s *Store) Tasks() task.Repository                     { return &taskRepo{s} }
func (s *Store) Assignments() task.AssignmentRepository     { return &assignmentRepo{s} }
func (s *Store) Reports() task.ReportRepository             { return &reportRepo{s} }
func (s *Store) DelayedTasks() task.DelayedRepository       { return &delayedRepo{s} }

// id must be called with mu held.
func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// recipientLock returns the mutex serializing updates for one recipient.
func (s *Store) recipientLock(recipientID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[recipientID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[recipientID] = l
	}
	return l
}

// AddDepartment inserts a department; departments are maintained outside the bot.
func (s *Store) AddDepartment(title string) *employee.Department {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &employee.Department{ID: s.id(), Title: title}
	s.departments[d.ID] = d
	return &employee.Department{ID: d.ID, Title: d.Title}
}

// AddEmployee inserts an employee as the admin panel would, e.g. a manager without a conversation.
func (s *Store) AddEmployee(e *employee.Employee) *employee.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := copyEmployee(e)
	stored.ID = s.id()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.employees[stored.ID] = stored
	e.ID = stored.ID
	return copyEmployee(stored)
}

// AddTask inserts a task as the admin panel would.
func (s *Store) AddTask(t *task.Task) *task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := copyTask(t)
	stored.ID = s.id()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.tasks[stored.ID] = stored
	t.ID = stored.ID
	return copyTask(stored)
}

// AddDayOff inserts a day-off with its verdict already set.
func (s *Store) AddDayOff(d *employee.DayOff) *employee.DayOff {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *d
	stored.ID = s.id()
	s.dayOffs[stored.ID] = &stored
	d.ID = stored.ID
	out := stored
	return &out
}

// SetUserState overwrites the raw persisted state of a user.
func (s *Store) SetUserState(recipientID, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[recipientID]; ok {
		u.State = raw
	}
}

func copyEmployee(e *employee.Employee) *employee.Employee {
	out := *e
	out.DepartmentIDs = append([]int64(nil), e.DepartmentIDs...)
	out.ManagedDepartmentIDs = append([]int64(nil), e.ManagedDepartmentIDs...)
	return &out
}

func copyTask(t *task.Task) *task.Task {
	out := *t
	out.DepartmentIDs = append([]int64(nil), t.DepartmentIDs...)
	out.EmployeeIDs = append([]int64(nil), t.EmployeeIDs...)
	if t.File != nil {
		f := *t.File
		out.File = &f
	}
	return &out
}

func copyReport(r *task.Report) *task.Report {
	out := *r
	if r.AnswerFile != nil {
		f := *r.AnswerFile
		out.AnswerFile = &f
	}
	return &out
}

func intersects(a, b []int64) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
