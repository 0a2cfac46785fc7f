package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"employee_task_bot/internal/domain/employee"
	"employee_task_bot/internal/domain/task"

	"github.com/lib/pq"
)

const taskColumns = `t.id, t.name, t.text, t.file_url, t.file_name, t.file_size, t.deadline, t.start_date, t.sent, t.created_at,
       ARRAY(SELECT department_id FROM task_departments WHERE task_id = t.id ORDER BY department_id),
       ARRAY(SELECT employee_id FROM task_employees WHERE task_id = t.id ORDER BY employee_id)`

func scanTask(s rowScanner) (*task.Task, error) {
	t := &task.Task{}
	var fileURL, fileName sql.NullString
	var fileSize sql.NullInt64
	err := s.Scan(&t.ID, &t.Name, &t.Text, &fileURL, &fileName, &fileSize, &t.Deadline, &t.StartDate, &t.Sent, &t.CreatedAt,
		pq.Array(&t.DepartmentIDs), pq.Array(&t.EmployeeIDs))
	if err != nil {
		return nil, err
	}
	if fileURL.Valid && fileURL.String != "" {
		t.File = &task.File{URL: fileURL.String, Name: fileName.String, Size: fileSize.Int64}
	}
	return t, nil
}

func (r *PostgresTaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*task.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

type PostgresTaskRepository struct {
	db *sql.DB
}

func NewPostgresTaskRepository(db *sql.DB) *PostgresTaskRepository {
	return &PostgresTaskRepository{db: db}
}

func (r *PostgresTaskRepository) GetByID(ctx context.Context, id int64) (*task.Task, error) {
	t, err := scanTask(conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrNotFound
		}
		return nil, fmt.Errorf("error getting task by ID: %w", err)
	}
	return t, nil
}

func (r *PostgresTaskRepository) ListDue(ctx context.Context, now time.Time) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t
               WHERE NOT t.sent AND (t.start_date IS NULL OR t.start_date < $1)
               ORDER BY t.id`
	return r.queryTasks(ctx, query, now)
}

func (r *PostgresTaskRepository) MarkSent(ctx context.Context, id int64) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE tasks SET sent = TRUE WHERE id = $1 AND NOT sent`, id)
	if err != nil {
		return false, fmt.Errorf("error marking task sent: %w", err)
	}
	return claimed(res)
}

func (r *PostgresTaskRepository) ListRecipients(ctx context.Context, taskID int64) ([]*employee.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees e
               WHERE e.id IN (
                   SELECT employee_id FROM task_employees WHERE task_id = $1
                   UNION
                   SELECT ed.employee_id FROM employee_departments ed
                   JOIN task_departments td ON td.department_id = ed.department_id
                   WHERE td.task_id = $1)
               ORDER BY e.id`
	return queryEmployees(ctx, conn(ctx, r.db), query, taskID)
}

func (r *PostgresTaskRepository) ListForEmployee(ctx context.Context, employeeID int64, accepted bool) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t
               WHERE EXISTS (
                   SELECT 1 FROM task_assignments a
                   WHERE a.task_id = t.id AND a.employee_id = $1 AND NOT a.finished AND a.accepted = $2)
               ORDER BY t.id`
	return r.queryTasks(ctx, query, employeeID, accepted)
}

const assignmentColumns = `a.id, a.task_id, a.employee_id, a.accepted, a.finished, a.deadline_expired_notif, a.created_at`

func scanAssignment(s rowScanner) (*task.Assignment, error) {
	a := &task.Assignment{}
	if err := s.Scan(&a.ID, &a.TaskID, &a.EmployeeID, &a.Accepted, &a.Finished, &a.DeadlineExpiredNotified, &a.CreatedAt); err != nil {
		return nil, err
	}
	return a, nil
}

type PostgresAssignmentRepository struct {
	db *sql.DB
}

func NewPostgresAssignmentRepository(db *sql.DB) *PostgresAssignmentRepository {
	return &PostgresAssignmentRepository{db: db}
}

func (r *PostgresAssignmentRepository) CreateIfAbsent(ctx context.Context, taskID, employeeID int64) (*task.Assignment, bool, error) {
	query := `INSERT INTO task_assignments AS a (task_id, employee_id) VALUES ($1, $2)
               ON CONFLICT (task_id, employee_id) WHERE NOT finished DO NOTHING
               RETURNING ` + assignmentColumns
	a, err := scanAssignment(conn(ctx, r.db).QueryRowContext(ctx, query, taskID, employeeID))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("error creating assignment: %w", err)
	}
	a, err = r.GetOpen(ctx, taskID, employeeID)
	if err != nil {
		return nil, false, err
	}
	return a, false, nil
}

func (r *PostgresAssignmentRepository) GetOpen(ctx context.Context, taskID, employeeID int64) (*task.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM task_assignments a
               WHERE a.task_id = $1 AND a.employee_id = $2 AND NOT a.finished`
	a, err := scanAssignment(conn(ctx, r.db).QueryRowContext(ctx, query, taskID, employeeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("error getting open assignment: %w", err)
	}
	return a, nil
}

func (r *PostgresAssignmentRepository) GetByID(ctx context.Context, id int64) (*task.Assignment, error) {
	a, err := scanAssignment(conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM task_assignments a WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("error getting assignment by ID: %w", err)
	}
	return a, nil
}

func (r *PostgresAssignmentRepository) Accept(ctx context.Context, taskID, employeeID int64) (*task.Assignment, error) {
	open, _, err := r.CreateIfAbsent(ctx, taskID, employeeID)
	if err != nil {
		return nil, err
	}
	query := `UPDATE task_assignments a SET accepted = TRUE WHERE a.id = $1 RETURNING ` + assignmentColumns
	a, err := scanAssignment(conn(ctx, r.db).QueryRowContext(ctx, query, open.ID))
	if err != nil {
		return nil, fmt.Errorf("error accepting assignment: %w", err)
	}
	return a, nil
}

func (r *PostgresAssignmentRepository) Finish(ctx context.Context, id int64) error {
	res, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE task_assignments SET finished = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error finishing assignment: %w", err)
	}
	ok, err := claimed(res)
	if err != nil {
		return fmt.Errorf("error finishing assignment: %w", err)
	}
	if !ok {
		return task.ErrAssignmentNotFound
	}
	return nil
}

func (r *PostgresAssignmentRepository) Reopen(ctx context.Context, taskID, employeeID int64) (*task.Assignment, error) {
	var a *task.Assignment
	err := inTx(ctx, r.db, func(q querier) error {
		_, err := q.ExecContext(ctx,
			`UPDATE task_assignments SET finished = TRUE WHERE task_id = $1 AND employee_id = $2`, taskID, employeeID)
		if err != nil {
			return fmt.Errorf("error finishing assignments: %w", err)
		}
		query := `INSERT INTO task_assignments AS a (task_id, employee_id) VALUES ($1, $2) RETURNING ` + assignmentColumns
		a, err = scanAssignment(q.QueryRowContext(ctx, query, taskID, employeeID))
		if err != nil {
			return fmt.Errorf("error creating assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *PostgresAssignmentRepository) ListIgnored(ctx context.Context, startedBefore time.Time) ([]*task.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM task_assignments a
               JOIN tasks t ON t.id = a.task_id
               WHERE NOT a.accepted AND NOT a.finished AND COALESCE(t.start_date, t.created_at) <= $1
               ORDER BY a.id`
	return r.query(ctx, query, startedBefore)
}

func (r *PostgresAssignmentRepository) ListExpired(ctx context.Context, now time.Time) ([]*task.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM task_assignments a
               JOIN tasks t ON t.id = a.task_id
               WHERE t.deadline < $1 AND NOT a.finished AND NOT a.deadline_expired_notif
               ORDER BY a.id`
	return r.query(ctx, query, now)
}

func (r *PostgresAssignmentRepository) query(ctx context.Context, query string, args ...any) ([]*task.Assignment, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing assignments: %w", err)
	}
	defer rows.Close()

	assignments := make([]*task.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}
	return assignments, nil
}

func (r *PostgresAssignmentRepository) MarkDeadlineNotified(ctx context.Context, id int64) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE task_assignments SET deadline_expired_notif = TRUE WHERE id = $1 AND NOT deadline_expired_notif`, id)
	if err != nil {
		return false, fmt.Errorf("error marking assignment notified: %w", err)
	}
	return claimed(res)
}
