package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"employee_task_bot/internal/domain/employee"

	"github.com/lib/pq"
)

const employeeColumns = `e.id, e.full_name, e.phone, COALESCE(e.recipient_id, ''), e.confirmed, e.created_at,
       ARRAY(SELECT department_id FROM employee_departments WHERE employee_id = e.id ORDER BY department_id),
       ARRAY(SELECT department_id FROM department_managers WHERE employee_id = e.id ORDER BY department_id)`

func scanEmployee(s rowScanner) (*employee.Employee, error) {
	e := &employee.Employee{}
	err := s.Scan(&e.ID, &e.FullName, &e.Phone, &e.RecipientID, &e.Confirmed, &e.CreatedAt,
		pq.Array(&e.DepartmentIDs), pq.Array(&e.ManagedDepartmentIDs))
	if err != nil {
		return nil, err
	}
	return e, nil
}

func queryEmployees(ctx context.Context, q querier, query string, args ...any) ([]*employee.Employee, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing employees: %w", err)
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0)
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}
	return employees, nil
}

type PostgresEmployeeRepository struct {
	db *sql.DB
}

func NewPostgresEmployeeRepository(db *sql.DB) *PostgresEmployeeRepository {
	return &PostgresEmployeeRepository{db: db}
}

func (r *PostgresEmployeeRepository) Save(ctx context.Context, e *employee.Employee) error {
	return inTx(ctx, r.db, func(q querier) error {
		query := `INSERT INTO employees (full_name, phone, recipient_id) VALUES ($1, $2, $3)
               ON CONFLICT (recipient_id) DO UPDATE SET full_name = EXCLUDED.full_name, phone = EXCLUDED.phone
               RETURNING id, confirmed, created_at`
		err := q.QueryRowContext(ctx, query, e.FullName, e.Phone, nullString(e.RecipientID)).
			Scan(&e.ID, &e.Confirmed, &e.CreatedAt)
		if err != nil {
			return fmt.Errorf("error saving employee: %w", err)
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM employee_departments WHERE employee_id = $1`, e.ID); err != nil {
			return fmt.Errorf("error clearing employee departments: %w", err)
		}
		if len(e.DepartmentIDs) > 0 {
			_, err = q.ExecContext(ctx,
				`INSERT INTO employee_departments (employee_id, department_id)
              SELECT $1, d.id FROM departments d WHERE d.id = ANY($2::bigint[])
              ON CONFLICT DO NOTHING`,
				e.ID, pq.Array(e.DepartmentIDs))
			if err != nil {
				return fmt.Errorf("error linking employee departments: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresEmployeeRepository) GetByID(ctx context.Context, id int64) (*employee.Employee, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees e WHERE e.id = $1`, id)
	e, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, employee.ErrNotFound
		}
		return nil, fmt.Errorf("error getting employee by ID: %w", err)
	}
	return e, nil
}

func (r *PostgresEmployeeRepository) GetByRecipient(ctx context.Context, recipientID string) (*employee.Employee, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees e WHERE e.recipient_id = $1`, recipientID)
	e, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, employee.ErrNotFound
		}
		return nil, fmt.Errorf("error getting employee by recipient: %w", err)
	}
	return e, nil
}

func (r *PostgresEmployeeRepository) ListAll(ctx context.Context) ([]*employee.Employee, error) {
	return queryEmployees(ctx, conn(ctx, r.db), `SELECT `+employeeColumns+` FROM employees e ORDER BY e.id`)
}

func (r *PostgresEmployeeRepository) ListPending(ctx context.Context) ([]*employee.Employee, error) {
	return queryEmployees(ctx, conn(ctx, r.db), `SELECT `+employeeColumns+` FROM employees e WHERE NOT e.confirmed ORDER BY e.id`)
}

func (r *PostgresEmployeeRepository) SetConfirmed(ctx context.Context, id int64, confirmed bool) (bool, error) {
	var previous bool
	err := inTx(ctx, r.db, func(q querier) error {
		err := q.QueryRowContext(ctx, `SELECT confirmed FROM employees WHERE id = $1 FOR UPDATE`, id).Scan(&previous)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return employee.ErrNotFound
			}
			return fmt.Errorf("error locking employee: %w", err)
		}
		if _, err := q.ExecContext(ctx, `UPDATE employees SET confirmed = $2 WHERE id = $1`, id, confirmed); err != nil {
			return fmt.Errorf("error updating employee confirmation: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return previous, nil
}

func (r *PostgresEmployeeRepository) ListManagersOf(ctx context.Context, employeeID int64) ([]*employee.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees e
               WHERE e.id IN (
                   SELECT m.employee_id FROM department_managers m
                   JOIN employee_departments ed ON ed.department_id = m.department_id
                   WHERE ed.employee_id = $1)
               ORDER BY e.id`
	return queryEmployees(ctx, conn(ctx, r.db), query, employeeID)
}

type PostgresDepartmentRepository struct {
	db *sql.DB
}

func NewPostgresDepartmentRepository(db *sql.DB) *PostgresDepartmentRepository {
	return &PostgresDepartmentRepository{db: db}
}

func (r *PostgresDepartmentRepository) ListAll(ctx context.Context) ([]*employee.Department, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT id, title FROM departments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing departments: %w", err)
	}
	defer rows.Close()

	departments := make([]*employee.Department, 0)
	for rows.Next() {
		d := &employee.Department{}
		if err := rows.Scan(&d.ID, &d.Title); err != nil {
			return nil, fmt.Errorf("error scanning department: %w", err)
		}
		departments = append(departments, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating departments: %w", err)
	}
	return departments, nil
}

const dayOffColumns = `id, employee_id, start_date, end_date, confirmed, checked`

func scanDayOff(s rowScanner) (*employee.DayOff, error) {
	d := &employee.DayOff{}
	if err := s.Scan(&d.ID, &d.EmployeeID, &d.StartDate, &d.EndDate, &d.Confirmed, &d.Checked); err != nil {
		return nil, err
	}
	return d, nil
}

type PostgresDayOffRepository struct {
	db *sql.DB
}

func NewPostgresDayOffRepository(db *sql.DB) *PostgresDayOffRepository {
	return &PostgresDayOffRepository{db: db}
}

func (r *PostgresDayOffRepository) Create(ctx context.Context, d *employee.DayOff) error {
	query := `INSERT INTO day_offs (employee_id, start_date, end_date) VALUES ($1, $2, $3) RETURNING id`
	err := inTx(ctx, r.db, func(q querier) error {
		return q.QueryRowContext(ctx, query, d.EmployeeID, d.StartDate, d.EndDate).Scan(&d.ID)
	})
	if err != nil {
		return fmt.Errorf("error creating day-off: %w", err)
	}
	d.Confirmed, d.Checked = false, false
	return nil
}

func (r *PostgresDayOffRepository) GetByID(ctx context.Context, id int64) (*employee.DayOff, error) {
	d, err := scanDayOff(conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+dayOffColumns+` FROM day_offs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, employee.ErrDayOffNotFound
		}
		return nil, fmt.Errorf("error getting day-off: %w", err)
	}
	return d, nil
}

func (r *PostgresDayOffRepository) ListUnchecked(ctx context.Context) ([]*employee.DayOff, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT `+dayOffColumns+` FROM day_offs WHERE NOT checked ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing day-offs: %w", err)
	}
	defer rows.Close()

	dayOffs := make([]*employee.DayOff, 0)
	for rows.Next() {
		d, err := scanDayOff(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning day-off: %w", err)
		}
		dayOffs = append(dayOffs, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating day-offs: %w", err)
	}
	return dayOffs, nil
}

func (r *PostgresDayOffRepository) Decide(ctx context.Context, id int64, confirmed bool) (*employee.DayOff, error) {
	query := `UPDATE day_offs SET checked = TRUE, confirmed = $2 WHERE id = $1 AND NOT checked RETURNING ` + dayOffColumns
	d, err := scanDayOff(conn(ctx, r.db).QueryRowContext(ctx, query, id, confirmed))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the request does not exist or another decision got there first.
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, employee.ErrDayOffAlreadyChecked
		}
		return nil, fmt.Errorf("error deciding day-off: %w", err)
	}
	return d, nil
}

func (r *PostgresDayOffRepository) IsOnDayOff(ctx context.Context, employeeID int64, at time.Time) (bool, error) {
	query := `SELECT EXISTS (
                   SELECT 1 FROM day_offs
                   WHERE employee_id = $1 AND confirmed AND start_date < $2 AND end_date > $2)`
	var onDayOff bool
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, employeeID, at).Scan(&onDayOff); err != nil {
		return false, fmt.Errorf("error checking day-off: %w", err)
	}
	return onDayOff, nil
}
