package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"employee_task_bot/internal/domain/task"
)

const reportColumns = `id, assignment_id, text, photo_ref, checked, accepted, answer_text,
       answer_file_url, answer_file_name, answer_file_size, created_at`

func scanReport(s rowScanner) (*task.Report, error) {
	r := &task.Report{}
	var fileURL, fileName sql.NullString
	var fileSize sql.NullInt64
	err := s.Scan(&r.ID, &r.AssignmentID, &r.Text, &r.PhotoRef, &r.Checked, &r.Accepted, &r.AnswerText,
		&fileURL, &fileName, &fileSize, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if fileURL.Valid && fileURL.String != "" {
		r.AnswerFile = &task.File{URL: fileURL.String, Name: fileName.String, Size: fileSize.Int64}
	}
	return r, nil
}

type PostgresReportRepository struct {
	db *sql.DB
}

func NewPostgresReportRepository(db *sql.DB) *PostgresReportRepository {
	return &PostgresReportRepository{db: db}
}

func (r *PostgresReportRepository) Create(ctx context.Context, rep *task.Report) error {
	query := `INSERT INTO task_reports (assignment_id, text, photo_ref) VALUES ($1, $2, $3)
               RETURNING id, created_at`
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, rep.AssignmentID, rep.Text, rep.PhotoRef).Scan(&rep.ID, &rep.CreatedAt); err != nil {
		return fmt.Errorf("error creating report: %w", err)
	}
	rep.Checked, rep.Accepted = false, false
	return nil
}

func (r *PostgresReportRepository) GetByID(ctx context.Context, id int64) (*task.Report, error) {
	rep, err := scanReport(conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+reportColumns+` FROM task_reports WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrReportNotFound
		}
		return nil, fmt.Errorf("error getting report by ID: %w", err)
	}
	return rep, nil
}

func (r *PostgresReportRepository) ListPending(ctx context.Context) ([]*task.Report, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT `+reportColumns+` FROM task_reports WHERE NOT checked ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing pending reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*task.Report, 0)
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning report: %w", err)
		}
		reports = append(reports, rep)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}

// SetVerdict only touches an unchecked report, so concurrent reviewers cannot both win.
func (r *PostgresReportRepository) SetVerdict(ctx context.Context, id int64, accepted bool, answerText string) (*task.Report, error) {
	query := `UPDATE task_reports SET checked = TRUE, accepted = $2, answer_text = $3
               WHERE id = $1 AND NOT checked RETURNING ` + reportColumns
	rep, err := scanReport(conn(ctx, r.db).QueryRowContext(ctx, query, id, accepted, answerText))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, task.ErrReportAlreadyChecked
		}
		return nil, fmt.Errorf("error setting report verdict: %w", err)
	}
	return rep, nil
}

type PostgresDelayedRepository struct {
	db *sql.DB
}

func NewPostgresDelayedRepository(db *sql.DB) *PostgresDelayedRepository {
	return &PostgresDelayedRepository{db: db}
}

func (r *PostgresDelayedRepository) Create(ctx context.Context, taskID, employeeID int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO delayed_tasks (task_id, employee_id) VALUES ($1, $2) ON CONFLICT (task_id, employee_id) DO NOTHING`,
		taskID, employeeID)
	if err != nil {
		return fmt.Errorf("error creating delayed task: %w", err)
	}
	return nil
}

func (r *PostgresDelayedRepository) List(ctx context.Context) ([]*task.DelayedTask, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT id, task_id, employee_id, created_at FROM delayed_tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing delayed tasks: %w", err)
	}
	defer rows.Close()

	delayed := make([]*task.DelayedTask, 0)
	for rows.Next() {
		d := &task.DelayedTask{}
		if err := rows.Scan(&d.ID, &d.TaskID, &d.EmployeeID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning delayed task: %w", err)
		}
		delayed = append(delayed, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delayed tasks: %w", err)
	}
	return delayed, nil
}

func (r *PostgresDelayedRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM delayed_tasks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("error deleting delayed task: %w", err)
	}
	return claimed(res)
}
