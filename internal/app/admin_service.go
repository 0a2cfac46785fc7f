package app

import (
	"context"
	"errors"
	"fmt"

	"employee_task_bot/internal/domain/employee"
	"employee_task_bot/internal/domain/messenger"
	"employee_task_bot/internal/domain/task"

	"github.com/sirupsen/logrus"
)

// Custom application-level errors for admin service
var (
	ErrAdminNotAuthorized   = errors.New("performing user is not authorized as an admin")
	ErrReportAlreadyChecked = task.ErrReportAlreadyChecked
	ErrDayOffAlreadyChecked = employee.ErrDayOffAlreadyChecked
)

type AdminDeps struct {
	Employees   employee.Repository
	DayOffs     employee.DayOffRepository
	Tasks       task.Repository
	Assignments task.AssignmentRepository
	Reports     task.ReportRepository
	Messenger   messenger.Messenger
	MediaHost   string
	AdminID     int64
	Logger      *logrus.Entry
}

// AdminService carries out the review actions of the configured administrator.
type AdminService struct {
	employees   employee.Repository
	dayOffs     employee.DayOffRepository
	tasks       task.Repository
	assignments task.AssignmentRepository
	reports     task.ReportRepository
	messenger   messenger.Messenger
	mediaHost   string
	adminID     int64
	logger      *logrus.Entry
}

func NewAdminService(d AdminDeps) *AdminService {
	return &AdminService{
		employees:   d.Employees,
		dayOffs:     d.DayOffs,
		tasks:       d.Tasks,
		assignments: d.Assignments,
		reports:     d.Reports,
		messenger:   d.Messenger,
		mediaHost:   d.MediaHost,
		adminID:     d.AdminID,
		logger:      d.Logger.WithField("component", "admin_service"),
	}
}

func (s *AdminService) IsAdmin(telegramID int64) bool {
	return s.adminID != 0 && telegramID == s.adminID
}

func (s *AdminService) authorize(performingAdminID int64) error {
	if !s.IsAdmin(performingAdminID) {
		return ErrAdminNotAuthorized
	}
	return nil
}

// ListEmployees returns all employees, or only unconfirmed ones when pendingOnly is set.
func (s *AdminService) ListEmployees(ctx context.Context, performingAdminID int64, pendingOnly bool) ([]*employee.Employee, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	if pendingOnly {
		return s.employees.ListPending(ctx)
	}
	return s.employees.ListAll(ctx)
}

// SetEmployeeConfirmed stores the confirmation flag. The employee is told only when the
// flag goes from false to true.
func (s *AdminService) SetEmployeeConfirmed(ctx context.Context, performingAdminID, employeeID int64, confirmed bool) (*employee.Employee, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	emp, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	previous, err := s.employees.SetConfirmed(ctx, employeeID, confirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to update confirmation of employee %d: %w", employeeID, err)
	}
	emp.Confirmed = confirmed

	logCtx := s.logger.WithField("employee_id", employeeID)
	logCtx.WithField("confirmed", confirmed).Info("Employee confirmation changed")
	if previous || !confirmed || !emp.Linked() {
		return emp, nil
	}
	msgs := []messenger.Message{textWithMenu("Ваш аккаунт подтвержден")}
	if err := s.messenger.Send(ctx, emp.RecipientID, msgs); err != nil {
		logCtx.WithError(err).Error("Failed to notify employee about confirmation")
	}
	return emp, nil
}

func (s *AdminService) ListPendingReports(ctx context.Context, performingAdminID int64) ([]*task.Report, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.reports.ListPending(ctx)
}

// ApproveReport accepts a pending report and closes its assignment. Approval is final.
func (s *AdminService) ApproveReport(ctx context.Context, performingAdminID, reportID int64) (*task.Report, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	r, err := s.reports.SetVerdict(ctx, reportID, true, "")
	if err != nil {
		return nil, fmt.Errorf("failed to approve report %d: %w", reportID, err)
	}
	if err := s.assignments.Finish(ctx, r.AssignmentID); err != nil {
		return nil, fmt.Errorf("failed to finish assignment %d: %w", r.AssignmentID, err)
	}
	s.logger.WithField("report_id", reportID).Info("Report approved")
	return r, nil
}

// ReturnReport sends the task back for correction: the assignment is reopened and the
// employee receives the task again together with the comment.
func (s *AdminService) ReturnReport(ctx context.Context, performingAdminID, reportID int64, comment string) (*task.Report, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	// Only the reviewer whose verdict lands reopens the task.
	r, err := s.reports.SetVerdict(ctx, reportID, false, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to return report %d: %w", reportID, err)
	}
	a, err := s.assignments.GetByID(ctx, r.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment %d: %w", r.AssignmentID, err)
	}
	t, err := s.tasks.GetByID(ctx, a.TaskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", a.TaskID, err)
	}
	emp, err := s.employees.GetByID(ctx, a.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee %d: %w", a.EmployeeID, err)
	}
	reopened, err := s.assignments.Reopen(ctx, t.ID, emp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen task %d for employee %d: %w", t.ID, emp.ID, err)
	}

	logCtx := s.logger.WithFields(logrus.Fields{"report_id": reportID, "task_id": t.ID, "assignment_id": reopened.ID})
	logCtx.Info("Report returned for correction")
	if !emp.Linked() {
		return r, nil
	}
	msgs := taskAnnouncement(s.mediaHost, t)
	if comment != "" {
		msgs = append(msgs, messenger.Text{Body: comment})
	}
	if r.AnswerFile != nil {
		msgs = append(msgs, fileMessage(s.mediaHost, r.AnswerFile))
	}
	if err := s.messenger.Send(ctx, emp.RecipientID, msgs); err != nil {
		logCtx.WithError(err).Error("Failed to notify employee about returned report")
	}
	return r, nil
}

func (s *AdminService) ListPendingDayOffs(ctx context.Context, performingAdminID int64) ([]*employee.DayOff, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.dayOffs.ListUnchecked(ctx)
}

// DecideDayOff confirms or cancels an unchecked day-off request.
func (s *AdminService) DecideDayOff(ctx context.Context, performingAdminID, dayOffID int64, confirmed bool) (*employee.DayOff, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	d, err := s.dayOffs.Decide(ctx, dayOffID, confirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to decide day-off %d: %w", dayOffID, err)
	}
	s.logger.WithFields(logrus.Fields{"day_off_id": dayOffID, "confirmed": confirmed}).Info("Day-off request decided")
	return d, nil
}
