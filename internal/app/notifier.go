package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"employee_task_bot/internal/domain/employee"
	"employee_task_bot/internal/domain/messenger"
	"employee_task_bot/internal/domain/task"

	"github.com/sirupsen/logrus"
)

// IgnoredGracePeriod is how long a started task may stay unaccepted before nagging begins.
const IgnoredGracePeriod = 30 * time.Minute

type NotifierDeps struct {
	Tasks       task.Repository
	Assignments task.AssignmentRepository
	Delayed     task.DelayedRepository
	Employees   employee.Repository
	DayOffs     employee.DayOffRepository
	Messenger   messenger.Messenger
	MediaHost   string
	Logger      *logrus.Entry
	// Now defaults to time.Now.
	Now func() time.Time
}

// TaskNotifier runs the periodic task sweeps. Every sweep takes a single "now".
// Store failures abort a sweep; delivery failures are logged per row.
type TaskNotifier struct {
	tasks       task.Repository
	assignments task.AssignmentRepository
	delayed     task.DelayedRepository
	employees   employee.Repository
	dayOffs     employee.DayOffRepository
	messenger   messenger.Messenger
	mediaHost   string
	logger      *logrus.Entry
	now         func() time.Time
}

func NewTaskNotifier(d NotifierDeps) *TaskNotifier {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &TaskNotifier{
		tasks:       d.Tasks,
		assignments: d.Assignments,
		delayed:     d.Delayed,
		employees:   d.Employees,
		dayOffs:     d.DayOffs,
		messenger:   d.Messenger,
		mediaHost:   d.MediaHost,
		logger:      d.Logger.WithField("component", "task_notifier"),
		now:         now,
	}
}

// DispatchNewTasks claims every due unsent task and delivers it to its recipients.
func (n *TaskNotifier) DispatchNewTasks(ctx context.Context) error {
	now := n.now()
	due, err := n.tasks.ListDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list due tasks: %w", err)
	}
	for _, t := range due {
		claimed, err := n.tasks.MarkSent(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("failed to mark task %d sent: %w", t.ID, err)
		}
		if !claimed {
			continue
		}
		recipients, err := n.tasks.ListRecipients(ctx, t.ID)
		if err != nil {
			return fmt.Errorf("failed to list recipients of task %d: %w", t.ID, err)
		}
		n.logger.WithFields(logrus.Fields{"task_id": t.ID, "recipients": len(recipients)}).Info("Dispatching task")
		for _, emp := range recipients {
			onDayOff, err := n.dayOffs.IsOnDayOff(ctx, emp.ID, now)
			if err != nil {
				return fmt.Errorf("failed to check day-off of employee %d: %w", emp.ID, err)
			}
			if onDayOff {
				if err := n.delayed.Create(ctx, t.ID, emp.ID); err != nil {
					return fmt.Errorf("failed to delay task %d for employee %d: %w", t.ID, emp.ID, err)
				}
				n.logger.WithFields(logrus.Fields{"task_id": t.ID, "employee_id": emp.ID}).Info("Employee on day-off, task delayed")
				continue
			}
			if err := n.assign(ctx, t, emp); err != nil {
				return err
			}
		}
	}
	return nil
}

// RetryDelayedTasks delivers tasks held back by a day-off that has since ended.
func (n *TaskNotifier) RetryDelayedTasks(ctx context.Context) error {
	now := n.now()
	markers, err := n.delayed.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list delayed tasks: %w", err)
	}
	for _, d := range markers {
		onDayOff, err := n.dayOffs.IsOnDayOff(ctx, d.EmployeeID, now)
		if err != nil {
			return fmt.Errorf("failed to check day-off of employee %d: %w", d.EmployeeID, err)
		}
		if onDayOff {
			continue
		}
		t, err := n.tasks.GetByID(ctx, d.TaskID)
		if err != nil && !errors.Is(err, task.ErrNotFound) {
			return fmt.Errorf("failed to get task %d: %w", d.TaskID, err)
		}
		emp, empErr := n.employees.GetByID(ctx, d.EmployeeID)
		if empErr != nil && !errors.Is(empErr, employee.ErrNotFound) {
			return fmt.Errorf("failed to get employee %d: %w", d.EmployeeID, empErr)
		}
		claimed, err := n.delayed.Delete(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("failed to delete delayed task %d: %w", d.ID, err)
		}
		if !claimed || t == nil || emp == nil {
			continue
		}
		if err := n.assign(ctx, t, emp); err != nil {
			return err
		}
	}
	return nil
}

// assign opens the assignment and announces the task only when this call created it.
func (n *TaskNotifier) assign(ctx context.Context, t *task.Task, emp *employee.Employee) error {
	a, created, err := n.assignments.CreateIfAbsent(ctx, t.ID, emp.ID)
	if err != nil {
		return fmt.Errorf("failed to assign task %d to employee %d: %w", t.ID, emp.ID, err)
	}
	if !created {
		return nil
	}
	fields := logrus.Fields{"task_id": t.ID, "employee_id": emp.ID, "assignment_id": a.ID}
	if !emp.Linked() {
		n.logger.WithFields(fields).Warn("Employee has no linked conversation, announcement skipped")
		return nil
	}
	n.send(ctx, emp.RecipientID, taskAnnouncement(n.mediaHost, t), fields)
	return nil
}

// RemindIgnoredTasks nags employees about tasks left unaccepted past the grace period.
func (n *TaskNotifier) RemindIgnoredTasks(ctx context.Context) error {
	now := n.now()
	ignored, err := n.assignments.ListIgnored(ctx, now.Add(-IgnoredGracePeriod))
	if err != nil {
		return fmt.Errorf("failed to list ignored assignments: %w", err)
	}
	for _, a := range ignored {
		emp, t, err := n.load(ctx, a)
		if err != nil {
			return err
		}
		if t == nil || !emp.Linked() {
			continue
		}
		text := fmt.Sprintf("Вы не приняли к выполнению задачу «%s». "+
			"Прошу вас перейти по кнопке «Непринятые задачи» и приступить к выполнению задачи!", t.Name)
		n.send(ctx, emp.RecipientID, []messenger.Message{messenger.Text{Body: text}},
			logrus.Fields{"assignment_id": a.ID, "task_id": t.ID, "employee_id": emp.ID})
	}
	return nil
}

// EscalateExpiredTasks notifies managers and the employee once per overdue assignment.
func (n *TaskNotifier) EscalateExpiredTasks(ctx context.Context) error {
	now := n.now()
	expired, err := n.assignments.ListExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list expired assignments: %w", err)
	}
	for _, a := range expired {
		claimed, err := n.assignments.MarkDeadlineNotified(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("failed to mark assignment %d notified: %w", a.ID, err)
		}
		if !claimed {
			continue
		}
		emp, t, err := n.load(ctx, a)
		if err != nil {
			return err
		}
		if t == nil || emp == nil {
			continue
		}
		fields := logrus.Fields{"assignment_id": a.ID, "task_id": t.ID, "employee_id": emp.ID}

		managers, err := n.employees.ListManagersOf(ctx, emp.ID)
		if err != nil {
			return fmt.Errorf("failed to list managers of employee %d: %w", emp.ID, err)
		}
		for _, m := range managers {
			if !m.Linked() {
				continue
			}
			text := fmt.Sprintf("%s просрочил задачу %s", emp.FullName, t.Name)
			n.send(ctx, m.RecipientID, []messenger.Message{messenger.Text{Body: text}}, fields)
		}

		if !emp.Linked() {
			continue
		}
		text := fmt.Sprintf("Вы просрочили исполнение задачи «%s», Прошу вас перейти по кнопке "+
			"«Задачи на исполнении» и приступить к выполнению задачи поскорее и прислать отчет!", t.Name)
		n.send(ctx, emp.RecipientID, []messenger.Message{messenger.Text{Body: text}}, fields)
	}
	return nil
}

// load fetches the employee and task of an assignment; missing rows come back nil.
func (n *TaskNotifier) load(ctx context.Context, a *task.Assignment) (*employee.Employee, *task.Task, error) {
	emp, err := n.employees.GetByID(ctx, a.EmployeeID)
	if errors.Is(err, employee.ErrNotFound) {
		emp = nil
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to get employee %d: %w", a.EmployeeID, err)
	}
	t, err := n.tasks.GetByID(ctx, a.TaskID)
	if errors.Is(err, task.ErrNotFound) {
		return emp, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get task %d: %w", a.TaskID, err)
	}
	return emp, t, nil
}

func (n *TaskNotifier) send(ctx context.Context, recipientID string, msgs []messenger.Message, fields logrus.Fields) {
	if err := n.messenger.Send(ctx, recipientID, msgs); err != nil {
		n.logger.WithFields(fields).WithField("recipient", recipientID).WithError(err).Error("Failed to deliver notification")
		return
	}
	n.logger.WithFields(fields).WithField("recipient", recipientID).Debug("Notification delivered")
}
