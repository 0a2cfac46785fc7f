package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"employee_task_bot/internal/app"
	"employee_task_bot/internal/domain/employee"
	"employee_task_bot/internal/domain/task"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const (
	msgUnauthorized = "Ошибка: У вас нет прав для выполнения этой команды."
	dateLayout      = "02.01.2006"
)

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, baseLogger *logrus.Entry) {
	// guarded wraps a command with logging and the admin check.
	guarded := func(command string, fn func(c telebot.Context, logCtx *logrus.Entry) error) {
		b.Handle(command, func(c telebot.Context) error {
			logCtx := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			logCtx.Info("Command received")
			if !adminService.IsAdmin(c.Sender().ID) {
				logCtx.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}
			return fn(c, logCtx)
		})
	}

	guarded("/employees", func(c telebot.Context, logCtx *logrus.Entry) error {
		args := c.Args()
		pendingOnly := true
		if len(args) > 0 {
			switch strings.ToLower(args[0]) {
			case "all":
				pendingOnly = false
			case "pending":
			default:
				return c.Send("Неверный формат команды. Используйте: /employees [pending|all]")
			}
		}
		employees, err := adminService.ListEmployees(ctx, c.Sender().ID, pendingOnly)
		if err != nil {
			return replyError(c, logCtx, err)
		}
		if len(employees) == 0 {
			return c.Send("Сотрудники не найдены.")
		}
		var sb strings.Builder
		sb.WriteString("Сотрудники:\n\n")
		for _, e := range employees {
			status := "ожидает подтверждения"
			if e.Confirmed {
				status = "подтвержден"
			}
			fmt.Fprintf(&sb, "#%d %s, %s (%s)\n", e.ID, e.FullName, e.Phone, status)
		}
		return c.Send(sb.String())
	})

	confirm := func(confirmed bool) func(c telebot.Context, logCtx *logrus.Entry) error {
		return func(c telebot.Context, logCtx *logrus.Entry) error {
			id, ok := idArg(c)
			if !ok {
				return c.Send("Неверный формат команды. Укажите ID сотрудника.")
			}
			emp, err := adminService.SetEmployeeConfirmed(ctx, c.Sender().ID, id, confirmed)
			if err != nil {
				return replyError(c, logCtx.WithField("employee_id", id), err)
			}
			if confirmed {
				return c.Send(fmt.Sprintf("Сотрудник %s (ID: %d) подтвержден.", emp.FullName, emp.ID))
			}
			return c.Send(fmt.Sprintf("Подтверждение сотрудника %s (ID: %d) снято.", emp.FullName, emp.ID))
		}
	}
	guarded("/confirm_employee", confirm(true))
	guarded("/unconfirm_employee", confirm(false))

	guarded("/reports", func(c telebot.Context, logCtx *logrus.Entry) error {
		reports, err := adminService.ListPendingReports(ctx, c.Sender().ID)
		if err != nil {
			return replyError(c, logCtx, err)
		}
		if len(reports) == 0 {
			return c.Send("Отчетов на утверждении нет.")
		}
		var sb strings.Builder
		sb.WriteString("Отчеты на утверждении:\n\n")
		for _, r := range reports {
			fmt.Fprintf(&sb, "#%d (назначение %d): %s", r.ID, r.AssignmentID, r.Text)
			if r.PhotoRef != "" {
				sb.WriteString(" [фото]")
			}
			sb.WriteString("\n")
		}
		return c.Send(sb.String())
	})

	guarded("/approve_report", func(c telebot.Context, logCtx *logrus.Entry) error {
		id, ok := idArg(c)
		if !ok {
			return c.Send("Неверный формат команды. Используйте: /approve_report <ID>")
		}
		if _, err := adminService.ApproveReport(ctx, c.Sender().ID, id); err != nil {
			return replyError(c, logCtx.WithField("report_id", id), err)
		}
		return c.Send(fmt.Sprintf("Отчет %d утвержден.", id))
	})

	guarded("/return_report", func(c telebot.Context, logCtx *logrus.Entry) error {
		args := c.Args()
		id, ok := idArg(c)
		if !ok || len(args) < 2 {
			return c.Send("Неверный формат команды. Используйте: /return_report <ID> <комментарий>")
		}
		comment := strings.Join(args[1:], " ")
		if _, err := adminService.ReturnReport(ctx, c.Sender().ID, id, comment); err != nil {
			return replyError(c, logCtx.WithField("report_id", id), err)
		}
		return c.Send(fmt.Sprintf("Отчет %d возвращен на доработку.", id))
	})

	guarded("/dayoffs", func(c telebot.Context, logCtx *logrus.Entry) error {
		dayOffs, err := adminService.ListPendingDayOffs(ctx, c.Sender().ID)
		if err != nil {
			return replyError(c, logCtx, err)
		}
		if len(dayOffs) == 0 {
			return c.Send("Заявок на выходной нет.")
		}
		var sb strings.Builder
		sb.WriteString("Заявки на выходной:\n\n")
		for _, d := range dayOffs {
			fmt.Fprintf(&sb, "#%d сотрудник %d: %s - %s\n", d.ID, d.EmployeeID,
				d.StartDate.Format(dateLayout), d.EndDate.Format(dateLayout))
		}
		return c.Send(sb.String())
	})

	decide := func(confirmed bool) func(c telebot.Context, logCtx *logrus.Entry) error {
		return func(c telebot.Context, logCtx *logrus.Entry) error {
			id, ok := idArg(c)
			if !ok {
				return c.Send("Неверный формат команды. Укажите ID заявки.")
			}
			if _, err := adminService.DecideDayOff(ctx, c.Sender().ID, id, confirmed); err != nil {
				return replyError(c, logCtx.WithField("day_off_id", id), err)
			}
			if confirmed {
				return c.Send(fmt.Sprintf("Выходной %d утвержден.", id))
			}
			return c.Send(fmt.Sprintf("Выходной %d отклонен.", id))
		}
	}
	guarded("/confirm_dayoff", decide(true))
	guarded("/cancel_dayoff", decide(false))
}

func idArg(c telebot.Context) (int64, bool) {
	args := c.Args()
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// replyError maps service errors to admin-facing messages.
func replyError(c telebot.Context, logCtx *logrus.Entry, err error) error {
	logWithError := logCtx.WithError(err)
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		logWithError.Warn("Admin not authorized (service level)")
		return c.Send(msgUnauthorized)
	case errors.Is(err, employee.ErrNotFound):
		logWithError.Warn("Employee not found")
		return c.Send("Сотрудник не найден.")
	case errors.Is(err, task.ErrReportNotFound):
		logWithError.Warn("Report not found")
		return c.Send("Отчет не найден.")
	case errors.Is(err, employee.ErrDayOffNotFound):
		logWithError.Warn("Day-off request not found")
		return c.Send("Заявка на выходной не найдена.")
	case errors.Is(err, app.ErrReportAlreadyChecked):
		logWithError.Warn("Report already checked")
		return c.Send("Отчет уже проверен.")
	case errors.Is(err, app.ErrDayOffAlreadyChecked):
		logWithError.Warn("Day-off already checked")
		return c.Send("Заявка уже рассмотрена.")
	default:
		logWithError.Error("Admin command failed")
		return c.Send(fmt.Sprintf("Произошла ошибка: %s", err.Error()))
	}
}
