package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"employee_task_bot/internal/domain/conversation"
	"employee_task_bot/internal/domain/task"
)

// Handler serves messages outside of forms.
type Handler interface {
	Name() string
	// ExpectedMode is the conversation mode this handler owns, or "" for none.
	ExpectedMode() conversation.Mode
	Match(sess *Session) bool
	Handle(ctx context.Context, sess *Session) error
}

// parseID extracts the numeric id following prefix.
func parseID(text, prefix string) (int64, bool) {
	if !strings.HasPrefix(text, prefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(text, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// requireEmployee replies with a registration hint when the recipient has no employee record.
func requireEmployee(sess *Session) bool {
	if sess.Employee != nil {
		return true
	}
	sess.SetState(conversation.Idle())
	sess.Reply(textWithMenu(textNotRegistered))
	return false
}

type acceptTaskHandler struct {
	e *Engine
}

func (h *acceptTaskHandler) Name() string                    { return "accept_task" }
func (h *acceptTaskHandler) ExpectedMode() conversation.Mode { return "" }

func (h *acceptTaskHandler) Match(sess *Session) bool {
	return strings.HasPrefix(sess.Text(), cmdAcceptTask)
}

func (h *acceptTaskHandler) Handle(ctx context.Context, sess *Session) error {
	id, ok := parseID(sess.Text(), cmdAcceptTask)
	if !ok {
		sess.Reply(menuMessage())
		return nil
	}
	if !requireEmployee(sess) {
		return nil
	}
	t, err := h.e.tasks.GetByID(ctx, id)
	if errors.Is(err, task.ErrNotFound) {
		sess.Reply(textWithMenu(textTaskNotFound))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get task %d: %w", id, err)
	}
	if _, err := h.e.assignments.Accept(ctx, t.ID, sess.Employee.ID); err != nil {
		if errors.Is(err, task.ErrAssignmentNotFound) {
			sess.Reply(textWithMenu(textTaskNotFound))
			return nil
		}
		return fmt.Errorf("failed to accept task %d for employee %d: %w", t.ID, sess.Employee.ID, err)
	}
	h.e.logger.WithField("task_id", t.ID).WithField("employee_id", sess.Employee.ID).Info("Task accepted")
	sess.Reply(acceptedTaskMessages(h.e.mediaHost, t)...)
	return nil
}

type startReportHandler struct {
	e *Engine
}

func (h *startReportHandler) Name() string                    { return "start_report" }
func (h *startReportHandler) ExpectedMode() conversation.Mode { return "" }

func (h *startReportHandler) Match(sess *Session) bool {
	return strings.HasPrefix(sess.Text(), cmdStartReport)
}

func (h *startReportHandler) Handle(ctx context.Context, sess *Session) error {
	id, ok := parseID(sess.Text(), cmdStartReport)
	if !ok {
		sess.Reply(menuMessage())
		return nil
	}
	if !requireEmployee(sess) {
		return nil
	}
	if _, err := h.e.assignments.GetOpen(ctx, id, sess.Employee.ID); err != nil {
		if errors.Is(err, task.ErrAssignmentNotFound) {
			sess.Reply(textWithMenu(textTaskNotFound))
			return nil
		}
		return fmt.Errorf("failed to get open assignment for task %d: %w", id, err)
	}
	sess.SetState(conversation.InReport(reportStepText, conversation.Payload{
		reportKeyTask: strconv.FormatInt(id, 10),
	}))
	sess.Reply(reportPromptText())
	return nil
}

type taskListHandler struct {
	e *Engine
}

func (h *taskListHandler) Name() string                    { return "task_list" }
func (h *taskListHandler) ExpectedMode() conversation.Mode { return "" }

func (h *taskListHandler) Match(sess *Session) bool {
	text := sess.Text()
	return text == cmdTasksActive || text == cmdTasksIgnored
}

func (h *taskListHandler) Handle(ctx context.Context, sess *Session) error {
	if !requireEmployee(sess) {
		return nil
	}
	accepted := sess.Text() == cmdTasksActive
	tasks, err := h.e.tasks.ListForEmployee(ctx, sess.Employee.ID, accepted)
	if err != nil {
		return fmt.Errorf("failed to list tasks for employee %d: %w", sess.Employee.ID, err)
	}
	if len(tasks) == 0 {
		sess.Reply(textWithMenu(textNoTasks))
		return nil
	}
	sess.Reply(taskListCard(tasks))
	return nil
}

type taskDetailsHandler struct {
	e *Engine
}

func (h *taskDetailsHandler) Name() string                    { return "task_details" }
func (h *taskDetailsHandler) ExpectedMode() conversation.Mode { return "" }

func (h *taskDetailsHandler) Match(sess *Session) bool {
	return strings.HasPrefix(sess.Text(), cmdTaskDetails)
}

func (h *taskDetailsHandler) Handle(ctx context.Context, sess *Session) error {
	if !requireEmployee(sess) {
		return nil
	}
	id, ok := parseID(sess.Text(), cmdTaskDetails)
	if !ok {
		sess.Reply(menuMessage())
		return nil
	}
	t, err := h.e.tasks.GetByID(ctx, id)
	if errors.Is(err, task.ErrNotFound) {
		sess.Reply(textWithMenu(textTaskNotFound))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get task %d: %w", id, err)
	}
	sess.Reply(taskDetails(h.e.mediaHost, t)...)
	return nil
}

type dayOffRequestHandler struct {
	e *Engine
}

func (h *dayOffRequestHandler) Name() string                    { return "day_off_request" }
func (h *dayOffRequestHandler) ExpectedMode() conversation.Mode { return "" }

func (h *dayOffRequestHandler) Match(sess *Session) bool {
	return sess.Text() == cmdDayOffCreate
}

func (h *dayOffRequestHandler) Handle(ctx context.Context, sess *Session) error {
	if !requireEmployee(sess) {
		return nil
	}
	return h.e.beginForm(ctx, sess, FormDayOff)
}

// menuHandler accepts everything and must be registered last.
type menuHandler struct{}

func (menuHandler) Name() string                    { return "menu" }
func (menuHandler) ExpectedMode() conversation.Mode { return "" }
func (menuHandler) Match(_ *Session) bool           { return true }

func (menuHandler) Handle(_ context.Context, sess *Session) error {
	sess.SetState(conversation.Idle())
	sess.Reply(menuMessage())
	return nil
}
