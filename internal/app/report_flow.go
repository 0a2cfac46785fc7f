package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"employee_task_bot/internal/domain/conversation"
	"employee_task_bot/internal/domain/messenger"
	"employee_task_bot/internal/domain/task"
)

// Report dialogue steps. An empty step waits for one of the report commands.
const (
	reportStepText  = "w-text"
	reportStepPhoto = "w-photo"

	reportKeyTask  = "task_id"
	reportKeyText  = "text"
	reportKeyPhoto = "photo"
)

// reportFlowHandler drives the report sub-dialogue started by startReportHandler.
type reportFlowHandler struct {
	e *Engine
}

func (h *reportFlowHandler) Name() string                    { return "report_flow" }
func (h *reportFlowHandler) ExpectedMode() conversation.Mode { return conversation.ModeReport }

func (h *reportFlowHandler) Match(sess *Session) bool {
	return strings.HasPrefix(sess.Text(), cmdReport)
}

func (h *reportFlowHandler) Handle(ctx context.Context, sess *Session) error {
	if sess.State.Mode != conversation.ModeReport {
		// stale button from a finished report
		sess.Reply(menuMessage())
		return nil
	}
	if !requireEmployee(sess) {
		return nil
	}

	payload := sess.State.Payload.Clone()
	text := sess.Text()
	if !strings.HasPrefix(text, cmdReport) {
		return h.capture(sess, payload, text)
	}

	switch strings.TrimPrefix(text, cmdReport) {
	case reportActionPhoto:
		sess.SetState(conversation.InReport(reportStepPhoto, payload))
		sess.Reply(messenger.Text{Body: textReportPhoto})
	case reportActionDelete:
		sess.SetState(conversation.Idle())
		sess.Reply(textWithMenu(textReportDeleted))
	case reportActionSend:
		return h.send(ctx, sess, payload)
	default:
		sess.SetState(conversation.InReport("", payload))
		sess.Reply(reportKeyboard())
	}
	return nil
}

// capture stores free input according to the current step.
func (h *reportFlowHandler) capture(sess *Session, payload conversation.Payload, text string) error {
	switch sess.State.Step {
	case reportStepText:
		if text == "" {
			sess.Reply(reportPromptText())
			return nil
		}
		payload[reportKeyText] = text
		sess.Reply(messenger.Text{Body: textReportTextSaved})
	case reportStepPhoto:
		if sess.Event.Media == "" {
			sess.Reply(messenger.Text{Body: textReportPhoto})
			return nil
		}
		payload[reportKeyPhoto] = sess.Event.Media
		sess.Reply(messenger.Text{Body: textReportPhotoSaved})
	}
	sess.SetState(conversation.InReport("", payload))
	sess.Reply(reportKeyboard())
	return nil
}

func (h *reportFlowHandler) send(ctx context.Context, sess *Session, payload conversation.Payload) error {
	if payload.String(reportKeyText) == "" {
		sess.SetState(conversation.InReport(reportStepText, payload))
		sess.Reply(messenger.Text{Body: textReportEmpty})
		return nil
	}
	taskID, err := strconv.ParseInt(payload.String(reportKeyTask), 10, 64)
	if err != nil {
		sess.SetState(conversation.Idle())
		sess.Reply(textWithMenu(textTaskNotFound))
		return nil
	}
	a, err := h.e.assignments.GetOpen(ctx, taskID, sess.Employee.ID)
	if errors.Is(err, task.ErrAssignmentNotFound) {
		sess.SetState(conversation.Idle())
		sess.Reply(textWithMenu(textTaskNotFound))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get open assignment for task %d: %w", taskID, err)
	}
	report := &task.Report{
		AssignmentID: a.ID,
		Text:         payload.String(reportKeyText),
		PhotoRef:     payload.String(reportKeyPhoto),
	}
	if err := h.e.reports.Create(ctx, report); err != nil {
		return fmt.Errorf("failed to create report for assignment %d: %w", a.ID, err)
	}
	h.e.logger.WithField("report_id", report.ID).WithField("assignment_id", a.ID).Info("Report submitted")
	sess.SetState(conversation.Idle())
	sess.Reply(textWithMenu(textReportSent))
	return nil
}
