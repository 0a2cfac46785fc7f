package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"employee_task_bot/internal/domain/conversation"
	"employee_task_bot/internal/domain/employee"
	"employee_task_bot/internal/domain/messenger"
	"employee_task_bot/internal/domain/task"

	"github.com/sirupsen/logrus"
)

// EventKind distinguishes inbound transport events.
type EventKind int

const (
	EventConversationStarted EventKind = iota
	EventMessageReceived
)

func (k EventKind) String() string {
	switch k {
	case EventConversationStarted:
		return "conversation_started"
	case EventMessageReceived:
		return "message_received"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is an inbound chat event. Media carries a transport reference to an attachment.
type Event struct {
	Kind        EventKind
	RecipientID string
	Text        string
	Media       string
}

// Session is the per-event view a handler works on. Replies are delivered after the
// state change is committed.
type Session struct {
	Event    Event
	User     *conversation.User
	State    conversation.State
	Employee *employee.Employee

	next      conversation.State
	outbox    []messenger.Message
	err       error
	recovered bool
}

func (s *Session) Reply(msgs ...messenger.Message) {
	s.outbox = append(s.outbox, msgs...)
}

// SetState replaces the state persisted when the handler returns.
func (s *Session) SetState(st conversation.State) {
	s.next = st
}

// Text returns the trimmed inbound text.
func (s *Session) Text() string {
	return strings.TrimSpace(s.Event.Text)
}

// fail records an error surfaced after the state is committed.
func (s *Session) fail(err error) {
	s.err = errors.Join(s.err, err)
}

// EngineDeps groups the collaborators of the conversation engine.
type EngineDeps struct {
	Users       conversation.Repository
	Employees   employee.Repository
	Departments employee.DepartmentRepository
	DayOffs     employee.DayOffRepository
	Tasks       task.Repository
	Assignments task.AssignmentRepository
	Reports     task.ReportRepository
	Messenger   messenger.Messenger
	MediaHost   string
	Location    *time.Location
	Logger      *logrus.Entry
}

// Engine routes inbound events to running forms or to the ordered handler list.
type Engine struct {
	users       conversation.Repository
	employees   employee.Repository
	departments employee.DepartmentRepository
	dayOffs     employee.DayOffRepository
	tasks       task.Repository
	assignments task.AssignmentRepository
	reports     task.ReportRepository
	messenger   messenger.Messenger
	mediaHost   string
	location    *time.Location
	logger      *logrus.Entry

	forms    map[string]*Form
	handlers []Handler
}

func NewEngine(d EngineDeps) *Engine {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	e := &Engine{
		users:       d.Users,
		employees:   d.Employees,
		departments: d.Departments,
		dayOffs:     d.DayOffs,
		tasks:       d.Tasks,
		assignments: d.Assignments,
		reports:     d.Reports,
		messenger:   d.Messenger,
		mediaHost:   d.MediaHost,
		location:    loc,
		logger:      d.Logger.WithField("component", "conversation_engine"),
	}
	e.forms = map[string]*Form{
		FormRegister: e.registrationForm(),
		FormDayOff:   e.dayOffForm(),
	}
	// Order matters: the first match wins and the menu handler must stay last.
	e.handlers = []Handler{
		&acceptTaskHandler{e: e},
		&startReportHandler{e: e},
		&reportFlowHandler{e: e},
		&taskListHandler{e: e},
		&taskDetailsHandler{e: e},
		&dayOffRequestHandler{e: e},
		&menuHandler{},
	}
	return e
}

// Handle processes one inbound event.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	logCtx := e.logger.WithFields(logrus.Fields{"recipient": ev.RecipientID, "event": ev.Kind.String()})
	switch ev.Kind {
	case EventConversationStarted:
		return e.start(ctx, ev)
	case EventMessageReceived:
		if strings.TrimSpace(ev.Text) == cmdReset {
			logCtx.Info("Conversation reset requested")
			return e.reset(ctx, ev)
		}
		_, err := e.users.GetByRecipient(ctx, ev.RecipientID)
		if errors.Is(err, conversation.ErrUserNotFound) {
			logCtx.Info("Message from unknown recipient, starting conversation")
			return e.start(ctx, ev)
		}
		if err != nil {
			return fmt.Errorf("failed to load conversation user %s: %w", ev.RecipientID, err)
		}
		return e.process(ctx, ev, e.route)
	default:
		logCtx.Warn("Ignoring unsupported event")
		return nil
	}
}

// start creates the user and opens registration, or shows the menu to a recipient
// who already has an employee record.
func (e *Engine) start(ctx context.Context, ev Event) error {
	if _, err := e.users.Create(ctx, ev.RecipientID); err != nil {
		return fmt.Errorf("failed to create conversation user %s: %w", ev.RecipientID, err)
	}
	return e.process(ctx, ev, func(ctx context.Context, sess *Session) error {
		if sess.Employee != nil {
			sess.SetState(conversation.Idle())
			sess.Reply(menuMessage())
			return nil
		}
		return e.beginForm(ctx, sess, FormRegister)
	})
}

func (e *Engine) reset(ctx context.Context, ev Event) error {
	if _, err := e.users.Recreate(ctx, ev.RecipientID); err != nil {
		return fmt.Errorf("failed to recreate conversation user %s: %w", ev.RecipientID, err)
	}
	return e.process(ctx, ev, func(ctx context.Context, sess *Session) error {
		return e.beginForm(ctx, sess, FormRegister)
	})
}

// process runs action with the user's state locked, persists the resulting state and then
// delivers the replies.
func (e *Engine) process(ctx context.Context, ev Event, action func(ctx context.Context, sess *Session) error) error {
	var sess *Session
	err := e.users.Update(ctx, ev.RecipientID, func(ctx context.Context, u *conversation.User) error {
		var err error
		sess, err = e.newSession(ctx, ev, u)
		if err != nil {
			return err
		}
		if err := action(ctx, sess); err != nil {
			return err
		}
		raw, err := sess.next.Encode()
		if err != nil {
			return err
		}
		u.State = raw
		return nil
	})
	if err != nil {
		return err
	}
	return errors.Join(sess.err, e.flush(ctx, sess))
}

func (e *Engine) newSession(ctx context.Context, ev Event, u *conversation.User) (*Session, error) {
	sess := &Session{Event: ev, User: u}
	st, err := conversation.Decode(u.State)
	if err != nil {
		e.logger.WithFields(logrus.Fields{"recipient": ev.RecipientID, "state": u.State}).WithError(err).
			Warn("Undecodable conversation state, treating as idle")
		sess.recovered = true
	}
	sess.State = st
	sess.next = st
	emp, err := e.employees.GetByRecipient(ctx, ev.RecipientID)
	switch {
	case err == nil:
		sess.Employee = emp
	case errors.Is(err, employee.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load employee for %s: %w", ev.RecipientID, err)
	}
	return sess, nil
}

// route dispatches a message for an existing user.
func (e *Engine) route(ctx context.Context, sess *Session) error {
	if sess.recovered {
		sess.Reply(menuMessage())
		return nil
	}
	if formID, ok := sess.State.FormID(); ok {
		form, found := e.forms[formID]
		if !found {
			e.logger.WithField("form", formID).Warn("Unknown form in conversation state, returning to menu")
			sess.SetState(conversation.Idle())
			sess.Reply(menuMessage())
			return nil
		}
		return e.continueForm(ctx, sess, form)
	}
	h := e.match(sess)
	e.logger.WithFields(logrus.Fields{"recipient": sess.Event.RecipientID, "handler": h.Name()}).Debug("Dispatching message")
	return h.Handle(ctx, sess)
}

// match prefers a handler owning the current mode, then the first whose predicate accepts.
func (e *Engine) match(sess *Session) Handler {
	for _, h := range e.handlers {
		if m := h.ExpectedMode(); m != "" && m == sess.State.Mode {
			return h
		}
	}
	for _, h := range e.handlers {
		if h.Match(sess) {
			return h
		}
	}
	return e.handlers[len(e.handlers)-1]
}

func (e *Engine) beginForm(ctx context.Context, sess *Session, formID string) error {
	form, ok := e.forms[formID]
	if !ok {
		return fmt.Errorf("form %s is not registered", formID)
	}
	return e.renderStep(ctx, sess, form, form.Start())
}

func (e *Engine) continueForm(ctx context.Context, sess *Session, form *Form) error {
	step, err := form.Continue(ctx, sess.State.Step, sess.State.Payload,
		Input{Text: sess.Event.Text, Media: sess.Event.Media})
	if err != nil {
		return fmt.Errorf("form %s: %w", form.ID, err)
	}
	return e.renderStep(ctx, sess, form, step)
}

func (e *Engine) renderStep(ctx context.Context, sess *Session, form *Form, step Step) error {
	if step.Outcome == OutcomeComplete {
		sess.SetState(conversation.Idle())
		sess.Reply(textWithMenu(form.CompletionText))
		if form.OnComplete == nil {
			return nil
		}
		if err := form.OnComplete(ctx, sess, step.Answers); err != nil {
			e.logger.WithFields(logrus.Fields{"recipient": sess.Event.RecipientID, "form": form.ID}).
				WithError(err).Error("Form completion failed")
			sess.Reply(textWithMenu(textCompletionFailed))
			sess.fail(fmt.Errorf("form %s completion: %w", form.ID, err))
		}
		return nil
	}

	fld := step.Field
	sess.SetState(conversation.InForm(form.ID, fld.Key, step.Answers))
	if fld.Kind != MultiChoice {
		sess.Reply(messenger.Text{Body: fld.Prompt})
		return nil
	}
	choices, err := fld.Choices(ctx)
	if err != nil {
		return fmt.Errorf("failed to load choices for %s: %w", fld.Key, err)
	}
	var selected []string
	if fld.Multi {
		selected = step.Answers.Strings(fld.Key)
	}
	kb := choiceKeyboard(choices, selected, fld.Multi)
	if step.Outcome == OutcomeAsk {
		sess.Reply(messenger.Text{Body: fld.Prompt, Keyboard: &kb})
		return nil
	}
	sess.Reply(kb)
	return nil
}

// flush delivers the session replies. Delivery failures are reported, not retried.
func (e *Engine) flush(ctx context.Context, sess *Session) error {
	if len(sess.outbox) == 0 {
		return nil
	}
	if err := e.messenger.Send(ctx, sess.Event.RecipientID, sess.outbox); err != nil {
		e.logger.WithField("recipient", sess.Event.RecipientID).WithError(err).Error("Failed to deliver replies")
		return fmt.Errorf("failed to deliver replies to %s: %w", sess.Event.RecipientID, err)
	}
	return nil
}
