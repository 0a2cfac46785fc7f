package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"employee_task_bot/internal/domain/conversation"
	"employee_task_bot/internal/domain/employee"
	"employee_task_bot/internal/domain/messenger"
	"employee_task_bot/internal/domain/task"
	"employee_task_bot/internal/infra/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, e *Engine, recipient string, departmentIDs ...int64) {
	t.Helper()
	require.NoError(t, e.Handle(context.Background(), Event{Kind: EventConversationStarted, RecipientID: recipient}))
	say(t, e, recipient, "Иван Петров")
	say(t, e, recipient, "+7 900 123-45-67")
	for _, id := range departmentIDs {
		say(t, e, recipient, fmt.Sprintf("%s%d", cmdFormChoice, id))
	}
	say(t, e, recipient, cmdFormChoiceEnd)
}

func TestEngine_ConversationStartedBeginsRegistration(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)

	require.NoError(t, e.Handle(context.Background(), Event{Kind: EventConversationStarted, RecipientID: "100"}))

	assert.Equal(t, "form.register#full_name#{}", rawState(t, store, "100"))
	assert.Equal(t, []string{"Введите ФИО"}, m.texts("100"))
}

func TestEngine_RegistrationFlow(t *testing.T) {
	store := memstore.New()
	sales := store.AddDepartment("Продажи")
	store.AddDepartment("Склад")
	m := newOKMessenger()
	e := newTestEngine(store, m)

	require.NoError(t, e.Handle(context.Background(), Event{Kind: EventConversationStarted, RecipientID: "100"}))
	say(t, e, "100", "")
	assert.Equal(t, []string{"Введите ФИО", "Введите ФИО"}, m.texts("100"))

	say(t, e, "100", "Иван Петров")
	say(t, e, "100", "телефон")
	say(t, e, "100", "+7 900 123-45-67")
	assert.Contains(t, rawState(t, store, "100"), "form.register#departments#")

	last := m.sentTo("100")[len(m.sentTo("100"))-1]
	prompt, ok := last.(messenger.Text)
	require.True(t, ok)
	assert.Equal(t, "Выберите отделы", prompt.Body)
	require.NotNil(t, prompt.Keyboard)
	assert.Len(t, prompt.Keyboard.Buttons, 3)

	m.reset()
	say(t, e, "100", fmt.Sprintf("%s%d", cmdFormChoice, sales.ID))
	toggled := m.sentTo("100")
	require.Len(t, toggled, 1)
	kb, ok := toggled[0].(messenger.Keyboard)
	require.True(t, ok)
	assert.Equal(t, "✅ Продажи", kb.Buttons[0].Label)

	m.reset()
	say(t, e, "100", cmdFormChoiceEnd)
	assert.Equal(t, "idle", rawState(t, store, "100"))
	texts := m.texts("100")
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Вы зарегистрированы")
	assert.Equal(t, "Ваш ID: 100", texts[1])

	emp, err := store.Employees().GetByRecipient(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "Иван Петров", emp.FullName)
	assert.Equal(t, "+7 900 123-45-67", emp.Phone)
	assert.Equal(t, []int64{sales.ID}, emp.DepartmentIDs)
	assert.False(t, emp.Confirmed)
}

func TestEngine_ResetRestartsRegistrationAndKeepsEmployee(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")
	before, err := store.Employees().GetByRecipient(context.Background(), "100")
	require.NoError(t, err)

	say(t, e, "100", cmdReset)
	assert.Equal(t, "form.register#full_name#{}", rawState(t, store, "100"))

	say(t, e, "100", "Пётр Иванов")
	say(t, e, "100", "+79001112233")
	say(t, e, "100", cmdFormChoiceEnd)

	after, err := store.Employees().GetByRecipient(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "Пётр Иванов", after.FullName)
	all, err := store.Employees().ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEngine_ConversationStartedForRegisteredRecipientShowsMenu(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")
	m.reset()

	require.NoError(t, e.Handle(context.Background(), Event{Kind: EventConversationStarted, RecipientID: "100"}))
	assert.Equal(t, "idle", rawState(t, store, "100"))
	assert.Equal(t, []messenger.Message{menuMessage()}, m.sentTo("100"))
}

func TestEngine_UnknownRecipientMessageStartsConversation(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)

	say(t, e, "555", "привет")
	assert.Equal(t, "form.register#full_name#{}", rawState(t, store, "555"))
}

func TestEngine_IdleFreeTextShowsMenu(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")
	m.reset()

	say(t, e, "100", "что-нибудь")
	assert.Equal(t, []messenger.Message{menuMessage()}, m.sentTo("100"))
	assert.Equal(t, "idle", rawState(t, store, "100"))
}

func TestEngine_UndecodableStateFallsBackToMenu(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")
	store.SetUserState("100", "form.register#phone#{broken")
	m.reset()

	say(t, e, "100", "+79001112233")
	assert.Equal(t, "idle", rawState(t, store, "100"))
	assert.Equal(t, []messenger.Message{menuMessage()}, m.sentTo("100"))
}

func TestEngine_UnknownFormFallsBackToMenu(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")
	store.SetUserState("100", "form.survey#q1#{}")
	m.reset()

	say(t, e, "100", "ответ")
	assert.Equal(t, "idle", rawState(t, store, "100"))
	assert.Equal(t, []messenger.Message{menuMessage()}, m.sentTo("100"))
}

func TestEngine_AcceptTask(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")
	emp, err := store.Employees().GetByRecipient(context.Background(), "100")
	require.NoError(t, err)
	tk := store.AddTask(&task.Task{Name: "Инвентаризация", Text: "Пересчитать склад", EmployeeIDs: []int64{emp.ID}})
	_, _, err = store.Assignments().CreateIfAbsent(context.Background(), tk.ID, emp.ID)
	require.NoError(t, err)
	m.reset()

	say(t, e, "100", fmt.Sprintf("%s%d", cmdAcceptTask, tk.ID))

	a, err := store.Assignments().GetOpen(context.Background(), tk.ID, emp.ID)
	require.NoError(t, err)
	assert.True(t, a.Accepted)
	texts := m.texts("100")
	require.NotEmpty(t, texts)
	assert.Equal(t, "Вы приняли задачу \"Инвентаризация\"", texts[0])

	active, err := store.Tasks().ListForEmployee(context.Background(), emp.ID, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestEngine_AcceptUnknownTask(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")
	m.reset()

	say(t, e, "100", cmdAcceptTask+"999")
	assert.Equal(t, []string{textTaskNotFound}, m.texts("100"))
}

func TestEngine_UnregisteredUserCannotUseTaskCommands(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	_, err := store.Users().Create(context.Background(), "100")
	require.NoError(t, err)

	say(t, e, "100", cmdTasksActive)
	assert.Equal(t, []string{textNotRegistered}, m.texts("100"))
}

func TestEngine_UnregisteredUserCannotOpenTaskDetails(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	tk := store.AddTask(&task.Task{Name: "Витрина", Text: "Оформить витрину", Sent: true})
	_, err := store.Users().Create(context.Background(), "100")
	require.NoError(t, err)

	say(t, e, "100", fmt.Sprintf("%s%d", cmdTaskDetails, tk.ID))
	assert.Equal(t, []string{textNotRegistered}, m.texts("100"))
}

func TestEngine_TaskLists(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")
	emp, err := store.Employees().GetByRecipient(context.Background(), "100")
	require.NoError(t, err)
	tk := store.AddTask(&task.Task{Name: "Отчёт", Text: "Сдать отчёт"})
	_, _, err = store.Assignments().CreateIfAbsent(context.Background(), tk.ID, emp.ID)
	require.NoError(t, err)
	m.reset()

	say(t, e, "100", cmdTasksActive)
	assert.Equal(t, []string{textNoTasks}, m.texts("100"))

	m.reset()
	say(t, e, "100", cmdTasksIgnored)
	msgs := m.sentTo("100")
	require.Len(t, msgs, 1)
	card, ok := msgs[0].(messenger.RichCard)
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("%s%d", cmdTaskDetails, tk.ID), card.Buttons[0].ActionID)
}

func TestEngine_ReportFlow(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")
	emp, err := store.Employees().GetByRecipient(context.Background(), "100")
	require.NoError(t, err)
	tk := store.AddTask(&task.Task{Name: "Фото витрины"})
	a, err := store.Assignments().Accept(context.Background(), tk.ID, emp.ID)
	require.NoError(t, err)
	m.reset()

	say(t, e, "100", fmt.Sprintf("%s%d", cmdStartReport, tk.ID))
	assert.Contains(t, rawState(t, store, "100"), "report_task#w-text#")
	assert.Equal(t, []string{textReportPrompt}, m.texts("100"))

	m.reset()
	say(t, e, "100", "Витрина оформлена")
	assert.Equal(t, []string{textReportTextSaved}, m.texts("100"))
	assert.Contains(t, m.sentTo("100"), messenger.Message(reportKeyboard()))

	say(t, e, "100", cmdReport+reportActionPhoto)
	assert.Contains(t, rawState(t, store, "100"), "report_task#w-photo#")

	m.reset()
	say(t, e, "100", "без фото")
	assert.Equal(t, []string{textReportPhoto}, m.texts("100"))

	require.NoError(t, e.Handle(context.Background(), Event{Kind: EventMessageReceived, RecipientID: "100", Media: "photo-file-1"}))

	m.reset()
	say(t, e, "100", cmdReport+reportActionSend)
	assert.Equal(t, "idle", rawState(t, store, "100"))
	assert.Equal(t, []string{textReportSent}, m.texts("100"))

	pending, err := store.Reports().ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].AssignmentID)
	assert.Equal(t, "Витрина оформлена", pending[0].Text)
	assert.Equal(t, "photo-file-1", pending[0].PhotoRef)
	assert.Equal(t, task.ReportPending, pending[0].Status())
}

func TestEngine_ReportSendRequiresText(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")
	emp, err := store.Employees().GetByRecipient(context.Background(), "100")
	require.NoError(t, err)
	tk := store.AddTask(&task.Task{Name: "T"})
	_, err = store.Assignments().Accept(context.Background(), tk.ID, emp.ID)
	require.NoError(t, err)

	say(t, e, "100", fmt.Sprintf("%s%d", cmdStartReport, tk.ID))
	m.reset()
	say(t, e, "100", cmdReport+reportActionSend)

	assert.Equal(t, []string{textReportEmpty}, m.texts("100"))
	assert.Contains(t, rawState(t, store, "100"), "report_task#w-text#")
	pending, err := store.Reports().ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEngine_ReportDelete(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")
	emp, err := store.Employees().GetByRecipient(context.Background(), "100")
	require.NoError(t, err)
	tk := store.AddTask(&task.Task{Name: "T"})
	_, err = store.Assignments().Accept(context.Background(), tk.ID, emp.ID)
	require.NoError(t, err)

	say(t, e, "100", fmt.Sprintf("%s%d", cmdStartReport, tk.ID))
	say(t, e, "100", "текст")
	say(t, e, "100", cmdReport+reportActionDelete)

	assert.Equal(t, "idle", rawState(t, store, "100"))
	pending, err := store.Reports().ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestEngine_DayOffForm(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := newTestEngine(store, m)
	register(t, e, "100")

	say(t, e, "100", cmdDayOffCreate)
	assert.Equal(t, "form.day_off#start_date#{}", rawState(t, store, "100"))

	say(t, e, "100", "01.02.2030")
	m.reset()
	say(t, e, "100", "31.02.2030")
	assert.Contains(t, rawState(t, store, "100"), "form.day_off#end_date#")
	assert.Equal(t, []string{"Введите дату окончания выходного (ДД.ММ.ГГГГ)"}, m.texts("100"))

	say(t, e, "100", "5.02.2030")
	assert.Equal(t, "idle", rawState(t, store, "100"))

	requests, err := store.DayOffs().ListUnchecked(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC), requests[0].StartDate)
	assert.Equal(t, time.Date(2030, 2, 5, 0, 0, 0, 0, time.UTC), requests[0].EndDate)
	assert.False(t, requests[0].Confirmed)
}

type failingEmployees struct {
	employee.Repository
}

func (failingEmployees) Save(context.Context, *employee.Employee) error {
	return errors.New("db down")
}

func TestEngine_CompletionFailureStillResetsState(t *testing.T) {
	store := memstore.New()
	m := newOKMessenger()
	e := NewEngine(EngineDeps{
		Users:       store.Users(),
		Employees:   failingEmployees{store.Employees()},
		Departments: store.Departments(),
		DayOffs:     store.DayOffs(),
		Tasks:       store.Tasks(),
		Assignments: store.Assignments(),
		Reports:     store.Reports(),
		Messenger:   m,
		Location:    time.UTC,
		Logger:      testLogger(),
	})
	ctx := context.Background()
	require.NoError(t, e.Handle(ctx, Event{Kind: EventConversationStarted, RecipientID: "100"}))
	say(t, e, "100", "Иван")
	say(t, e, "100", "+79001112233")

	err := e.Handle(ctx, Event{Kind: EventMessageReceived, RecipientID: "100", Text: cmdFormChoiceEnd})
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, "idle", rawState(t, store, "100"))
	texts := m.texts("100")
	assert.Equal(t, textCompletionFailed, texts[len(texts)-1])
}

func TestEngine_DeliveryFailureKeepsCommittedState(t *testing.T) {
	store := memstore.New()
	m := &mockMessenger{}
	m.On("Send", mock.Anything, "100", mock.Anything).Return(errors.New("network"))
	e := newTestEngine(store, m)

	err := e.Handle(context.Background(), Event{Kind: EventConversationStarted, RecipientID: "100"})
	assert.ErrorContains(t, err, "network")

	st, decodeErr := conversation.Decode(rawState(t, store, "100"))
	require.NoError(t, decodeErr)
	formID, ok := st.FormID()
	assert.True(t, ok)
	assert.Equal(t, FormRegister, formID)
}

func TestEngine_HandlerOrder(t *testing.T) {
	e := newTestEngine(memstore.New(), newOKMessenger())
	names := make([]string, 0, len(e.handlers))
	for _, h := range e.handlers {
		names = append(names, h.Name())
	}
	assert.Equal(t, []string{"accept_task", "start_report", "report_flow", "task_list", "task_details", "day_off_request", "menu"}, names)

	// In report mode free text goes to the report flow even though other predicates fail.
	sess := &Session{State: conversation.InReport(reportStepText, conversation.Payload{}), Event: Event{Text: "hello"}}
	assert.Equal(t, "report_flow", e.match(sess).Name())

	sess = &Session{State: conversation.Idle(), Event: Event{Text: cmdTaskDetails + "3"}}
	assert.Equal(t, "task_details", e.match(sess).Name())
}
