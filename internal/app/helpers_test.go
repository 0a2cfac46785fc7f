package app

import (
	"context"
	"io"
	"testing"
	"time"

	"employee_task_bot/internal/domain/messenger"
	"employee_task_bot/internal/infra/memstore"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMessenger struct {
	mock.Mock
}

func (m *mockMessenger) Send(ctx context.Context, recipientID string, messages []messenger.Message) error {
	args := m.Called(ctx, recipientID, messages)
	return args.Error(0)
}

// sentTo flattens every bundle delivered to the recipient.
func (m *mockMessenger) sentTo(recipientID string) []messenger.Message {
	var out []messenger.Message
	for _, call := range m.Calls {
		if call.Method == "Send" && call.Arguments.String(1) == recipientID {
			out = append(out, call.Arguments.Get(2).([]messenger.Message)...)
		}
	}
	return out
}

// texts returns the bodies of the text messages delivered to the recipient.
func (m *mockMessenger) texts(recipientID string) []string {
	var out []string
	for _, msg := range m.sentTo(recipientID) {
		if t, ok := msg.(messenger.Text); ok {
			out = append(out, t.Body)
		}
	}
	return out
}

func (m *mockMessenger) reset() {
	m.Calls = nil
}

func newOKMessenger() *mockMessenger {
	m := &mockMessenger{}
	m.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return m
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestEngine(store *memstore.Store, m messenger.Messenger) *Engine {
	return NewEngine(EngineDeps{
		Users:       store.Users(),
		Employees:   store.Employees(),
		Departments: store.Departments(),
		DayOffs:     store.DayOffs(),
		Tasks:       store.Tasks(),
		Assignments: store.Assignments(),
		Reports:     store.Reports(),
		Messenger:   m,
		MediaHost:   "https://media.example.com",
		Location:    time.UTC,
		Logger:      testLogger(),
	})
}

func say(t *testing.T, e *Engine, recipient, text string) {
	t.Helper()
	require.NoError(t, e.Handle(context.Background(), Event{Kind: EventMessageReceived, RecipientID: recipient, Text: text}))
}

func rawState(t *testing.T, store *memstore.Store, recipient string) string {
	t.Helper()
	u, err := store.Users().GetByRecipient(context.Background(), recipient)
	require.NoError(t, err)
	return u.State
}
