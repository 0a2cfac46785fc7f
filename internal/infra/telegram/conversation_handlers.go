package telegram

import (
	"context"
	"strconv"
	"time"

	"employee_task_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// eventTimeout bounds one inbound event, including the wait for the sender's row lock.
const eventTimeout = 30 * time.Second

// EventHandler consumes inbound chat events.
type EventHandler interface {
	Handle(ctx context.Context, ev app.Event) error
}

// RegisterConversationHandlers feeds chat traffic to the conversation engine.
// Button presses arrive as callbacks carrying the action id and are treated as typed text.
func RegisterConversationHandlers(ctx context.Context, b *telebot.Bot, engine EventHandler, baseLogger *logrus.Entry) {
	convLogger := baseLogger.WithField("handler_group", "conversation")

	dispatch := func(c telebot.Context, ev app.Event) error {
		logCtx := convLogger.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "event": ev.Kind.String()})
		logCtx.Debug("Inbound event")
		evCtx, cancel := context.WithTimeout(ctx, eventTimeout)
		defer cancel()
		if err := engine.Handle(evCtx, ev); err != nil {
			logCtx.WithError(err).Error("Failed to handle inbound event")
		}
		return nil
	}

	b.Handle("/start", func(c telebot.Context) error {
		return dispatch(c, app.Event{Kind: app.EventConversationStarted, RecipientID: recipientOf(c)})
	})

	b.Handle(telebot.OnText, func(c telebot.Context) error {
		return dispatch(c, app.Event{Kind: app.EventMessageReceived, RecipientID: recipientOf(c), Text: c.Text()})
	})

	b.Handle(telebot.OnPhoto, func(c telebot.Context) error {
		ev := app.Event{Kind: app.EventMessageReceived, RecipientID: recipientOf(c)}
		if m := c.Message(); m != nil && m.Photo != nil {
			ev.Media = m.Photo.FileID
			ev.Text = m.Caption
		}
		return dispatch(c, ev)
	})

	b.Handle(telebot.OnCallback, func(c telebot.Context) error {
		if err := c.Respond(); err != nil {
			convLogger.WithError(err).Warn("Failed to acknowledge callback")
		}
		return dispatch(c, app.Event{Kind: app.EventMessageReceived, RecipientID: recipientOf(c), Text: c.Callback().Data})
	})
}

func recipientOf(c telebot.Context) string {
	return strconv.FormatInt(c.Sender().ID, 10)
}
