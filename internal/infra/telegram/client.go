package telegram

import (
	"context"
	"fmt"
	"strconv"

	"employee_task_bot/internal/domain/messenger"

	"gopkg.in/telebot.v3"
)

// keyboardOnlyText accompanies a keyboard sent without a message of its own.
const keyboardOnlyText = "Выберите действие"

// Sender is the subset of *telebot.Bot used for delivery.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements messenger.Messenger on top of gopkg.in/telebot.v3.
// Buttons become inline buttons whose callback data is the action id.
type TelebotAdapter struct {
	bot Sender
}

func NewTelebotAdapter(b Sender) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// Send delivers the bundle in order and stops at the first failure.
func (tba *TelebotAdapter) Send(ctx context.Context, recipientID string, messages []messenger.Message) error {
	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram recipient %q: %w", recipientID, err)
	}
	recipient := &telebot.User{ID: chatID}
	for i, m := range messages {
		if err := ctx.Err(); err != nil {
			return err
		}
		what, opts, err := render(m)
		if err != nil {
			return err
		}
		if _, err := tba.bot.Send(recipient, what, opts); err != nil {
			return fmt.Errorf("failed to send message %d of %d: %w", i+1, len(messages), err)
		}
	}
	return nil
}

func render(m messenger.Message) (interface{}, *telebot.SendOptions, error) {
	opts := &telebot.SendOptions{}
	switch msg := m.(type) {
	case messenger.Text:
		if msg.Keyboard != nil {
			opts.ReplyMarkup = inlineMarkup(msg.Keyboard.Buttons)
		}
		return msg.Body, opts, nil
	case messenger.File:
		return &telebot.Document{File: telebot.FromURL(msg.URL), FileName: msg.Name}, opts, nil
	case messenger.Keyboard:
		opts.ReplyMarkup = inlineMarkup(msg.Buttons)
		return keyboardOnlyText, opts, nil
	case messenger.RichCard:
		buttons := msg.Buttons
		if msg.Keyboard != nil {
			buttons = append(append([]messenger.Button(nil), buttons...), msg.Keyboard.Buttons...)
		}
		opts.ReplyMarkup = inlineMarkup(buttons)
		text := msg.AltText
		if text == "" {
			text = keyboardOnlyText
		}
		return text, opts, nil
	default:
		return nil, nil, fmt.Errorf("unsupported message type %T", m)
	}
}

func inlineMarkup(buttons []messenger.Button) *telebot.ReplyMarkup {
	rows := packRows(buttons)
	markup := &telebot.ReplyMarkup{InlineKeyboard: make([][]telebot.InlineButton, 0, len(rows))}
	for _, row := range rows {
		inline := make([]telebot.InlineButton, 0, len(row))
		for _, b := range row {
			inline = append(inline, telebot.InlineButton{Text: b.Label, Data: b.ActionID})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, inline)
	}
	return markup
}

// packRows fills rows left to right until their widths reach messenger.MaxColumns.
// A missing or oversized width takes a full row.
func packRows(buttons []messenger.Button) [][]messenger.Button {
	var rows [][]messenger.Button
	var row []messenger.Button
	used := 0
	for _, b := range buttons {
		w := b.Width
		if w <= 0 || w > messenger.MaxColumns {
			w = messenger.MaxColumns
		}
		if used+w > messenger.MaxColumns && len(row) > 0 {
			rows = append(rows, row)
			row, used = nil, 0
		}
		row = append(row, b)
		used += w
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}
