package telegram

import (
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// RegisterHelpCommand answers /help with the admin command list or a pointer to the menu.
func RegisterHelpCommand(b *telebot.Bot, adminTelegramID int64, baseLogger *logrus.Entry) {
	helpLogger := baseLogger.WithField("handler_group", "help")

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := helpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if adminTelegramID == 0 || senderID != adminTelegramID {
			return c.Send("Используйте кнопки меню для работы с задачами. Чтобы открыть меню, отправьте /menu, для повторной регистрации /reset.")
		}

		var helpText strings.Builder
		helpText.WriteString("Доступные команды Администратора:\n\n")
		helpText.WriteString("`/employees [pending|all]`\n - Список сотрудников. По умолчанию ожидающие подтверждения.\n\n")
		helpText.WriteString("`/confirm_employee <ID>`\n - Подтвердить сотрудника.\n\n")
		helpText.WriteString("`/unconfirm_employee <ID>`\n - Снять подтверждение.\n\n")
		helpText.WriteString("`/reports`\n - Отчеты на утверждении.\n\n")
		helpText.WriteString("`/approve_report <ID>`\n - Утвердить отчет.\n\n")
		helpText.WriteString("`/return_report <ID> <комментарий>`\n - Вернуть отчет на доработку.\n\n")
		helpText.WriteString("`/dayoffs`\n - Заявки на выходной.\n\n")
		helpText.WriteString("`/confirm_dayoff <ID>` / `/cancel_dayoff <ID>`\n - Утвердить или отклонить выходной.\n\n")
		helpText.WriteString("`/help`\n - Показать это справочное сообщение.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}
