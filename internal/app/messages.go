package app

import (
	"fmt"
	"strings"

	"employee_task_bot/internal/domain/messenger"
	"employee_task_bot/internal/domain/task"
)

// Command strings carried in button action ids and parsed back from inbound text.
const (
	cmdReset           = "/reset"
	cmdAcceptTask      = "/accept_task#"
	cmdStartReport     = "/start_report_task#"
	cmdReport          = "/report_task#"
	cmdTasksActive     = "/tasks.active"
	cmdTasksIgnored    = "/tasks.ignored"
	cmdTaskDetails     = "/task#"
	cmdDayOffCreate    = "/weekend.create"
	cmdFormChoice      = "/form_choice#"
	cmdFormChoiceEnd   = "/form_choice_end"
	reportActionPhoto  = "photo"
	reportActionSend   = "send"
	reportActionDelete = "delete"
)

const (
	textNotRegistered    = "Вы ещё не зарегистрированы. Отправьте /reset, чтобы пройти регистрацию"
	textTaskNotFound     = "Задача не найдена или уже закрыта"
	textNoTasks          = "Пусто"
	textCompletionFailed = "Не удалось сохранить данные, попробуйте ещё раз"
	textReportPrompt     = "Введите текст"
	textReportPhoto      = "Приложите фото"
	textReportTextSaved  = "Текст принят"
	textReportPhotoSaved = "Фото принято"
	textReportEmpty      = "Отчет пуст. Введите текст"
	textReportDeleted    = "Отчет удален"
	textReportSent       = "Отчет отправлен на утверждение"
)

const (
	colorPrimary = "#2cc429"
	colorAccept  = "#69C48A"
	colorWhite   = "#ffffff"
)

// defaultKeyboard is the persistent menu shown whenever no dialogue is running.
func defaultKeyboard() *messenger.Keyboard {
	return &messenger.Keyboard{Buttons: []messenger.Button{
		{Label: "Непринятые задачи", ActionID: cmdTasksIgnored, Width: 3, Height: 1, Style: colorPrimary},
		{Label: "Задачи на исполнении", ActionID: cmdTasksActive, Width: 3, Height: 1, Style: colorPrimary},
		{Label: "Выходной", ActionID: cmdDayOffCreate, Width: messenger.MaxColumns, Height: 1, Style: colorPrimary},
	}}
}

func menuMessage() messenger.Message {
	return *defaultKeyboard()
}

func textWithMenu(body string) messenger.Message {
	return messenger.Text{Body: body, Keyboard: defaultKeyboard()}
}

// resolveURL prefixes relative media paths with the public media host.
func resolveURL(mediaHost, url string) string {
	if url == "" || strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return strings.TrimRight(mediaHost, "/") + "/" + strings.TrimLeft(url, "/")
}

func fileMessage(mediaHost string, f *task.File) messenger.File {
	return messenger.File{URL: resolveURL(mediaHost, f.URL), Name: f.Name, Size: f.Size}
}

// taskAnnouncement is the bundle sent when a task reaches an employee.
func taskAnnouncement(mediaHost string, t *task.Task) []messenger.Message {
	msgs := []messenger.Message{
		messenger.Text{Body: fmt.Sprintf("Вам поставлена новая задача «%s»", t.Name)},
	}
	if t.File != nil {
		msgs = append(msgs, fileMessage(mediaHost, t.File))
	}
	msgs = append(msgs, messenger.RichCard{
		AltText:    "Принять",
		Background: colorAccept,
		Buttons: []messenger.Button{
			{Label: "Принять", ActionID: fmt.Sprintf("%s%d", cmdAcceptTask, t.ID), Width: 3, Height: 1, Style: colorPrimary},
		},
	})
	return msgs
}

// acceptedTaskMessages confirms acceptance and offers to start a report.
func acceptedTaskMessages(mediaHost string, t *task.Task) []messenger.Message {
	msgs := []messenger.Message{
		messenger.Text{Body: fmt.Sprintf("Вы приняли задачу \"%s\"", t.Name)},
		messenger.Text{Body: fmt.Sprintf("%s\n\n%s", t.Name, t.Text)},
	}
	if t.File != nil {
		msgs = append(msgs, fileMessage(mediaHost, t.File))
	}
	msgs = append(msgs, messenger.RichCard{
		AltText: "Отчёт",
		Buttons: []messenger.Button{
			{Label: "Отчёт", ActionID: fmt.Sprintf("%s%d", cmdStartReport, t.ID), Width: 3, Height: 1, Style: colorPrimary},
		},
		Keyboard: defaultKeyboard(),
	})
	return msgs
}

// taskDetails repeats the task body with its attachment and the accept button.
func taskDetails(mediaHost string, t *task.Task) []messenger.Message {
	msgs := []messenger.Message{messenger.Text{Body: fmt.Sprintf("%s\n\n%s", t.Name, t.Text)}}
	if t.File != nil {
		msgs = append(msgs, fileMessage(mediaHost, t.File))
	}
	return append(msgs, messenger.RichCard{
		AltText: "Принять",
		Buttons: []messenger.Button{
			{Label: "Принять", ActionID: fmt.Sprintf("%s%d", cmdAcceptTask, t.ID), Width: 3, Height: 1, Style: colorPrimary},
			{Label: "Отчёт", ActionID: fmt.Sprintf("%s%d", cmdStartReport, t.ID), Width: 3, Height: 1, Style: colorPrimary},
		},
		Keyboard: defaultKeyboard(),
	})
}

func reportPromptText() messenger.Message {
	return messenger.Text{Body: textReportPrompt}
}

func taskListCard(tasks []*task.Task) messenger.RichCard {
	buttons := make([]messenger.Button, 0, len(tasks)*3)
	for _, t := range tasks {
		action := fmt.Sprintf("%s%d", cmdTaskDetails, t.ID)
		buttons = append(buttons, messenger.Button{Label: t.Name, ActionID: action, Width: messenger.MaxColumns, Height: 1})
		if body := truncateRunes(t.Text, 300); body != "" {
			buttons = append(buttons, messenger.Button{Label: body, ActionID: action, Width: messenger.MaxColumns, Height: 4})
		}
		buttons = append(buttons, messenger.Button{Label: "Подробнее", ActionID: action, Width: messenger.MaxColumns, Height: 1})
	}
	return messenger.RichCard{AltText: "Задачи", Background: colorWhite, Buttons: buttons, Keyboard: defaultKeyboard()}
}

func reportKeyboard() messenger.Keyboard {
	return messenger.Keyboard{Buttons: []messenger.Button{
		{Label: "Отправить", ActionID: cmdReport + reportActionSend, Width: messenger.MaxColumns, Height: 1, Style: colorPrimary},
		{Label: "Приложить фото", ActionID: cmdReport + reportActionPhoto, Width: messenger.MaxColumns, Height: 1, Style: colorPrimary},
		{Label: "Удалить отчёт", ActionID: cmdReport + reportActionDelete, Width: messenger.MaxColumns, Height: 1, Style: colorPrimary},
	}}
}

// choiceKeyboard lists the choices of a field, marking selected ones.
func choiceKeyboard(choices []Choice, selected []string, multi bool) messenger.Keyboard {
	marked := make(map[string]bool, len(selected))
	for _, id := range selected {
		marked[id] = true
	}
	buttons := make([]messenger.Button, 0, len(choices)+1)
	for _, c := range choices {
		label := c.Label
		if marked[c.ID] {
			label = "✅ " + label
		}
		buttons = append(buttons, messenger.Button{
			Label: label, ActionID: cmdFormChoice + c.ID, Width: messenger.MaxColumns, Height: 1, Style: colorPrimary,
		})
	}
	if multi {
		buttons = append(buttons, messenger.Button{
			Label: "Завершить", ActionID: cmdFormChoiceEnd, Width: messenger.MaxColumns, Height: 1, Style: colorPrimary,
		})
	}
	return messenger.Keyboard{Buttons: buttons}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
