package app

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"employee_task_bot/internal/domain/conversation"
	"employee_task_bot/internal/domain/employee"
	"employee_task_bot/internal/domain/messenger"
)

const (
	FormRegister = "register"
	FormDayOff   = "day_off"

	dayOffDateLayout = "2.01.2006"
)

var (
	phonePattern = FullMatch(`[+]*[(]{0,1}[0-9]{1,4}[)]{0,1}[-\s\./0-9]*`)
	datePattern  = FullMatch(`[0-3]?\d\.[0-1]\d.20\d\d`)
)

func (e *Engine) registrationForm() *Form {
	return &Form{
		ID: FormRegister,
		Fields: []Field{
			{Key: "full_name", Prompt: "Введите ФИО", Kind: FreeText},
			{Key: "phone", Prompt: "Введите номер телефона", Kind: Regex, Pattern: phonePattern},
			{Key: "departments", Prompt: "Выберите отделы", Kind: MultiChoice, Multi: true, Choices: e.departmentChoices},
		},
		CompletionText: "Вы зарегистрированы. После подтверждения администратором вам начнут приходить задачи",
		OnComplete:     e.completeRegistration,
	}
}

func (e *Engine) dayOffForm() *Form {
	parse := func(value string) error {
		_, err := e.parseDate(value)
		return err
	}
	return &Form{
		ID: FormDayOff,
		Fields: []Field{
			{Key: "start_date", Prompt: "Введите дату начала выходного (ДД.ММ.ГГГГ)", Kind: Regex, Pattern: datePattern, Parse: parse},
			{Key: "end_date", Prompt: "Введите дату окончания выходного (ДД.ММ.ГГГГ)", Kind: Regex, Pattern: datePattern, Parse: parse},
		},
		CompletionText: "Заявка на выходной отправлена на рассмотрение",
		OnComplete:     e.completeDayOff,
	}
}

func (e *Engine) parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dayOffDateLayout, value, e.location)
}

func (e *Engine) departmentChoices(ctx context.Context) ([]Choice, error) {
	deps, err := e.departments.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	choices := make([]Choice, 0, len(deps))
	for _, d := range deps {
		choices = append(choices, Choice{ID: strconv.FormatInt(d.ID, 10), Label: d.Title})
	}
	return choices, nil
}

func (e *Engine) completeRegistration(ctx context.Context, sess *Session, answers conversation.Payload) error {
	var departmentIDs []int64
	for _, raw := range answers.Strings("departments") {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid department id %q: %w", raw, err)
		}
		departmentIDs = append(departmentIDs, id)
	}
	emp := &employee.Employee{
		FullName:      answers.String("full_name"),
		Phone:         answers.String("phone"),
		RecipientID:   sess.Event.RecipientID,
		DepartmentIDs: departmentIDs,
	}
	if err := e.employees.Save(ctx, emp); err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	sess.Employee = emp
	e.logger.WithField("employee_id", emp.ID).WithField("recipient", emp.RecipientID).Info("Employee registered")
	sess.Reply(messenger.Text{Body: fmt.Sprintf("Ваш ID: %s", sess.Event.RecipientID), Keyboard: defaultKeyboard()})
	return nil
}

func (e *Engine) completeDayOff(ctx context.Context, sess *Session, answers conversation.Payload) error {
	if sess.Employee == nil {
		return employee.ErrNotFound
	}
	start, err := e.parseDate(answers.String("start_date"))
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}
	end, err := e.parseDate(answers.String("end_date"))
	if err != nil {
		return fmt.Errorf("invalid end date: %w", err)
	}
	if end.Before(start) {
		start, end = end, start
	}
	d := &employee.DayOff{EmployeeID: sess.Employee.ID, StartDate: start, EndDate: end}
	if err := e.dayOffs.Create(ctx, d); err != nil {
		return fmt.Errorf("failed to create day-off request: %w", err)
	}
	e.logger.WithField("day_off_id", d.ID).WithField("employee_id", d.EmployeeID).Info("Day-off requested")
	return nil
}
