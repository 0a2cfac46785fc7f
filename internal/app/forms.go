package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"employee_task_bot/internal/domain/conversation"
)

// FieldKind selects how a field validates its input.
type FieldKind int

const (
	FreeText FieldKind = iota
	Regex
	MultiChoice
)

type Choice struct {
	ID    string
	Label string
}

// ChoiceSource lists the options of a choice field at prompt time.
type ChoiceSource func(ctx context.Context) ([]Choice, error)

// Field is one question of a form.
type Field struct {
	Key     string
	Prompt  string
	Kind    FieldKind
	Pattern *regexp.Regexp // Regex fields; must match the whole input
	Choices ChoiceSource   // MultiChoice fields
	Multi   bool           // MultiChoice fields: several answers, closed by the finish button
	// Parse optionally coerces an accepted text value; an error makes the input invalid.
	Parse func(value string) error
}

// Form is a declarative multi-step dialogue.
type Form struct {
	ID             string
	Fields         []Field
	CompletionText string
	// OnComplete runs once with the collected answers after the last field.
	OnComplete func(ctx context.Context, sess *Session, answers conversation.Payload) error
}

// Input is the raw inbound content fed to a form.
type Input struct {
	Text  string
	Media string
}

// StepOutcome tells the engine what to render after a continuation step.
type StepOutcome int

const (
	// OutcomeAsk: a different field became current.
	OutcomeAsk StepOutcome = iota
	// OutcomeReask: the input was invalid, the field stays current.
	OutcomeReask
	// OutcomeToggled: a multi-choice selection changed, the field stays current.
	OutcomeToggled
	// OutcomeComplete: the last field was answered.
	OutcomeComplete
)

// Step is the result of feeding one input to a form.
type Step struct {
	Outcome StepOutcome
	Field   *Field // nil when complete
	Answers conversation.Payload
}

// FullMatch compiles pattern anchored at both ends.
func FullMatch(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`^(?:` + pattern + `)$`)
}

func (f *Form) field(key string) (int, *Field) {
	for i := range f.Fields {
		if f.Fields[i].Key == key {
			return i, &f.Fields[i]
		}
	}
	return -1, nil
}

// Start positions a fresh run on the first field without validating anything.
func (f *Form) Start() Step {
	return Step{Outcome: OutcomeAsk, Field: &f.Fields[0], Answers: conversation.Payload{}}
}

// Continue validates input against the current field and advances on success.
// answers is never mutated; the returned Step carries the updated copy.
func (f *Form) Continue(ctx context.Context, current string, answers conversation.Payload, in Input) (Step, error) {
	idx, fld := f.field(current)
	if fld == nil {
		return f.Start(), nil
	}
	next := answers.Clone()
	value, valid, toggled, err := f.validate(ctx, fld, next, in)
	if err != nil {
		return Step{}, err
	}
	if toggled {
		return Step{Outcome: OutcomeToggled, Field: fld, Answers: next}, nil
	}
	if !valid {
		return Step{Outcome: OutcomeReask, Field: fld, Answers: answers.Clone()}, nil
	}
	next[fld.Key] = value
	if idx+1 >= len(f.Fields) {
		return Step{Outcome: OutcomeComplete, Answers: next}, nil
	}
	return Step{Outcome: OutcomeAsk, Field: &f.Fields[idx+1], Answers: next}, nil
}

// validate returns the value to commit, or reports a toggle already applied to answers.
func (f *Form) validate(ctx context.Context, fld *Field, answers conversation.Payload, in Input) (value any, valid, toggled bool, err error) {
	text := strings.TrimSpace(in.Text)
	switch fld.Kind {
	case FreeText:
		if text == "" {
			return nil, false, false, nil
		}
	case Regex:
		if fld.Pattern == nil || !fld.Pattern.MatchString(text) {
			return nil, false, false, nil
		}
	case MultiChoice:
		return f.choose(ctx, fld, answers, text)
	default:
		return nil, false, false, fmt.Errorf("form %s: field %s has unknown kind %d", f.ID, fld.Key, fld.Kind)
	}
	if fld.Parse != nil {
		if perr := fld.Parse(text); perr != nil {
			return nil, false, false, nil
		}
	}
	return text, true, false, nil
}

func (f *Form) choose(ctx context.Context, fld *Field, answers conversation.Payload, text string) (any, bool, bool, error) {
	if text == cmdFormChoiceEnd {
		if !fld.Multi {
			return nil, false, false, nil
		}
		selected := answers.Strings(fld.Key)
		if selected == nil {
			selected = []string{}
		}
		return selected, true, false, nil
	}
	if !strings.HasPrefix(text, cmdFormChoice) {
		return nil, false, false, nil
	}
	id := strings.TrimPrefix(text, cmdFormChoice)
	known, err := hasChoice(ctx, fld, id)
	if err != nil {
		return nil, false, false, err
	}
	if !known {
		return nil, false, false, nil
	}
	if !fld.Multi {
		return id, true, false, nil
	}
	answers[fld.Key] = toggle(answers.Strings(fld.Key), id)
	return nil, false, true, nil
}

func hasChoice(ctx context.Context, fld *Field, id string) (bool, error) {
	if fld.Choices == nil {
		return false, nil
	}
	choices, err := fld.Choices(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load choices for %s: %w", fld.Key, err)
	}
	for _, c := range choices {
		if c.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// toggle adds id when absent and removes it when present.
func toggle(selected []string, id string) []string {
	out := make([]string, 0, len(selected)+1)
	found := false
	for _, s := range selected {
		if s == id {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, id)
	}
	return out
}
