package app

import (
	"context"
	"errors"
	"testing"

	"employee_task_bot/internal/domain/conversation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testForm() *Form {
	colours := func(context.Context) ([]Choice, error) {
		return []Choice{{ID: "r", Label: "Red"}, {ID: "g", Label: "Green"}}, nil
	}
	return &Form{
		ID: "test",
		Fields: []Field{
			{Key: "name", Prompt: "name?", Kind: FreeText},
			{Key: "code", Prompt: "code?", Kind: Regex, Pattern: FullMatch(`\d{3}`)},
			{Key: "colours", Prompt: "colours?", Kind: MultiChoice, Multi: true, Choices: colours},
			{Key: "favourite", Prompt: "favourite?", Kind: MultiChoice, Choices: colours},
		},
	}
}

func TestForm_StartPositionsOnFirstField(t *testing.T) {
	step := testForm().Start()
	assert.Equal(t, OutcomeAsk, step.Outcome)
	assert.Equal(t, "name", step.Field.Key)
	assert.Empty(t, step.Answers)
}

func TestForm_FreeTextRejectsBlank(t *testing.T) {
	step, err := testForm().Continue(context.Background(), "name", conversation.Payload{}, Input{Text: "   "})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReask, step.Outcome)
	assert.Equal(t, "name", step.Field.Key)
	assert.False(t, step.Answers.Has("name"))
}

func TestForm_AdvancesAndKeepsInputUnchanged(t *testing.T) {
	answers := conversation.Payload{}
	step, err := testForm().Continue(context.Background(), "name", answers, Input{Text: " Анна "})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAsk, step.Outcome)
	assert.Equal(t, "code", step.Field.Key)
	assert.Equal(t, "Анна", step.Answers.String("name"))
	assert.Empty(t, answers)
}

func TestForm_RegexMustMatchWholeInput(t *testing.T) {
	f := testForm()
	for _, in := range []string{"12", "1234", "abc123"} {
		step, err := f.Continue(context.Background(), "code", conversation.Payload{"name": "A"}, Input{Text: in})
		require.NoError(t, err)
		assert.Equal(t, OutcomeReask, step.Outcome, in)
	}
	step, err := f.Continue(context.Background(), "code", conversation.Payload{"name": "A"}, Input{Text: "123"})
	require.NoError(t, err)
	assert.Equal(t, "colours", step.Field.Key)
}

func TestForm_ParseFailureReasks(t *testing.T) {
	f := &Form{ID: "p", Fields: []Field{{
		Key: "n", Kind: Regex, Pattern: FullMatch(`\d+`),
		Parse: func(v string) error {
			if v == "0" {
				return errors.New("zero")
			}
			return nil
		},
	}}}
	step, err := f.Continue(context.Background(), "n", conversation.Payload{}, Input{Text: "0"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReask, step.Outcome)

	step, err = f.Continue(context.Background(), "n", conversation.Payload{}, Input{Text: "7"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeComplete, step.Outcome)
	assert.Nil(t, step.Field)
}

func TestForm_MultiChoiceToggles(t *testing.T) {
	f := testForm()
	ctx := context.Background()

	step, err := f.Continue(ctx, "colours", conversation.Payload{}, Input{Text: cmdFormChoice + "r"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeToggled, step.Outcome)
	assert.Equal(t, []string{"r"}, step.Answers.Strings("colours"))

	step, err = f.Continue(ctx, "colours", step.Answers, Input{Text: cmdFormChoice + "g"})
	require.NoError(t, err)
	assert.Equal(t, []string{"r", "g"}, step.Answers.Strings("colours"))

	step, err = f.Continue(ctx, "colours", step.Answers, Input{Text: cmdFormChoice + "r"})
	require.NoError(t, err)
	assert.Equal(t, []string{"g"}, step.Answers.Strings("colours"))

	step, err = f.Continue(ctx, "colours", step.Answers, Input{Text: cmdFormChoiceEnd})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAsk, step.Outcome)
	assert.Equal(t, "favourite", step.Field.Key)
	assert.Equal(t, []string{"g"}, step.Answers.Strings("colours"))
}

func TestForm_MultiChoiceReselectRestoresEmptySet(t *testing.T) {
	f := testForm()
	ctx := context.Background()

	step, err := f.Continue(ctx, "colours", conversation.Payload{}, Input{Text: cmdFormChoice + "r"})
	require.NoError(t, err)
	step, err = f.Continue(ctx, "colours", step.Answers, Input{Text: cmdFormChoice + "r"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeToggled, step.Outcome)
	assert.Empty(t, step.Answers.Strings("colours"))

	step, err = f.Continue(ctx, "colours", step.Answers, Input{Text: cmdFormChoiceEnd})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAsk, step.Outcome)
	assert.Equal(t, []string{}, step.Answers.Strings("colours"))
}

func TestForm_MultiChoiceRejectsUnknownAndFreeText(t *testing.T) {
	f := testForm()
	for _, in := range []string{cmdFormChoice + "x", "Red", ""} {
		step, err := f.Continue(context.Background(), "colours", conversation.Payload{}, Input{Text: in})
		require.NoError(t, err)
		assert.Equal(t, OutcomeReask, step.Outcome, in)
	}
}

func TestForm_SingleChoiceAdvancesImmediately(t *testing.T) {
	f := testForm()
	step, err := f.Continue(context.Background(), "favourite", conversation.Payload{}, Input{Text: cmdFormChoice + "g"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeComplete, step.Outcome)
	assert.Equal(t, "g", step.Answers.String("favourite"))

	step, err = f.Continue(context.Background(), "favourite", conversation.Payload{}, Input{Text: cmdFormChoiceEnd})
	require.NoError(t, err)
	assert.Equal(t, OutcomeReask, step.Outcome)
}

func TestForm_UnknownFieldRestarts(t *testing.T) {
	step, err := testForm().Continue(context.Background(), "gone", conversation.Payload{"name": "A"}, Input{Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAsk, step.Outcome)
	assert.Equal(t, "name", step.Field.Key)
	assert.Empty(t, step.Answers)
}

func TestForm_ChoiceSourceErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	f := &Form{ID: "e", Fields: []Field{{
		Key: "c", Kind: MultiChoice,
		Choices: func(context.Context) ([]Choice, error) { return nil, boom },
	}}}
	_, err := f.Continue(context.Background(), "c", conversation.Payload{}, Input{Text: cmdFormChoice + "1"})
	assert.ErrorIs(t, err, boom)
}

func TestRegistrationPatterns(t *testing.T) {
	for _, phone := range []string{"+79001112233", "+7 900 123-45-67", "(8)900-123-45-67", "89001234567"} {
		assert.True(t, phonePattern.MatchString(phone), phone)
	}
	for _, phone := range []string{"", "телефон", "+7 (900) 123-45-67", "12345abc"} {
		assert.False(t, phonePattern.MatchString(phone), phone)
	}
	for _, date := range []string{"01.02.2030", "5.02.2030", "31.12.2099"} {
		assert.True(t, datePattern.MatchString(date), date)
	}
	for _, date := range []string{"2030-02-01", "1.2.2030", "01.02.1999"} {
		assert.False(t, datePattern.MatchString(date), date)
	}
}
