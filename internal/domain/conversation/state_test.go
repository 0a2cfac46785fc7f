package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Idle(t *testing.T) {
	raw, err := Idle().Encode()
	require.NoError(t, err)
	assert.Equal(t, "idle", raw)
}

func TestDecode_RoundTripForm(t *testing.T) {
	st := InForm("register", "departments", Payload{
		"full_name":   "Иван Петров",
		"departments": []string{"1", "3"},
	})

	raw, err := st.Encode()
	require.NoError(t, err)
	assert.Contains(t, raw, "form.register#departments#")

	got, err := Decode(raw)
	require.NoError(t, err)

	formID, ok := got.FormID()
	assert.True(t, ok)
	assert.Equal(t, "register", formID)
	assert.Equal(t, "departments", got.Step)
	assert.Equal(t, "Иван Петров", got.Payload.String("full_name"))
	assert.Equal(t, []string{"1", "3"}, got.Payload.Strings("departments"))
}

func TestDecode_PayloadMayContainSeparator(t *testing.T) {
	st := InReport("w-photo", Payload{"task_id": "7", "text": "done #2"})
	raw, err := st.Encode()
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ModeReport, got.Mode)
	assert.Equal(t, "done #2", got.Payload.String("text"))
}

func TestDecode_EmptyStep(t *testing.T) {
	got, err := Decode(`report_task##{"task_id":"4"}`)
	require.NoError(t, err)
	assert.Equal(t, ModeReport, got.Mode)
	assert.Equal(t, "", got.Step)
	assert.Equal(t, "4", got.Payload.String("task_id"))
}

func TestDecode_MalformedFallsBackToIdle(t *testing.T) {
	cases := []string{
		"form#register",
		"form.register#phone#{not json",
		"#step#{}",
	}
	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			got, err := Decode(raw)
			assert.ErrorIs(t, err, ErrMalformedState)
			assert.True(t, got.IsIdle())
		})
	}
}

func TestEncode_RejectsSeparatorInStep(t *testing.T) {
	_, err := InForm("register", "a#b", nil).Encode()
	assert.ErrorIs(t, err, ErrMalformedState)
}

func TestPayload_Clone(t *testing.T) {
	p := Payload{"departments": []any{"1", "2"}, "phone": "+7900"}
	c := p.Clone()
	c["phone"] = "changed"

	assert.Equal(t, "+7900", p.String("phone"))
	assert.Equal(t, []string{"1", "2"}, c.Strings("departments"))
}
