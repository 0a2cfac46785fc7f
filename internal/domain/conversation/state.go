package conversation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Mode identifies which dialogue owns the user's input.
type Mode string

const (
	ModeIdle   Mode = "idle"
	ModeReport Mode = "report_task"

	// FormModePrefix prefixes the mode of every form dialogue, e.g. "form.register".
	FormModePrefix = "form."

	separator = "#"
)

var ErrMalformedState = errors.New("malformed conversation state")

// State is the whole resumable context of a conversation.
// Persisted as "idle" or "<mode>#<step>#<json-payload>".
type State struct {
	Mode    Mode
	Step    string
	Payload Payload
}

func Idle() State {
	return State{Mode: ModeIdle}
}

// InForm builds the state of a running form positioned on the given field.
func InForm(formID, field string, payload Payload) State {
	return State{Mode: Mode(FormModePrefix + formID), Step: field, Payload: payload}
}

// InReport builds the state of the report sub-dialogue.
func InReport(step string, payload Payload) State {
	return State{Mode: ModeReport, Step: step, Payload: payload}
}

func (s State) IsIdle() bool {
	return s.Mode == ModeIdle || s.Mode == ""
}

// FormID reports the active form, if any.
func (s State) FormID() (string, bool) {
	if !strings.HasPrefix(string(s.Mode), FormModePrefix) {
		return "", false
	}
	return strings.TrimPrefix(string(s.Mode), FormModePrefix), true
}

func (s State) Encode() (string, error) {
	if s.IsIdle() {
		return string(ModeIdle), nil
	}
	if strings.Contains(string(s.Mode), separator) || strings.Contains(s.Step, separator) {
		return "", fmt.Errorf("%w: mode %q or step %q contains %q", ErrMalformedState, s.Mode, s.Step, separator)
	}
	payload := s.Payload
	if payload == nil {
		payload = Payload{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode state payload: %w", err)
	}
	return string(s.Mode) + separator + s.Step + separator + string(raw), nil
}

// Decode parses a persisted state. The payload is the last segment, so it may itself contain '#'.
func Decode(raw string) (State, error) {
	if raw == "" || raw == string(ModeIdle) {
		return Idle(), nil
	}
	parts := strings.SplitN(raw, separator, 3)
	if len(parts) != 3 || parts[0] == "" {
		return Idle(), fmt.Errorf("%w: %q", ErrMalformedState, raw)
	}
	payload := Payload{}
	if err := json.Unmarshal([]byte(parts[2]), &payload); err != nil {
		return Idle(), fmt.Errorf("%w: payload: %v", ErrMalformedState, err)
	}
	if payload == nil {
		payload = Payload{}
	}
	return State{Mode: Mode(parts[0]), Step: parts[1], Payload: payload}, nil
}
