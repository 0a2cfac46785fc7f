package messenger

import "context"

// Messenger delivers message bundles to a recipient.
// This decouples the application logic from the chat transport.
type Messenger interface {
	Send(ctx context.Context, recipientID string, messages []Message) error
}

// Message is one outbound item of a bundle.
type Message interface {
	isMessage()
}

// Text is a plain message, optionally carrying the persistent menu keyboard.
type Text struct {
	Body     string
	Keyboard *Keyboard
}

type File struct {
	URL  string
	Name string
	Size int64
}

// Keyboard is an interactive set of buttons shown to the user.
type Keyboard struct {
	Buttons []Button
}

// RichCard is a block of buttons rendered as a card.
type RichCard struct {
	AltText    string
	Background string
	Buttons    []Button
	Keyboard   *Keyboard
}

// Button sends ActionID back as the user's message when pressed.
type Button struct {
	Label    string
	ActionID string
	Width    int // columns out of MaxColumns
	Height   int
	Style    string
}

// MaxColumns is the width of a full keyboard row.
const MaxColumns = 6

func (Text) isMessage()     {}
func (File) isMessage()     {}
func (Keyboard) isMessage() {}
func (RichCard) isMessage() {}
