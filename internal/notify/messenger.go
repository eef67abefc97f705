package notify

import (
	"context"
	"errors"

	"github.com/aditya/go-carpool/internal/control"
)

// ErrMessageGone is returned when a message to edit or delete no longer
// exists on the chat platform. Retractions treat it as success.
var ErrMessageGone = errors.New("notify: message already gone")

// Button is one inline action. Control is encoded into the callback payload.
type Button struct {
	Text    string
	Control control.Control
}

// Keyboard is a grid of buttons, one slice per row.
type Keyboard [][]Button

// Row is a shorthand for a keyboard row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Messenger is the outbound side of the chat platform. Every call is best
// effort; message refs are only meaningful to the same chat.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photoRef, caption string, kb Keyboard) (int, error)
	SendVoice(ctx context.Context, chatID int64, voiceRef string) (int, error)
	EditMessage(ctx context.Context, chatID int64, messageRef int, text string, kb Keyboard) error
	DeleteMessage(ctx context.Context, chatID int64, messageRef int) error
	AnswerInteraction(ctx context.Context, interactionID, text string, alert bool) error
}

// IsGone reports whether err means the target message is already gone.
func IsGone(err error) bool {
	return errors.Is(err, ErrMessageGone)
}
