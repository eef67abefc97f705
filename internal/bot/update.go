package bot

import (
	"strings"
)

// Update is one inbound chat event with the platform details stripped.
// Interactions (button taps) carry InteractionID and Data; messages carry
// Text, VoiceRef or PhotoRef.
type Update struct {
	UserID        int64
	ChatID        int64
	UserName      string
	Text          string
	VoiceRef      string
	PhotoRef      string
	InteractionID string
	Data          string
	MessageRef    int
}

func (u Update) IsInteraction() bool {
	return u.InteractionID != ""
}

// Command splits "/radar@carpool_bot 2" into "radar" and "2".
func (u Update) Command() (name, args string, ok bool) {
	text := strings.TrimSpace(u.Text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, args, _ = strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

func (u Update) kind() string {
	switch {
	case u.IsInteraction():
		return "interaction"
	case u.VoiceRef != "":
		return "voice"
	case u.PhotoRef != "":
		return "photo"
	}
	if _, _, ok := u.Command(); ok {
		return "command"
	}
	return "text"
}
