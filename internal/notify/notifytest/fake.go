// Package notifytest provides an in-memory notify.Messenger for tests.
package notifytest

import (
	"context"
	"errors"
	"sync"

	"github.com/aditya/go-carpool/internal/notify"
)

var ErrSendFailed = errors.New("notifytest: send failed")

type Sent struct {
	ChatID     int64
	MessageRef int
	Text       string
	PhotoRef   string
	VoiceRef   string
	Keyboard   notify.Keyboard
}

type Answer struct {
	InteractionID string
	Text          string
	Alert         bool
}

// Messenger records every call. Messages stay "live" until deleted; deleting
// an unknown or already deleted message returns notify.ErrMessageGone.
type Messenger struct {
	mu      sync.Mutex
	nextRef int
	sent    []Sent
	live    map[int64]map[int]bool
	deleted []Sent
	edits   []Sent
	answers []Answer

	// FailFor makes every send to these chats fail.
	FailFor map[int64]bool
	// FailDeletes makes DeleteMessage fail with a non-gone error.
	FailDeletes bool
}

func New() *Messenger {
	return &Messenger{live: make(map[int64]map[int]bool), FailFor: make(map[int64]bool)}
}

func (m *Messenger) record(chatID int64, s Sent, track bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFor[chatID] {
		return 0, ErrSendFailed
	}
	m.nextRef++
	s.ChatID = chatID
	s.MessageRef = m.nextRef
	m.sent = append(m.sent, s)
	if track {
		if m.live[chatID] == nil {
			m.live[chatID] = make(map[int]bool)
		}
		m.live[chatID][s.MessageRef] = true
	}
	return s.MessageRef, nil
}

func (m *Messenger) SendMessage(ctx context.Context, chatID int64, text string, kb notify.Keyboard) (int, error) {
	return m.record(chatID, Sent{Text: text, Keyboard: kb}, true)
}

func (m *Messenger) SendPhoto(ctx context.Context, chatID int64, photoRef, caption string, kb notify.Keyboard) (int, error) {
	return m.record(chatID, Sent{Text: caption, PhotoRef: photoRef, Keyboard: kb}, true)
}

func (m *Messenger) SendVoice(ctx context.Context, chatID int64, voiceRef string) (int, error) {
	return m.record(chatID, Sent{VoiceRef: voiceRef}, false)
}

func (m *Messenger) EditMessage(ctx context.Context, chatID int64, messageRef int, text string, kb notify.Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.live[chatID][messageRef] {
		return notify.ErrMessageGone
	}
	m.edits = append(m.edits, Sent{ChatID: chatID, MessageRef: messageRef, Text: text, Keyboard: kb})
	return nil
}

func (m *Messenger) DeleteMessage(ctx context.Context, chatID int64, messageRef int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDeletes {
		return ErrSendFailed
	}
	if !m.live[chatID][messageRef] {
		return notify.ErrMessageGone
	}
	delete(m.live[chatID], messageRef)
	m.deleted = append(m.deleted, Sent{ChatID: chatID, MessageRef: messageRef})
	return nil
}

func (m *Messenger) AnswerInteraction(ctx context.Context, interactionID, text string, alert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, Answer{InteractionID: interactionID, Text: text, Alert: alert})
	return nil
}

// SentTo returns everything sent to chatID, voice notes included.
func (m *Messenger) SentTo(chatID int64) []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Sent
	for _, s := range m.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// Last returns the most recent send to chatID.
func (m *Messenger) Last(chatID int64) (Sent, bool) {
	sent := m.SentTo(chatID)
	if len(sent) == 0 {
		return Sent{}, false
	}
	return sent[len(sent)-1], true
}

// Live counts undeleted messages in chatID.
func (m *Messenger) Live(chatID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live[chatID])
}

func (m *Messenger) Deleted() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.deleted...)
}

func (m *Messenger) Answers() []Answer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Answer(nil), m.answers...)
}

func (m *Messenger) Edits() []Sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Sent(nil), m.edits...)
}
