package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func TestFromTelegram(t *testing.T) {
	user := &tgbotapi.User{ID: 42, FirstName: "Aziz"}
	chat := &tgbotapi.Chat{ID: 42}

	tests := []struct {
		name string
		in   tgbotapi.Update
		want Update
		ok   bool
	}{
		{
			name: "text",
			in:   tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat, Text: "/radar"}},
			want: Update{UserID: 42, ChatID: 42, UserName: "Aziz", Text: "/radar"},
			ok:   true,
		},
		{
			name: "photo keeps the largest size and the caption",
			in: tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat, Caption: "a box",
				Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}}},
			want: Update{UserID: 42, ChatID: 42, UserName: "Aziz", Text: "a box", PhotoRef: "large"},
			ok:   true,
		},
		{
			name: "voice",
			in:   tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat, Voice: &tgbotapi.Voice{FileID: "v1"}}},
			want: Update{UserID: 42, ChatID: 42, UserName: "Aziz", VoiceRef: "v1"},
			ok:   true,
		},
		{
			name: "button tap",
			in: tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb1", From: user, Data: "radar:0",
				Message: &tgbotapi.Message{MessageID: 7, Chat: chat}}},
			want: Update{UserID: 42, ChatID: 42, UserName: "Aziz", InteractionID: "cb1", Data: "radar:0", MessageRef: 7},
			ok:   true,
		},
		{
			name: "sticker",
			in:   tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: chat}},
		},
		{
			name: "channel post",
			in:   tgbotapi.Update{ChannelPost: &tgbotapi.Message{Chat: chat, Text: "hi"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromTelegram(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
