package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aditya/go-carpool/internal/control"
)

// TelegramMessenger sends through the Bot API. The client has no context
// support, so a cancelled ctx only stops calls that have not started.
type TelegramMessenger struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramMessenger(bot *tgbotapi.BotAPI) *TelegramMessenger {
	return &TelegramMessenger{bot: bot}
}

func (t *TelegramMessenger) SendMessage(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if len(kb) > 0 {
		markup, err := inlineMarkup(kb)
		if err != nil {
			return 0, err
		}
		msg.ReplyMarkup = markup
	}
	sent, err := t.bot.Send(msg)
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

func (t *TelegramMessenger) SendPhoto(ctx context.Context, chatID int64, photoRef, caption string, kb Keyboard) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(photoRef))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	if len(kb) > 0 {
		markup, err := inlineMarkup(kb)
		if err != nil {
			return 0, err
		}
		photo.ReplyMarkup = markup
	}
	sent, err := t.bot.Send(photo)
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

func (t *TelegramMessenger) SendVoice(ctx context.Context, chatID int64, voiceRef string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := t.bot.Send(tgbotapi.NewVoice(chatID, tgbotapi.FileID(voiceRef)))
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

func (t *TelegramMessenger) EditMessage(ctx context.Context, chatID int64, messageRef int, text string, kb Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	markup := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	if len(kb) > 0 {
		var err error
		if markup, err = inlineMarkup(kb); err != nil {
			return err
		}
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageRef, text, markup)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := t.bot.Request(edit)
	return classify(err)
}

func (t *TelegramMessenger) DeleteMessage(ctx context.Context, chatID int64, messageRef int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageRef))
	return classify(err)
}

func (t *TelegramMessenger) AnswerInteraction(ctx context.Context, interactionID, text string, alert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cb := tgbotapi.NewCallback(interactionID, text)
	if alert {
		cb = tgbotapi.NewCallbackWithAlert(interactionID, text)
	}
	_, err := t.bot.Request(cb)
	return classify(err)
}

func inlineMarkup(kb Keyboard) (tgbotapi.InlineKeyboardMarkup, error) {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			data, err := control.Encode(b.Control)
			if err != nil {
				return tgbotapi.InlineKeyboardMarkup{}, fmt.Errorf("button %q: %w", b.Text, err)
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, data))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}

// Bot API descriptions that mean the target message is already gone.
var goneDescriptions = []string{
	"message to delete not found",
	"message to edit not found",
	"message can't be deleted",
	"message is not modified",
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	desc := err.Error()
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		desc = apiErr.Message
	}
	lower := strings.ToLower(desc)
	for _, d := range goneDescriptions {
		if strings.Contains(lower, d) {
			return fmt.Errorf("%w: %s", ErrMessageGone, desc)
		}
	}
	return err
}
