package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const pollTimeout = 60

// TelegramPoller long-polls the Bot API and converts updates.
type TelegramPoller struct {
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
}

func NewTelegramPoller(bot *tgbotapi.BotAPI, logger *zap.Logger) *TelegramPoller {
	return &TelegramPoller{bot: bot, logger: logger.Named("poller")}
}

// Updates starts polling. The channel closes once ctx is done.
func (p *TelegramPoller) Updates(ctx context.Context) <-chan Update {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	in := p.bot.GetUpdatesChan(cfg)

	out := make(chan Update)
	go func() {
		defer close(out)
		defer p.bot.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case tu, ok := <-in:
				if !ok {
					return
				}
				u, ok := FromTelegram(tu)
				if !ok {
					p.logger.Debug("skipping unsupported update", zap.Int("update_id", tu.UpdateID))
					continue
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// FromTelegram keeps private messages and button taps; everything else is
// reported as unsupported.
func FromTelegram(tu tgbotapi.Update) (Update, bool) {
	if cq := tu.CallbackQuery; cq != nil {
		if cq.From == nil {
			return Update{}, false
		}
		u := Update{
			UserID:        cq.From.ID,
			ChatID:        cq.From.ID,
			UserName:      cq.From.FirstName,
			InteractionID: cq.ID,
			Data:          cq.Data,
		}
		if cq.Message != nil {
			u.MessageRef = cq.Message.MessageID
			if cq.Message.Chat != nil {
				u.ChatID = cq.Message.Chat.ID
			}
		}
		return u, true
	}

	m := tu.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return Update{}, false
	}
	u := Update{
		UserID:   m.From.ID,
		ChatID:   m.Chat.ID,
		UserName: m.From.FirstName,
		Text:     m.Text,
	}
	if m.Voice != nil {
		u.VoiceRef = m.Voice.FileID
	}
	if len(m.Photo) > 0 {
		u.PhotoRef = m.Photo[len(m.Photo)-1].FileID
		u.Text = m.Caption
	}
	if u.Text == "" && u.VoiceRef == "" && u.PhotoRef == "" {
		return Update{}, false
	}
	return u, true
}
