package notify

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// LogMessenger writes every outbound call to the log. It is used when no bot
// token is configured.
type LogMessenger struct {
	logger *zap.Logger
	nextID atomic.Int64
}

func NewLogMessenger(logger *zap.Logger) *LogMessenger {
	return &LogMessenger{logger: logger.Named("messenger")}
}

func (l *LogMessenger) SendMessage(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error) {
	id := int(l.nextID.Add(1))
	l.logger.Info("send message", zap.Int64("chat_id", chatID), zap.Int("message_ref", id),
		zap.Int("button_rows", len(kb)), zap.String("text", text))
	return id, nil
}

func (l *LogMessenger) SendPhoto(ctx context.Context, chatID int64, photoRef, caption string, kb Keyboard) (int, error) {
	id := int(l.nextID.Add(1))
	l.logger.Info("send photo", zap.Int64("chat_id", chatID), zap.Int("message_ref", id),
		zap.String("photo_ref", photoRef), zap.String("caption", caption))
	return id, nil
}

func (l *LogMessenger) SendVoice(ctx context.Context, chatID int64, voiceRef string) (int, error) {
	id := int(l.nextID.Add(1))
	l.logger.Info("send voice", zap.Int64("chat_id", chatID), zap.Int("message_ref", id), zap.String("voice_ref", voiceRef))
	return id, nil
}

func (l *LogMessenger) EditMessage(ctx context.Context, chatID int64, messageRef int, text string, kb Keyboard) error {
	l.logger.Info("edit message", zap.Int64("chat_id", chatID), zap.Int("message_ref", messageRef), zap.String("text", text))
	return nil
}

func (l *LogMessenger) DeleteMessage(ctx context.Context, chatID int64, messageRef int) error {
	l.logger.Info("delete message", zap.Int64("chat_id", chatID), zap.Int("message_ref", messageRef))
	return nil
}

func (l *LogMessenger) AnswerInteraction(ctx context.Context, interactionID, text string, alert bool) error {
	l.logger.Debug("answer interaction", zap.String("interaction_id", interactionID), zap.String("text", text))
	return nil
}
