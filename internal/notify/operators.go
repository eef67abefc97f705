package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/aditya/go-carpool/internal/models"
)

// OperatorNotifier forwards notices to the operator chats.
type OperatorNotifier struct {
	messenger Messenger
	chatIDs   []int64
	logger    *zap.Logger
}

func NewOperatorNotifier(messenger Messenger, chatIDs []int64, logger *zap.Logger) *OperatorNotifier {
	return &OperatorNotifier{messenger: messenger, chatIDs: chatIDs, logger: logger}
}

// NotifyOperators announces a newly approved carrier.
func (o *OperatorNotifier) NotifyOperators(ctx context.Context, carrier *models.Profile) error {
	o.broadcast(ctx, NewCarrier(carrier))
	return nil
}

// Diagnostic reports an unexpected failure. It never fails.
func (o *OperatorNotifier) Diagnostic(ctx context.Context, where string, cause interface{}) {
	o.broadcast(ctx, Diagnostic(where, cause))
}

func (o *OperatorNotifier) broadcast(ctx context.Context, text string) {
	for _, id := range o.chatIDs {
		if _, err := o.messenger.SendMessage(ctx, id, text, nil); err != nil {
			o.logger.Warn("operator notice failed", zap.Int64("chat_id", id), zap.Error(err))
		}
	}
}
