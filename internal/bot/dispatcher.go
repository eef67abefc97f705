// Package bot turns chat updates into service calls and replies.
package bot

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aditya/go-carpool/internal/cache"
	"github.com/aditya/go-carpool/internal/control"
	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/metrics"
	"github.com/aditya/go-carpool/internal/notify"
	"github.com/aditya/go-carpool/internal/service"
)

const defaultConcurrency = 64

// Limiter throttles chatty users. *cache.InteractionLimiter satisfies it.
type Limiter interface {
	Allow(ctx context.Context, userRef int64) bool
}

// Diagnostics receives failures nobody handled.
type Diagnostics interface {
	Diagnostic(ctx context.Context, where string, cause interface{})
}

type Deps struct {
	Requests    service.RequestService
	Negotiation service.NegotiationService
	Claims      service.ClaimService
	Profiles    service.ProfileService
	Routes      *service.RouteTable
	Sessions    cache.SessionCache
	Messenger   notify.Messenger
	Limiter     Limiter
	Diagnostics Diagnostics
	Logger      *zap.Logger
	// Concurrency bounds how many updates are handled at once.
	Concurrency int
}

type Dispatcher struct {
	requests    service.RequestService
	negotiation service.NegotiationService
	claims      service.ClaimService
	profiles    service.ProfileService
	routes      *service.RouteTable
	sessions    cache.SessionCache
	messenger   notify.Messenger
	limiter     Limiter
	diagnostics Diagnostics
	logger      *zap.Logger
	concurrency int
}

func NewDispatcher(d Deps) *Dispatcher {
	if d.Concurrency <= 0 {
		d.Concurrency = defaultConcurrency
	}
	return &Dispatcher{
		requests:    d.Requests,
		negotiation: d.Negotiation,
		claims:      d.Claims,
		profiles:    d.Profiles,
		routes:      d.Routes,
		sessions:    d.Sessions,
		messenger:   d.Messenger,
		limiter:     d.Limiter,
		diagnostics: d.Diagnostics,
		logger:      d.Logger.Named("bot"),
		concurrency: d.Concurrency,
	}
}

// Run handles updates until the channel closes or ctx is done, each in its
// own goroutine. It waits for in-flight handlers before returning.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan Update) error {
	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for {
		select {
		case <-ctx.Done():
			g.Wait()
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				d.Handle(ctx, u)
				return nil
			})
		}
	}
}

// Handle processes one update. It never panics; every interaction is
// answered exactly once.
func (d *Dispatcher) Handle(ctx context.Context, u Update) {
	kind := u.kind()
	metrics.UpdatesHandledTotal.WithLabelValues(kind).Inc()
	log := d.logger.With(zap.Int64("user_id", u.UserID), zap.String("kind", kind))

	answered := false
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("update handler panicked", zap.Any("panic", rec), zap.Stack("stack"))
			switch {
			case !u.IsInteraction():
				d.reply(ctx, u, notify.TextGenericError, nil)
			case !answered:
				d.answer(ctx, u, notify.TextGenericError, true)
			}
			if d.diagnostics != nil {
				d.diagnostics.Diagnostic(ctx, "update "+kind, rec)
			}
		}
	}()

	if d.limiter != nil && !d.limiter.Allow(ctx, u.UserID) {
		log.Debug("update throttled")
		if u.IsInteraction() {
			d.answer(ctx, u, notify.TextSlowDown, true)
			answered = true
			return
		}
		d.reply(ctx, u, notify.TextSlowDown, nil)
		return
	}

	if u.IsInteraction() {
		notice, err := d.handleInteraction(ctx, u)
		answered = true
		if err != nil {
			d.answer(ctx, u, d.errorText(ctx, u, err, log), true)
			return
		}
		d.answer(ctx, u, notice, false)
		return
	}

	if err := d.handleMessage(ctx, u); err != nil {
		d.reply(ctx, u, d.errorText(ctx, u, err, log), nil)
	}
}

// errorText picks the reply for a failed action. Structured errors are
// shown as is; anything else is logged and reported to the operators.
func (d *Dispatcher) errorText(ctx context.Context, u Update, err error, log *zap.Logger) string {
	if errors.Is(err, control.ErrMalformed) || errors.Is(err, control.ErrUnknown) {
		return notify.TextStale
	}
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Kind == apperrors.KindInternal {
		metrics.OperationErrorsTotal.WithLabelValues("bot_" + u.kind()).Inc()
		log.Error("update failed", zap.Error(err))
		if d.diagnostics != nil {
			d.diagnostics.Diagnostic(ctx, "update "+u.kind(), err)
		}
		return notify.TextGenericError
	}
	if appErr.Code == "stale" || (u.IsInteraction() && appErr.Kind == apperrors.KindNotFound) {
		return notify.TextStale
	}
	if appErr.Kind == apperrors.KindTransient {
		log.Warn("transient failure", zap.Error(err))
	}
	return appErr.Message
}

func (d *Dispatcher) reply(ctx context.Context, u Update, text string, kb notify.Keyboard) {
	if _, err := d.messenger.SendMessage(ctx, u.ChatID, text, kb); err != nil {
		d.logger.Warn("reply failed", zap.Int64("chat_id", u.ChatID), zap.Error(err))
	}
}

func (d *Dispatcher) answer(ctx context.Context, u Update, text string, alert bool) {
	if err := d.messenger.AnswerInteraction(ctx, u.InteractionID, text, alert); err != nil {
		d.logger.Warn("answer interaction failed", zap.String("interaction_id", u.InteractionID), zap.Error(err))
	}
}
