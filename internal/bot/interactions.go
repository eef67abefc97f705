package bot

import (
	"context"

	"go.uber.org/zap"

	"github.com/aditya/go-carpool/internal/control"
	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/notify"
)

// handleInteraction runs a button tap and returns the short notice shown to
// the user on success.
func (d *Dispatcher) handleInteraction(ctx context.Context, u Update) (string, error) {
	c, err := control.Decode(u.Data)
	if err != nil {
		d.logger.Debug("undecodable control", zap.String("data", u.Data), zap.Error(err))
		return "", err
	}

	switch c.Kind {
	case control.KindBid:
		return d.startBid(ctx, u, c.RequestID)

	case control.KindClaim:
		if _, err := d.claims.Claim(ctx, c.RequestID, u.UserID); err != nil {
			return "", err
		}
		return notify.TextTaken, nil

	case control.KindAccept:
		if _, err := d.negotiation.AcceptOffer(ctx, u.UserID, c.RequestID, c.OfferID); err != nil {
			return "", err
		}
		d.dropKeyboard(ctx, u)
		return notify.TextAccepted, nil

	case control.KindDecline:
		if _, err := d.negotiation.DeclineOffer(ctx, u.UserID, c.RequestID, c.OfferID); err != nil {
			return "", err
		}
		d.dropKeyboard(ctx, u)
		return notify.TextDeclined, nil

	case control.KindCancel:
		req, err := d.requests.RequestCancel(ctx, u.UserID, c.RequestID)
		if err != nil {
			return "", err
		}
		text, kb := notify.CancelConfirm(req)
		d.reply(ctx, u, text, kb)
		return "", nil

	case control.KindCancelYes:
		if _, err := d.requests.ConfirmCancel(ctx, u.UserID, c.RequestID); err != nil {
			return "", err
		}
		d.reply(ctx, u, notify.RequestCancelled(), nil)
		return "", nil

	case control.KindCancelNo:
		if err := d.requests.AbortCancel(ctx, u.UserID, c.RequestID); err != nil {
			return "", err
		}
		d.reply(ctx, u, notify.TextNotCancelled, nil)
		return "", nil

	case control.KindComplete:
		if _, err := d.requests.CompleteRequest(ctx, u.UserID, c.RequestID); err != nil {
			return "", err
		}
		return "", nil

	case control.KindRoute:
		_, route, err := d.profiles.GoOnline(ctx, u.UserID, c.Route)
		if err != nil {
			return "", err
		}
		d.reply(ctx, u, notify.WentOnline(route), nil)
		return "", nil

	case control.KindWizardRoute:
		return "", d.wizardRoute(ctx, u, c.Route)

	case control.KindRadarPage:
		text, kb, err := d.radarPage(ctx, u.UserID, c.Page)
		if err != nil {
			return "", err
		}
		if err := d.messenger.EditMessage(ctx, u.ChatID, u.MessageRef, text, kb); err != nil {
			d.reply(ctx, u, text, kb)
		}
		return "", nil
	}
	return "", control.ErrUnknown
}

// startBid remembers which request the carrier is pricing; the next text
// message is the price.
func (d *Dispatcher) startBid(ctx context.Context, u Update, requestID string) (string, error) {
	if _, err := d.approvedCarrier(ctx, u.UserID); err != nil {
		return "", err
	}
	req, err := d.requests.GetRequest(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req.IsOperatorOriginated() {
		return "", apperrors.Conflict("this request is taken directly, use the take button")
	}
	if req.Status == models.RequestStatusNegotiating {
		return "", apperrors.Busy()
	}
	if req.Status != models.RequestStatusOpen {
		return "", apperrors.Conflict("this request is no longer open")
	}

	sess := &models.Session{Kind: models.SessionAwaitingPrice, RequestID: req.ID}
	if err := d.saveSession(ctx, u.UserID, sess); err != nil {
		return "", err
	}
	d.reply(ctx, u, notify.TextEnterPrice, nil)
	return "", nil
}

// dropKeyboard deletes a decided offer message so its buttons cannot be
// tapped again. The message may already be gone.
func (d *Dispatcher) dropKeyboard(ctx context.Context, u Update) {
	if u.MessageRef == 0 {
		return
	}
	if err := d.messenger.DeleteMessage(ctx, u.ChatID, u.MessageRef); err != nil && !notify.IsGone(err) {
		d.logger.Debug("remove decided offer failed", zap.Error(err))
	}
}
