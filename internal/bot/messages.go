package bot

import (
	"context"

	"github.com/aditya/go-carpool/internal/control"
	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/notify"
	"github.com/aditya/go-carpool/internal/service"
)

func (d *Dispatcher) handleMessage(ctx context.Context, u Update) error {
	if name, _, ok := u.Command(); ok {
		return d.handleCommand(ctx, u, name)
	}

	sess, err := d.sessions.Get(ctx, u.UserID)
	if err != nil {
		return apperrors.Transient("session lookup failed", err)
	}
	if sess == nil {
		d.reply(ctx, u, notify.TextHelp, nil)
		return nil
	}

	switch sess.Kind {
	case models.SessionAwaitingPrice:
		return d.submitPrice(ctx, u)
	case models.SessionRequestWizard:
		return d.wizardInput(ctx, u, sess)
	}
	// unknown leftovers from an older build
	d.dropSession(ctx, u.UserID)
	d.reply(ctx, u, notify.TextHelp, nil)
	return nil
}

func (d *Dispatcher) handleCommand(ctx context.Context, u Update, name string) error {
	switch name {
	case "start", "help":
		if _, err := d.profiles.EnsureProfile(ctx, u.UserID, u.UserName); err != nil {
			return err
		}
		d.reply(ctx, u, notify.TextHelp, nil)
		return nil
	case "ride":
		return d.startWizard(ctx, u, models.RequestTypeTransport)
	case "parcel":
		return d.startWizard(ctx, u, models.RequestTypeParcel)
	case "myrequest":
		return d.showMyRequest(ctx, u)
	case "radar":
		return d.showRadar(ctx, u, 0)
	case "online":
		if _, err := d.approvedCarrier(ctx, u.UserID); err != nil {
			return err
		}
		d.reply(ctx, u, notify.TextPickRoute, notify.RouteKeyboard(d.routes.All(), control.Route))
		return nil
	case "offline":
		if _, err := d.profiles.GoOffline(ctx, u.UserID); err != nil {
			return err
		}
		d.reply(ctx, u, notify.TextWentOffline, nil)
		return nil
	case "cancel":
		if err := d.sessions.Delete(ctx, u.UserID); err != nil {
			return apperrors.Transient("session delete failed", err)
		}
		d.reply(ctx, u, notify.TextCleared, nil)
		return nil
	}
	d.reply(ctx, u, notify.TextHelp, nil)
	return nil
}

// submitPrice reads the carrier's price for the request they tapped. A price
// that does not parse keeps the session so the carrier can retry.
func (d *Dispatcher) submitPrice(ctx context.Context, u Update) error {
	price, err := service.ParseBidPrice(u.Text)
	if err != nil {
		return err
	}
	taken, err := d.sessions.Take(ctx, u.UserID)
	if err != nil {
		return apperrors.Transient("session lookup failed", err)
	}
	if taken == nil || taken.Kind != models.SessionAwaitingPrice {
		return apperrors.Stale()
	}
	_, _, err = d.negotiation.SubmitBid(ctx, taken.RequestID, u.UserID, price)
	return err
}

func (d *Dispatcher) showMyRequest(ctx context.Context, u Update) error {
	req, err := d.requests.GetActiveRequest(ctx, u.UserID)
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		d.reply(ctx, u, notify.TextNoActive, nil)
		return nil
	}
	if err != nil {
		return err
	}
	text, kb := notify.MyRequest(req)
	d.reply(ctx, u, text, kb)
	return nil
}

func (d *Dispatcher) radarPage(ctx context.Context, carrierID int64, page int) (string, notify.Keyboard, error) {
	carrier, err := d.approvedCarrier(ctx, carrierID)
	if err != nil {
		return "", nil, err
	}
	result, err := d.requests.ListOpenRequests(ctx, carrier.Route, page)
	if err != nil {
		return "", nil, err
	}
	text, kb := notify.Radar(result.Requests, result.Page, result.Total, result.PageSize)
	return text, kb, nil
}

func (d *Dispatcher) showRadar(ctx context.Context, u Update, page int) error {
	text, kb, err := d.radarPage(ctx, u.UserID, page)
	if err != nil {
		return err
	}
	d.reply(ctx, u, text, kb)
	return nil
}

func (d *Dispatcher) approvedCarrier(ctx context.Context, id int64) (*models.Profile, error) {
	p, err := d.profiles.GetProfile(ctx, id)
	if apperrors.KindOf(err) == apperrors.KindNotFound {
		return nil, apperrors.Conflict(notify.TextCarrierOnly)
	}
	if err != nil {
		return nil, err
	}
	if !p.IsCarrier() || !p.IsApproved() {
		return nil, apperrors.Conflict(notify.TextCarrierOnly)
	}
	return p, nil
}
