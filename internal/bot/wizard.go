package bot

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/aditya/go-carpool/internal/control"
	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/notify"
)

const maxSeats = 8

// startWizard opens a request draft. Requesters with an active request are
// sent to /myrequest instead.
func (d *Dispatcher) startWizard(ctx context.Context, u Update, typ string) error {
	if _, err := d.profiles.EnsureProfile(ctx, u.UserID, u.UserName); err != nil {
		return err
	}
	active, err := d.requests.GetActiveRequest(ctx, u.UserID)
	if err != nil && apperrors.KindOf(err) != apperrors.KindNotFound {
		return err
	}
	if active != nil {
		return apperrors.Conflict("you already have an active request, see /myrequest")
	}

	sess := &models.Session{
		Kind:  models.SessionRequestWizard,
		Draft: &models.RequestDraft{Type: typ, Step: models.StepRoute},
	}
	if err := d.saveSession(ctx, u.UserID, sess); err != nil {
		return err
	}
	d.reply(ctx, u, notify.TextPickRoute, notify.RouteKeyboard(d.routes.All(), control.WizardRoute))
	return nil
}

func (d *Dispatcher) wizardRoute(ctx context.Context, u Update, routeKey string) error {
	sess, err := d.sessions.Get(ctx, u.UserID)
	if err != nil {
		return apperrors.Transient("session lookup failed", err)
	}
	if sess == nil || sess.Kind != models.SessionRequestWizard || sess.Draft == nil || sess.Draft.Step != models.StepRoute {
		return apperrors.Stale()
	}
	if _, ok := d.routes.Lookup(routeKey); !ok {
		return apperrors.Stale()
	}

	sess.Draft.RouteKey = routeKey
	sess.Draft.Step = models.StepTime
	if err := d.saveSession(ctx, u.UserID, sess); err != nil {
		return err
	}
	d.reply(ctx, u, notify.TextAskTime, nil)
	return nil
}

// wizardInput advances the draft by one answer.
func (d *Dispatcher) wizardInput(ctx context.Context, u Update, sess *models.Session) error {
	draft := sess.Draft
	if draft == nil {
		d.dropSession(ctx, u.UserID)
		return apperrors.Stale()
	}
	text := strings.TrimSpace(u.Text)

	switch draft.Step {
	case models.StepRoute:
		d.reply(ctx, u, notify.TextPickRoute, notify.RouteKeyboard(d.routes.All(), control.WizardRoute))
		return nil

	case models.StepTime:
		if text == "" {
			return apperrors.Validation(notify.TextAskTime)
		}
		draft.DesiredTime = text
		next := notify.TextAskSeats
		draft.Step = models.StepSeats
		if draft.Type == models.RequestTypeParcel {
			next = notify.TextAskPackage
			draft.Step = models.StepPackage
		}
		return d.advance(ctx, u, sess, next)

	case models.StepSeats:
		seats, err := strconv.Atoi(text)
		if err != nil || seats < 1 || seats > maxSeats {
			return apperrors.Validation(notify.TextAskSeats)
		}
		draft.Seats = seats
		draft.Step = models.StepDetails
		return d.advance(ctx, u, sess, notify.TextAskDetails)

	case models.StepPackage:
		if text == "" {
			return apperrors.Validation(notify.TextAskPackage)
		}
		draft.PackageKind = text
		draft.Step = models.StepDetails
		return d.advance(ctx, u, sess, notify.TextAskDetails)

	case models.StepDetails:
		photo := ""
		if draft.Type == models.RequestTypeParcel {
			photo = u.PhotoRef
		}
		if text == "" && u.VoiceRef == "" && photo == "" {
			return apperrors.Validation(notify.TextAskDetails)
		}
		draft.LocationDetail = text
		draft.VoiceRef = u.VoiceRef
		draft.PhotoRef = photo
		return d.finishWizard(ctx, u, draft)
	}
	d.dropSession(ctx, u.UserID)
	return apperrors.Stale()
}

func (d *Dispatcher) advance(ctx context.Context, u Update, sess *models.Session, prompt string) error {
	if err := d.saveSession(ctx, u.UserID, sess); err != nil {
		return err
	}
	d.reply(ctx, u, prompt, nil)
	return nil
}

func (d *Dispatcher) finishWizard(ctx context.Context, u Update, draft *models.RequestDraft) error {
	route, ok := d.routes.Lookup(draft.RouteKey)
	if !ok {
		d.dropSession(ctx, u.UserID)
		return apperrors.Stale()
	}
	if err := d.sessions.Delete(ctx, u.UserID); err != nil {
		return apperrors.Transient("session delete failed", err)
	}

	req, err := d.requests.CreateRequest(ctx, models.CreateRequestInput{
		RequesterRef:   u.UserID,
		Origin:         route.Origin,
		Destination:    route.Destination,
		DesiredTime:    draft.DesiredTime,
		Type:           draft.Type,
		Seats:          draft.Seats,
		PackageKind:    draft.PackageKind,
		LocationDetail: draft.LocationDetail,
		VoiceRef:       draft.VoiceRef,
		PhotoRef:       draft.PhotoRef,
		CreatedBy:      models.CreatedByRequester,
	})
	if err != nil {
		return err
	}
	d.reply(ctx, u, notify.RequestCreated(req, len(req.NotificationHandles)), nil)
	return nil
}

// dropSession clears a session that can no longer advance. A failed delete
// only leaves an entry that expires on its own.
func (d *Dispatcher) dropSession(ctx context.Context, userID int64) {
	if err := d.sessions.Delete(ctx, userID); err != nil {
		d.logger.Warn("session delete failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (d *Dispatcher) saveSession(ctx context.Context, userID int64, sess *models.Session) error {
	if err := d.sessions.Set(ctx, userID, sess); err != nil {
		return apperrors.Transient("session store failed", err)
	}
	return nil
}
