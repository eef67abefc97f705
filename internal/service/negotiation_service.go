package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/events"
	"github.com/aditya/go-carpool/internal/metrics"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/notify"
	"github.com/aditya/go-carpool/internal/repository"
)

const maxBidPrice = 100_000_000

type NegotiationService interface {
	SubmitBid(ctx context.Context, requestID string, carrierID, price int64) (*models.Request, *models.Offer, error)
	AcceptOffer(ctx context.Context, requesterID int64, requestID, offerID string) (*models.Request, error)
	DeclineOffer(ctx context.Context, requesterID int64, requestID, offerID string) (*models.Request, error)
}

type negotiationService struct {
	requestRepo repository.RequestRepository
	profileRepo repository.ProfileRepository
	broadcast   BroadcastService
	messenger   notify.Messenger
	publisher   events.Publisher
	settings    Settings
	logger      *zap.Logger
}

func NewNegotiationService(
	requestRepo repository.RequestRepository,
	profileRepo repository.ProfileRepository,
	broadcast BroadcastService,
	messenger notify.Messenger,
	publisher events.Publisher,
	settings Settings,
	logger *zap.Logger,
) NegotiationService {
	return &negotiationService{
		requestRepo: requestRepo,
		profileRepo: profileRepo,
		broadcast:   broadcast,
		messenger:   messenger,
		publisher:   publisher,
		settings:    settings.withDefaults(),
		logger:      logger.Named("negotiation"),
	}
}

// ParseBidPrice keeps only the digits of text, so "50 000 so'm" is 50000.
func ParseBidPrice(text string) (int64, error) {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, apperrors.Validation("the price must be a number, for example 50000")
	}
	price, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil || price > maxBidPrice {
		return 0, apperrors.Validation("the price is too large")
	}
	if price <= 0 {
		return 0, apperrors.Validation("the price must be greater than zero")
	}
	return price, nil
}

func (s *negotiationService) SubmitBid(ctx context.Context, requestID string, carrierID, price int64) (*models.Request, *models.Offer, error) {
	if price <= 0 {
		return nil, nil, apperrors.Validation("the price must be greater than zero")
	}

	carrier, err := s.profileRepo.GetByID(ctx, carrierID)
	if err != nil {
		return nil, nil, err
	}
	if carrier == nil || !carrier.IsCarrier() || !carrier.IsApproved() {
		return nil, nil, apperrors.Conflict("only approved carriers can make offers")
	}

	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req == nil {
		return nil, nil, apperrors.NotFound("request")
	}
	if req.IsOperatorOriginated() {
		return nil, nil, apperrors.Conflict("this request is taken directly, use the take button")
	}
	if req.RequesterRef == carrierID {
		return nil, nil, apperrors.Conflict("you cannot make an offer on your own request")
	}
	switch req.Status {
	case models.RequestStatusOpen:
	case models.RequestStatusNegotiating:
		return nil, nil, apperrors.Busy()
	default:
		return nil, nil, apperrors.Conflict("this request is no longer open")
	}
	if entry := req.BlockEntryFor(carrierID); entry != nil && entry.IsBlocked(s.settings.Now()) {
		return nil, nil, apperrors.Throttled(*entry.BlockedUntil, s.settings.Now())
	}
	if req.PendingBid() != nil {
		return nil, nil, apperrors.Busy()
	}

	offer := models.NewBid(uuid.New().String(), carrierID, price, s.settings.Now())
	req.Offers = append(req.Offers, offer)
	if err := transition(req, models.RequestStatusNegotiating); err != nil {
		return nil, nil, err
	}
	if err := s.requestRepo.Update(ctx, req); err != nil {
		if errors.Is(err, apperrors.ErrStaleWrite) {
			metrics.StaleWritesTotal.WithLabelValues("bid").Inc()
			return nil, nil, apperrors.Busy()
		}
		return nil, nil, err
	}
	metrics.RequestTransitionsTotal.WithLabelValues(req.Status).Inc()
	metrics.OffersTotal.WithLabelValues("submitted").Inc()

	log := s.logger.With(zap.String("request_id", req.ID), zap.String("offer_id", offer.ID), zap.Int64("carrier_id", carrierID))
	log.Info("bid submitted", zap.Int64("price", price))

	text, kb := notify.OfferReceived(req, &offer, carrier)
	if _, err := s.messenger.SendMessage(ctx, req.RequesterRef, text, kb); err != nil {
		log.Warn("notify requester of bid failed", zap.Error(err))
	}
	if _, err := s.messenger.SendMessage(ctx, carrierID, notify.BidSubmitted(price), nil); err != nil {
		log.Warn("bid confirmation failed", zap.Error(err))
	}
	publish(ctx, s.publisher, s.logger, events.TypeOfferSubmitted, req, &offer, s.settings.Now())

	return req, &offer, nil
}

// loadDecision resolves the request and offer a requester is deciding on.
func (s *negotiationService) loadDecision(ctx context.Context, requesterID int64, requestID, offerID string) (*models.Request, *models.Offer, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req == nil || req.RequesterRef != requesterID {
		return nil, nil, apperrors.NotFound("request")
	}
	offer := req.FindOffer(offerID)
	if offer == nil || offer.Kind != models.OfferKindBid {
		return nil, nil, apperrors.NotFound("offer")
	}
	if req.Status == models.RequestStatusMatched {
		return nil, nil, apperrors.AlreadyMatched()
	}
	if req.Status != models.RequestStatusNegotiating || !offer.IsPending() {
		return nil, nil, apperrors.Conflict("this offer is no longer pending")
	}
	return req, offer, nil
}

func (s *negotiationService) AcceptOffer(ctx context.Context, requesterID int64, requestID, offerID string) (*models.Request, error) {
	req, offer, err := s.loadDecision(ctx, requesterID, requestID, offerID)
	if err != nil {
		return nil, err
	}
	if req.AcceptedBid() != nil {
		return nil, apperrors.AlreadyMatched()
	}

	offer.Status = models.OfferStatusAccepted
	if err := transition(req, models.RequestStatusMatched); err != nil {
		return nil, err
	}
	if err := s.requestRepo.Update(ctx, req); err != nil {
		if errors.Is(err, apperrors.ErrStaleWrite) {
			metrics.StaleWritesTotal.WithLabelValues("accept").Inc()
			return nil, apperrors.Conflict("this offer was already handled")
		}
		return nil, err
	}
	metrics.RequestTransitionsTotal.WithLabelValues(req.Status).Inc()
	metrics.OffersTotal.WithLabelValues("accepted").Inc()

	log := s.logger.With(zap.String("request_id", req.ID), zap.String("offer_id", offer.ID), zap.Int64("carrier_id", offer.CarrierRef))
	log.Info("offer accepted")

	carrier, err := s.profileRepo.GetByID(ctx, offer.CarrierRef)
	if err != nil {
		log.Warn("load carrier profile failed", zap.Error(err))
	}
	requester, err := s.profileRepo.GetByID(ctx, req.RequesterRef)
	if err != nil {
		log.Warn("load requester profile failed", zap.Error(err))
	}

	text, kb := notify.MatchedForRequester(req, offer, carrier)
	if _, err := s.messenger.SendMessage(ctx, req.RequesterRef, text, kb); err != nil {
		log.Warn("notify requester of match failed", zap.Error(err))
	}
	text, kb = notify.MatchedForCarrier(req, requester)
	if _, err := s.messenger.SendMessage(ctx, offer.CarrierRef, text, kb); err != nil {
		log.Warn("notify carrier of match failed", zap.Error(err))
	}
	if req.VoiceRef != nil {
		if _, err := s.messenger.SendVoice(ctx, offer.CarrierRef, *req.VoiceRef); err != nil {
			log.Warn("forward voice note failed", zap.Error(err))
		}
	}
	publish(ctx, s.publisher, s.logger, events.TypeOfferAccepted, req, offer, s.settings.Now())

	if updated, err := s.broadcast.Retract(ctx, req.ID); err != nil {
		log.Warn("retract notifications failed", zap.Error(err))
	} else {
		req = updated
	}
	return req, nil
}

func (s *negotiationService) DeclineOffer(ctx context.Context, requesterID int64, requestID, offerID string) (*models.Request, error) {
	req, offer, err := s.loadDecision(ctx, requesterID, requestID, offerID)
	if err != nil {
		return nil, err
	}

	now := s.settings.Now()
	offer.Status = models.OfferStatusRejected
	entry := req.RecordDecline(offer.CarrierRef, s.settings.DeclineBlockThreshold, s.settings.DeclineCooldown, now)
	if err := transition(req, models.RequestStatusOpen); err != nil {
		return nil, err
	}
	if err := s.requestRepo.Update(ctx, req); err != nil {
		if errors.Is(err, apperrors.ErrStaleWrite) {
			metrics.StaleWritesTotal.WithLabelValues("decline").Inc()
			return nil, apperrors.Conflict("this offer was already handled")
		}
		return nil, err
	}
	metrics.RequestTransitionsTotal.WithLabelValues(req.Status).Inc()
	metrics.OffersTotal.WithLabelValues("rejected").Inc()

	log := s.logger.With(zap.String("request_id", req.ID), zap.String("offer_id", offer.ID), zap.Int64("carrier_id", offer.CarrierRef))
	log.Info("offer declined", zap.Int("decline_count", entry.DeclineCount), zap.Bool("blocked", entry.IsBlocked(now)))

	if _, err := s.messenger.SendMessage(ctx, offer.CarrierRef, notify.OfferDeclined(req, entry, now), nil); err != nil {
		log.Warn("notify carrier of decline failed", zap.Error(err))
	}
	publish(ctx, s.publisher, s.logger, events.TypeOfferDeclined, req, offer, s.settings.Now())

	updated, err := s.broadcast.Broadcast(ctx, req)
	if err != nil {
		log.Error("re-broadcast after decline failed", zap.Error(err))
		return req, nil
	}
	return updated, nil
}
