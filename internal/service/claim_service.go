package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/events"
	"github.com/aditya/go-carpool/internal/metrics"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/notify"
	"github.com/aditya/go-carpool/internal/repository"
)

// ClaimService runs the first-K-carriers-win flow of operator requests.
type ClaimService interface {
	Claim(ctx context.Context, requestID string, carrierID int64) (*models.Request, error)
}

type claimService struct {
	requestRepo repository.RequestRepository
	profileRepo repository.ProfileRepository
	broadcast   BroadcastService
	messenger   notify.Messenger
	publisher   events.Publisher
	settings    Settings
	logger      *zap.Logger
}

func NewClaimService(
	requestRepo repository.RequestRepository,
	profileRepo repository.ProfileRepository,
	broadcast BroadcastService,
	messenger notify.Messenger,
	publisher events.Publisher,
	settings Settings,
	logger *zap.Logger,
) ClaimService {
	return &claimService{
		requestRepo: requestRepo,
		profileRepo: profileRepo,
		broadcast:   broadcast,
		messenger:   messenger,
		publisher:   publisher,
		settings:    settings.withDefaults(),
		logger:      logger.Named("claim"),
	}
}

// Claim takes one of the request's slots. The capped increment is a
// conditional write; a lost race re-reads and re-checks every guard, so the
// cap holds under concurrent claims.
func (s *claimService) Claim(ctx context.Context, requestID string, carrierID int64) (*models.Request, error) {
	carrier, err := s.profileRepo.GetByID(ctx, carrierID)
	if err != nil {
		return nil, err
	}
	if carrier == nil || !carrier.IsCarrier() || !carrier.IsApproved() {
		return nil, apperrors.Conflict("only approved carriers can take requests")
	}

	var closed models.NotificationHandles
	req, err := mutateRequest(ctx, s.requestRepo, requestID, "claim", maxCASRetries, func(req *models.Request) error {
		closed = nil
		if !req.IsOperatorOriginated() {
			return apperrors.Conflict("this request takes offers, use the offer button")
		}
		if req.Status != models.RequestStatusOpen || req.ClaimCount >= s.settings.ClaimCap {
			return apperrors.Conflict("this request is already taken")
		}
		if req.HasClaimed(carrierID) {
			return apperrors.Conflict("you have already taken this request")
		}

		req.ClaimCount++
		req.Offers = append(req.Offers, models.NewClaimMarker(uuid.New().String(), carrierID, s.settings.Now()))
		if req.ClaimCount >= s.settings.ClaimCap {
			if err := transition(req, models.RequestStatusCompleted); err != nil {
				return err
			}
			closed = req.NotificationHandles
			req.NotificationHandles = nil
		}
		return nil
	})
	if errors.Is(err, apperrors.ErrStaleWrite) {
		return nil, apperrors.Conflict("many carriers are taking this request right now, try again")
	}
	if err != nil {
		return nil, err
	}
	marker := &req.Offers[len(req.Offers)-1]
	metrics.OffersTotal.WithLabelValues("claimed").Inc()

	log := s.logger.With(zap.String("request_id", req.ID), zap.Int64("carrier_id", carrierID))
	log.Info("request claimed", zap.Int("claim_count", req.ClaimCount), zap.Int("cap", s.settings.ClaimCap))

	if _, err := s.messenger.SendMessage(ctx, carrierID, notify.ClaimConfirmed(req), nil); err != nil {
		log.Warn("reveal contact to claimer failed", zap.Error(err))
	}
	if req.VoiceRef != nil {
		if _, err := s.messenger.SendVoice(ctx, carrierID, *req.VoiceRef); err != nil {
			log.Warn("forward voice note failed", zap.Error(err))
		}
	}
	publish(ctx, s.publisher, s.logger, events.TypeRequestClaimed, req, marker, s.settings.Now())

	if req.Status == models.RequestStatusCompleted {
		metrics.RequestTransitionsTotal.WithLabelValues(req.Status).Inc()
		s.broadcast.DeleteHandles(ctx, closed)
		publish(ctx, s.publisher, s.logger, events.TypeRequestCompleted, req, nil, s.settings.Now())
		log.Info("claim cap reached, request completed")
	}
	return req, nil
}
