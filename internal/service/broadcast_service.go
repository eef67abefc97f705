package service

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aditya/go-carpool/internal/metrics"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/notify"
	"github.com/aditya/go-carpool/internal/repository"
)

const fanoutConcurrency = 8

type BroadcastService interface {
	// Broadcast retracts the previous round of notifications and sends a
	// fresh one to every eligible carrier. It returns the request as stored
	// afterwards.
	Broadcast(ctx context.Context, req *models.Request) (*models.Request, error)
	// Retract deletes every recorded notification and clears the list.
	Retract(ctx context.Context, requestID string) (*models.Request, error)
	// DeleteHandles removes the given messages without touching the store.
	DeleteHandles(ctx context.Context, handles models.NotificationHandles)
}

type broadcastService struct {
	requestRepo repository.RequestRepository
	profileRepo repository.ProfileRepository
	messenger   notify.Messenger
	settings    Settings
	logger      *zap.Logger
}

func NewBroadcastService(
	requestRepo repository.RequestRepository,
	profileRepo repository.ProfileRepository,
	messenger notify.Messenger,
	settings Settings,
	logger *zap.Logger,
) BroadcastService {
	return &broadcastService{
		requestRepo: requestRepo,
		profileRepo: profileRepo,
		messenger:   messenger,
		settings:    settings.withDefaults(),
		logger:      logger.Named("broadcast"),
	}
}

func (s *broadcastService) Broadcast(ctx context.Context, req *models.Request) (*models.Request, error) {
	log := s.logger.With(zap.String("request_id", req.ID), zap.String("route", req.RouteKey))

	previous := req.NotificationHandles
	s.DeleteHandles(ctx, previous)

	if req.RouteKey == "" {
		log.Warn("request has no route, nothing sent")
		return s.storeHandles(ctx, req.ID, nil, previous)
	}

	online := true
	carriers, err := s.profileRepo.FindCarriers(ctx, models.CarrierFilter{
		Online:         &online,
		ApprovalStatus: models.ApprovalApproved,
		Route:          req.RouteKey,
	})
	if err != nil {
		metrics.OperationErrorsTotal.WithLabelValues("find_carriers").Inc()
		return nil, err
	}

	now := s.settings.Now()
	recipients := carriers[:0]
	for _, c := range carriers {
		if c.ID == req.RequesterRef {
			continue
		}
		if s.settings.FanoutExcludeBlocked && req.IsCarrierBlocked(c.ID, now) {
			continue
		}
		recipients = append(recipients, c)
	}

	handles := s.send(ctx, req, recipients, log)
	log.Info("broadcast sent", zap.Int("eligible", len(recipients)), zap.Int("delivered", len(handles)))

	return s.storeHandles(ctx, req.ID, handles, previous)
}

func (s *broadcastService) send(ctx context.Context, req *models.Request, carriers []*models.Profile, log *zap.Logger) models.NotificationHandles {
	text := notify.RequestSummary(req)
	kb := notify.ActionKeyboard(req)

	var (
		mu      sync.Mutex
		handles models.NotificationHandles
	)
	var g errgroup.Group
	g.SetLimit(fanoutConcurrency)
	for _, c := range carriers {
		carrier := c
		g.Go(func() error {
			var ref int
			var err error
			if req.PhotoRef != nil {
				ref, err = s.messenger.SendPhoto(ctx, carrier.ID, *req.PhotoRef, text, kb)
			} else {
				ref, err = s.messenger.SendMessage(ctx, carrier.ID, text, kb)
			}
			if err != nil {
				metrics.NotificationFailuresTotal.Inc()
				log.Warn("notify carrier failed", zap.Int64("carrier_id", carrier.ID), zap.Error(err))
				return nil
			}
			metrics.NotificationsSentTotal.Inc()

			// voice notes follow the card and are not retracted
			if req.VoiceRef != nil {
				if _, err := s.messenger.SendVoice(ctx, carrier.ID, *req.VoiceRef); err != nil {
					log.Warn("voice note failed", zap.Int64("carrier_id", carrier.ID), zap.Error(err))
				}
			}

			mu.Lock()
			handles = append(handles, models.NotificationHandle{CarrierRef: carrier.ID, MessageRef: ref})
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Slice(handles, func(i, j int) bool { return handles[i].CarrierRef < handles[j].CarrierRef })
	return handles
}

// storeHandles replaces the stored list. Stored handles the caller did not
// already delete are retracted too. If the request left open/negotiating
// while the round was being sent, the new messages are deleted instead of
// stored.
func (s *broadcastService) storeHandles(ctx context.Context, id string, handles, deleted models.NotificationHandles) (*models.Request, error) {
	var leftover models.NotificationHandles
	req, err := mutateRequest(ctx, s.requestRepo, id, "broadcast", maxCASRetries, func(req *models.Request) error {
		leftover = without(req.NotificationHandles, deleted)
		if !acceptsFanout(req) {
			leftover = append(leftover, handles...)
			req.NotificationHandles = nil
			return nil
		}
		req.NotificationHandles = handles
		return nil
	})
	if err != nil {
		s.DeleteHandles(ctx, handles)
		return nil, err
	}
	s.DeleteHandles(ctx, leftover)
	return req, nil
}

func acceptsFanout(req *models.Request) bool {
	return req.Status == models.RequestStatusOpen || req.Status == models.RequestStatusNegotiating
}

func without(list, remove models.NotificationHandles) models.NotificationHandles {
	var out models.NotificationHandles
	for _, h := range list {
		found := false
		for _, r := range remove {
			if r == h {
				found = true
				break
			}
		}
		if !found {
			out = append(out, h)
		}
	}
	return out
}

func (s *broadcastService) Retract(ctx context.Context, requestID string) (*models.Request, error) {
	var retracted models.NotificationHandles
	req, err := mutateRequest(ctx, s.requestRepo, requestID, "retract", maxCASRetries, func(req *models.Request) error {
		retracted = req.NotificationHandles
		req.NotificationHandles = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.DeleteHandles(ctx, retracted)
	return req, nil
}

func (s *broadcastService) DeleteHandles(ctx context.Context, handles models.NotificationHandles) {
	if len(handles) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(fanoutConcurrency)
	for _, h := range handles {
		handle := h
		g.Go(func() error {
			err := s.messenger.DeleteMessage(ctx, handle.CarrierRef, handle.MessageRef)
			if err != nil && !notify.IsGone(err) {
				s.logger.Warn("retract notification failed",
					zap.Int64("carrier_id", handle.CarrierRef), zap.Int("message_ref", handle.MessageRef), zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()
}
