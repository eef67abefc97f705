package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/events"
	"github.com/aditya/go-carpool/internal/metrics"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/notify"
	"github.com/aditya/go-carpool/internal/repository"
)

type RequestService interface {
	CreateRequest(ctx context.Context, in models.CreateRequestInput) (*models.Request, error)
	GetRequest(ctx context.Context, id string) (*models.Request, error)
	GetActiveRequest(ctx context.Context, requesterID int64) (*models.Request, error)
	RequestCancel(ctx context.Context, requesterID int64, requestID string) (*models.Request, error)
	ConfirmCancel(ctx context.Context, requesterID int64, requestID string) (*models.Request, error)
	AbortCancel(ctx context.Context, requesterID int64, requestID string) error
	CancelByOperator(ctx context.Context, requestID string) (*models.Request, error)
	CompleteRequest(ctx context.Context, actorID int64, requestID string) (*models.Request, error)
	ListOpenRequests(ctx context.Context, routeKey string, page int) (*RequestPage, error)
}

// RequestPage is one page of the open request list.
type RequestPage struct {
	Requests []*models.Request `json:"requests"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Total    int               `json:"total"`
}

type requestService struct {
	requestRepo repository.RequestRepository
	profileRepo repository.ProfileRepository
	broadcast   BroadcastService
	messenger   notify.Messenger
	publisher   events.Publisher
	routes      *RouteTable
	settings    Settings
	validate    *validator.Validate
	logger      *zap.Logger
}

func NewRequestService(
	requestRepo repository.RequestRepository,
	profileRepo repository.ProfileRepository,
	broadcast BroadcastService,
	messenger notify.Messenger,
	publisher events.Publisher,
	routes *RouteTable,
	settings Settings,
	logger *zap.Logger,
) RequestService {
	return &requestService{
		requestRepo: requestRepo,
		profileRepo: profileRepo,
		broadcast:   broadcast,
		messenger:   messenger,
		publisher:   publisher,
		routes:      routes,
		settings:    settings.withDefaults(),
		validate:    validator.New(),
		logger:      logger.Named("request"),
	}
}

func (s *requestService) CreateRequest(ctx context.Context, in models.CreateRequestInput) (*models.Request, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, apperrors.Validation(validationMessage(err))
	}
	if in.CreatedBy == models.CreatedByRequester && in.RequesterRef == 0 {
		return nil, apperrors.Validation("requester is required")
	}
	if in.CreatedBy == models.CreatedByOperator {
		in.RequesterRef = 0
	}

	route, err := s.routes.Resolve(in.Origin, in.Destination)
	if err != nil {
		return nil, apperrors.Validation("no carriers serve " + in.Origin + " → " + in.Destination)
	}

	if in.RequesterRef != 0 {
		active, err := s.requestRepo.GetActiveByRequester(ctx, in.RequesterRef)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, apperrors.Conflict("you already have an active request, see /myrequest")
		}
	}

	req := &models.Request{
		RequesterRef:   in.RequesterRef,
		Origin:         route.Origin,
		Destination:    route.Destination,
		RouteKey:       route.Key,
		DesiredTime:    strings.TrimSpace(in.DesiredTime),
		Type:           in.Type,
		LocationDetail: strings.TrimSpace(in.LocationDetail),
		VoiceRef:       optional(in.VoiceRef),
		PhotoRef:       optional(in.PhotoRef),
		ContactPhone:   optional(in.ContactPhone),
		Status:         models.RequestStatusOpen,
		CreatedBy:      in.CreatedBy,
	}
	if req.Type == models.RequestTypeTransport {
		req.Seats = in.Seats
	} else {
		req.PackageKind = strings.TrimSpace(in.PackageKind)
	}

	if err := s.requestRepo.Create(ctx, req); err != nil {
		if errors.Is(err, apperrors.ErrActiveExists) {
			return nil, apperrors.Conflict("you already have an active request, see /myrequest")
		}
		return nil, err
	}
	metrics.RequestsCreatedTotal.WithLabelValues(req.CreatedBy, req.Type).Inc()
	s.logger.Info("request created", zap.String("request_id", req.ID), zap.String("route", req.RouteKey),
		zap.String("created_by", req.CreatedBy), zap.String("type", req.Type))
	publish(ctx, s.publisher, s.logger, events.TypeRequestCreated, req, nil, s.settings.Now())

	updated, err := s.broadcast.Broadcast(ctx, req)
	if err != nil {
		// the request exists; carriers still find it on the radar
		s.logger.Error("initial broadcast failed", zap.String("request_id", req.ID), zap.Error(err))
		return req, nil
	}
	return updated, nil
}

func (s *requestService) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.NotFound("request")
	}
	return req, nil
}

func (s *requestService) GetActiveRequest(ctx context.Context, requesterID int64) (*models.Request, error) {
	req, err := s.requestRepo.GetActiveByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperrors.NotFound("active request")
	}
	return req, nil
}

// owned loads a non-terminal request belonging to requesterID.
func (s *requestService) owned(ctx context.Context, requesterID int64, requestID string) (*models.Request, error) {
	req, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil || req.RequesterRef != requesterID {
		return nil, apperrors.NotFound("request")
	}
	if !req.IsActive() {
		return nil, apperrors.Conflict("this request is already " + req.Status)
	}
	return req, nil
}

// RequestCancel checks the request can be cancelled. The caller asks for
// confirmation before ConfirmCancel.
func (s *requestService) RequestCancel(ctx context.Context, requesterID int64, requestID string) (*models.Request, error) {
	return s.owned(ctx, requesterID, requestID)
}

func (s *requestService) AbortCancel(ctx context.Context, requesterID int64, requestID string) error {
	_, err := s.owned(ctx, requesterID, requestID)
	return err
}

func (s *requestService) ConfirmCancel(ctx context.Context, requesterID int64, requestID string) (*models.Request, error) {
	if _, err := s.owned(ctx, requesterID, requestID); err != nil {
		return nil, err
	}
	return s.cancel(ctx, requestID)
}

func (s *requestService) CancelByOperator(ctx context.Context, requestID string) (*models.Request, error) {
	return s.cancel(ctx, requestID)
}

func (s *requestService) cancel(ctx context.Context, requestID string) (*models.Request, error) {
	var retracted models.NotificationHandles
	req, err := mutateRequest(ctx, s.requestRepo, requestID, "cancel", maxCASRetries, func(req *models.Request) error {
		if err := transition(req, models.RequestStatusCancelled); err != nil {
			return err
		}
		retracted = req.NotificationHandles
		req.NotificationHandles = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RequestTransitionsTotal.WithLabelValues(req.Status).Inc()
	s.logger.Info("request cancelled", zap.String("request_id", req.ID))

	s.broadcast.DeleteHandles(ctx, retracted)

	// the carrier holding the request, if any, hears about it
	if offer := holdingOffer(req); offer != nil {
		if _, err := s.messenger.SendMessage(ctx, offer.CarrierRef, notify.RequestCancelledForCarrier(req), nil); err != nil {
			s.logger.Warn("notify carrier of cancel failed", zap.String("request_id", req.ID), zap.Error(err))
		}
	}
	publish(ctx, s.publisher, s.logger, events.TypeRequestCancelled, req, nil, s.settings.Now())
	return req, nil
}

func holdingOffer(req *models.Request) *models.Offer {
	if offer := req.AcceptedBid(); offer != nil {
		return offer
	}
	return req.PendingBid()
}

// CompleteRequest closes a matched request. Either the requester or the
// accepted carrier may complete it.
func (s *requestService) CompleteRequest(ctx context.Context, actorID int64, requestID string) (*models.Request, error) {
	req, err := mutateRequest(ctx, s.requestRepo, requestID, "complete", maxCASRetries, func(req *models.Request) error {
		accepted := req.AcceptedBid()
		isCarrier := accepted != nil && accepted.CarrierRef == actorID
		if req.RequesterRef != actorID && !isCarrier {
			return apperrors.NotFound("request")
		}
		switch req.Status {
		case models.RequestStatusMatched:
			return transition(req, models.RequestStatusCompleted)
		case models.RequestStatusCompleted:
			return apperrors.Conflict("this request is already completed")
		default:
			return apperrors.InvalidTransition(req.Status, models.RequestStatusCompleted)
		}
	})
	if err != nil {
		return nil, err
	}
	metrics.RequestTransitionsTotal.WithLabelValues(req.Status).Inc()
	s.logger.Info("request completed", zap.String("request_id", req.ID), zap.Int64("actor_id", actorID))

	text := notify.RequestCompleted(req)
	for _, party := range []int64{req.RequesterRef, req.AcceptedBid().CarrierRef} {
		if _, err := s.messenger.SendMessage(ctx, party, text, nil); err != nil {
			s.logger.Warn("notify completion failed", zap.Int64("chat_id", party), zap.Error(err))
		}
	}
	publish(ctx, s.publisher, s.logger, events.TypeRequestCompleted, req, req.AcceptedBid(), s.settings.Now())
	return req, nil
}

func (s *requestService) ListOpenRequests(ctx context.Context, routeKey string, page int) (*RequestPage, error) {
	if page < 0 {
		page = 0
	}
	if routeKey != "" {
		if _, ok := s.routes.Lookup(routeKey); !ok {
			return nil, apperrors.Validation("unknown route " + routeKey)
		}
	}
	total, err := s.requestRepo.CountOpen(ctx, routeKey)
	if err != nil {
		return nil, err
	}
	reqs, err := s.requestRepo.ListOpen(ctx, routeKey, radarPageSize, page*radarPageSize)
	if err != nil {
		return nil, err
	}
	if reqs == nil {
		reqs = []*models.Request{}
	}
	return &RequestPage{Requests: reqs, Page: page, PageSize: radarPageSize, Total: total}, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, strings.ToLower(fe.Field())+" is invalid ("+fe.Tag()+")")
	}
	return strings.Join(msgs, ", ")
}
