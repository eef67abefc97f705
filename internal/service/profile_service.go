package service

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/repository"
)

// OperatorNotifier is the hook fired once a carrier is approved.
type OperatorNotifier interface {
	NotifyOperators(ctx context.Context, carrier *models.Profile) error
}

type ProfileService interface {
	// EnsureProfile returns the user's profile, creating a requester profile
	// on first contact.
	EnsureProfile(ctx context.Context, id int64, name string) (*models.Profile, error)
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	GoOnline(ctx context.Context, carrierID int64, routeKey string) (*models.Profile, models.Route, error)
	GoOffline(ctx context.Context, carrierID int64) (*models.Profile, error)
	ApproveCarrier(ctx context.Context, carrierID int64) (*models.Profile, error)
}

type profileService struct {
	profileRepo repository.ProfileRepository
	routes      *RouteTable
	notifier    OperatorNotifier
	logger      *zap.Logger
}

func NewProfileService(profileRepo repository.ProfileRepository, routes *RouteTable, notifier OperatorNotifier, logger *zap.Logger) ProfileService {
	return &profileService{
		profileRepo: profileRepo,
		routes:      routes,
		notifier:    notifier,
		logger:      logger.Named("profile"),
	}
}

func (s *profileService) EnsureProfile(ctx context.Context, id int64, name string) (*models.Profile, error) {
	p, err := s.profileRepo.GetByID(ctx, id)
	if err != nil || p != nil {
		return p, err
	}
	p = &models.Profile{ID: id, Role: models.RoleRequester, Name: name, ApprovalStatus: models.ApprovalApproved}
	if err := s.profileRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *profileService) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	p, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.NotFound("profile")
	}
	return p, nil
}

func (s *profileService) carrier(ctx context.Context, id int64) (*models.Profile, error) {
	p, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.IsCarrier() {
		return nil, apperrors.NotFound("carrier profile")
	}
	return p, nil
}

func (s *profileService) GoOnline(ctx context.Context, carrierID int64, routeKey string) (*models.Profile, models.Route, error) {
	route, ok := s.routes.Lookup(routeKey)
	if !ok {
		return nil, models.Route{}, apperrors.Validation("unknown route")
	}
	p, err := s.carrier(ctx, carrierID)
	if err != nil {
		return nil, models.Route{}, err
	}
	if !p.IsApproved() {
		return nil, models.Route{}, apperrors.Conflict("your carrier profile is not approved yet")
	}

	p.Online = true
	p.Route = route.Key
	if err := s.profileRepo.Save(ctx, p); err != nil {
		return nil, models.Route{}, err
	}
	s.logger.Info("carrier online", zap.Int64("carrier_id", carrierID), zap.String("route", route.Key))
	return p, route, nil
}

func (s *profileService) GoOffline(ctx context.Context, carrierID int64) (*models.Profile, error) {
	p, err := s.carrier(ctx, carrierID)
	if err != nil {
		return nil, err
	}
	p.Online = false
	if err := s.profileRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("carrier offline", zap.Int64("carrier_id", carrierID))
	return p, nil
}

// ApproveCarrier is idempotent; operators are only notified on the first
// approval.
func (s *profileService) ApproveCarrier(ctx context.Context, carrierID int64) (*models.Profile, error) {
	p, err := s.carrier(ctx, carrierID)
	if err != nil {
		return nil, err
	}
	if p.IsApproved() {
		return p, nil
	}

	p.ApprovalStatus = models.ApprovalApproved
	if err := s.profileRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("carrier approved", zap.Int64("carrier_id", carrierID))

	if err := s.notifier.NotifyOperators(ctx, p); err != nil {
		s.logger.Warn("notify operators failed", zap.Int64("carrier_id", carrierID), zap.Error(err))
	}
	return p, nil
}
