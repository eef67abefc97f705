package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/events"
	"github.com/aditya/go-carpool/internal/metrics"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/repository"
)

const (
	defaultDeclineThreshold = 3
	defaultDeclineCooldown  = 20 * time.Minute
	defaultClaimCap         = 5
	maxCASRetries           = 3
	radarPageSize           = 10
)

// Settings are the tunables shared by the matching services.
type Settings struct {
	DeclineBlockThreshold int
	DeclineCooldown       time.Duration
	ClaimCap              int
	FanoutExcludeBlocked  bool
	// Now is the clock; tests pin it.
	Now func() time.Time
}

func (s Settings) withDefaults() Settings {
	if s.DeclineBlockThreshold <= 0 {
		s.DeclineBlockThreshold = defaultDeclineThreshold
	}
	if s.DeclineCooldown <= 0 {
		s.DeclineCooldown = defaultDeclineCooldown
	}
	if s.ClaimCap <= 0 {
		s.ClaimCap = defaultClaimCap
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// RouteTable maps origin/destination pairs to the route keys carriers pin
// themselves to.
type RouteTable struct {
	routes []models.Route
	byKey  map[string]models.Route
}

func NewRouteTable(routes []models.Route) *RouteTable {
	t := &RouteTable{routes: routes, byKey: make(map[string]models.Route, len(routes))}
	for _, r := range routes {
		t.byKey[r.Key] = r
	}
	return t
}

// Resolve matches case-insensitively and ignores surrounding space.
func (t *RouteTable) Resolve(origin, destination string) (models.Route, error) {
	origin, destination = strings.TrimSpace(origin), strings.TrimSpace(destination)
	for _, r := range t.routes {
		if strings.EqualFold(r.Origin, origin) && strings.EqualFold(r.Destination, destination) {
			return r, nil
		}
	}
	return models.Route{}, apperrors.ErrUnknownRoute
}

func (t *RouteTable) Lookup(key string) (models.Route, bool) {
	r, ok := t.byKey[key]
	return r, ok
}

func (t *RouteTable) All() []models.Route {
	return append([]models.Route(nil), t.routes...)
}

// mutateRequest loads the request, applies fn and writes it back with the
// version check. A lost race reloads and reapplies fn, up to attempts times;
// fn sees fresh state on every attempt and may abort with an error. The
// final ErrStaleWrite is returned when every attempt lost.
func mutateRequest(ctx context.Context, repo repository.RequestRepository, id, op string, attempts int,
	fn func(req *models.Request) error) (*models.Request, error) {
	for i := 0; ; i++ {
		req, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if req == nil {
			return nil, apperrors.NotFound("request")
		}
		if err := fn(req); err != nil {
			return nil, err
		}
		err = repo.Update(ctx, req)
		if err == nil {
			return req, nil
		}
		if !errors.Is(err, apperrors.ErrStaleWrite) {
			return nil, err
		}
		metrics.StaleWritesTotal.WithLabelValues(op).Inc()
		if i+1 >= attempts {
			return nil, err
		}
	}
}

// transition moves req to status or returns a conflict naming both ends.
func transition(req *models.Request, status string) error {
	if !req.CanTransitionTo(status) {
		return apperrors.InvalidTransition(req.Status, status)
	}
	req.Status = status
	return nil
}

// publish emits a domain event. Delivery failures are logged only.
func publish(ctx context.Context, pub events.Publisher, logger *zap.Logger, typ string, req *models.Request, offer *models.Offer, now time.Time) {
	e := events.Event{Type: typ, RequestID: req.ID, Status: req.Status, At: now}
	if offer != nil {
		e.OfferID, e.CarrierRef, e.Price = offer.ID, offer.CarrierRef, offer.Price
	}
	if err := pub.Publish(ctx, e); err != nil {
		logger.Warn("publish event failed", zap.String("type", typ), zap.Error(err))
	}
}
