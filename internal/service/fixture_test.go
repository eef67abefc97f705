package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/events"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/notify/notifytest"
	"github.com/aditya/go-carpool/internal/repository"
)

const (
	requester = int64(100)
	route     = "tash_nam"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu       sync.Mutex
	notified []int64
}

func (r *recordingNotifier) NotifyOperators(ctx context.Context, carrier *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, carrier.ID)
	return nil
}

type fixture struct {
	ctx       context.Context
	requests  *repository.MemoryRequestStore
	profiles  *repository.MemoryProfileStore
	messenger *notifytest.Messenger
	events    *events.Recorder
	clock     *fakeClock
	notifier  *recordingNotifier
	routes    *RouteTable

	broadcast   BroadcastService
	negotiation NegotiationService
	claims      ClaimService
	requestSvc  RequestService
	profileSvc  ProfileService
}

func newFixture(t *testing.T, tune ...func(*Settings)) *fixture {
	t.Helper()
	f := &fixture{
		ctx:       context.Background(),
		requests:  repository.NewMemoryRequestStore(),
		profiles:  repository.NewMemoryProfileStore(),
		messenger: notifytest.New(),
		events:    &events.Recorder{},
		clock:     &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		notifier:  &recordingNotifier{},
		routes: NewRouteTable([]models.Route{
			{Key: "tash_nam", Origin: "Tashkent", Destination: "Namangan"},
			{Key: "nam_tash", Origin: "Namangan", Destination: "Tashkent"},
		}),
	}
	settings := Settings{Now: f.clock.Now}
	for _, fn := range tune {
		fn(&settings)
	}
	logger := zap.NewNop()

	f.broadcast = NewBroadcastService(f.requests, f.profiles, f.messenger, settings, logger)
	f.negotiation = NewNegotiationService(f.requests, f.profiles, f.broadcast, f.messenger, f.events, settings, logger)
	f.claims = NewClaimService(f.requests, f.profiles, f.broadcast, f.messenger, f.events, settings, logger)
	f.requestSvc = NewRequestService(f.requests, f.profiles, f.broadcast, f.messenger, f.events, f.routes, settings, logger)
	f.profileSvc = NewProfileService(f.profiles, f.routes, f.notifier, logger)
	return f
}

func (f *fixture) addCarrier(t *testing.T, id int64, routeKey string, online bool) {
	t.Helper()
	require.NoError(t, f.profiles.Save(f.ctx, &models.Profile{
		ID:             id,
		Role:           models.RoleCarrier,
		Name:           "carrier",
		Phone:          "+998900000000",
		Route:          routeKey,
		Online:         online,
		ApprovalStatus: models.ApprovalApproved,
	}))
}

func (f *fixture) createRequest(t *testing.T, requesterID int64) *models.Request {
	t.Helper()
	req, err := f.requestSvc.CreateRequest(f.ctx, models.CreateRequestInput{
		RequesterRef: requesterID,
		Origin:       "Tashkent",
		Destination:  "Namangan",
		DesiredTime:  "tomorrow 9:00",
		Type:         models.RequestTypeTransport,
		Seats:        2,
		CreatedBy:    models.CreatedByRequester,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) createOperatorRequest(t *testing.T) *models.Request {
	t.Helper()
	req, err := f.requestSvc.CreateRequest(f.ctx, models.CreateRequestInput{
		Origin:       "Tashkent",
		Destination:  "Namangan",
		DesiredTime:  "today 18:00",
		Type:         models.RequestTypeParcel,
		PackageKind:  "documents",
		ContactPhone: "+998901234567",
		CreatedBy:    models.CreatedByOperator,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) load(t *testing.T, id string) *models.Request {
	t.Helper()
	req, err := f.requests.GetByID(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, req)
	return req
}

func kindOf(err error) apperrors.Kind {
	return apperrors.KindOf(err)
}
