package bot

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aditya/go-carpool/internal/cache"
	"github.com/aditya/go-carpool/internal/control"
	"github.com/aditya/go-carpool/internal/events"
	"github.com/aditya/go-carpool/internal/models"
	"github.com/aditya/go-carpool/internal/notify/notifytest"
	"github.com/aditya/go-carpool/internal/repository"
	"github.com/aditya/go-carpool/internal/service"
)

const (
	requester = int64(100)
	carrier   = int64(1)
)

type stubLimiter struct {
	deny  bool
	panic bool
}

func (l *stubLimiter) Allow(ctx context.Context, userRef int64) bool {
	if l.panic {
		panic("limiter exploded")
	}
	return !l.deny
}

type recordingDiagnostics struct {
	mu     sync.Mutex
	causes []interface{}
}

func (r *recordingDiagnostics) Diagnostic(ctx context.Context, where string, cause interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.causes = append(r.causes, cause)
}

func (r *recordingDiagnostics) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.causes)
}

// trackedSessions counts consuming reads and can fail deletes.
type trackedSessions struct {
	cache.SessionCache

	mu        sync.Mutex
	takes     int
	deletes   int
	deleteErr error
}

func (s *trackedSessions) Take(ctx context.Context, userRef int64) (*models.Session, error) {
	s.mu.Lock()
	s.takes++
	s.mu.Unlock()
	return s.SessionCache.Take(ctx, userRef)
}

func (s *trackedSessions) Delete(ctx context.Context, userRef int64) error {
	s.mu.Lock()
	s.deletes++
	err := s.deleteErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.SessionCache.Delete(ctx, userRef)
}

type harness struct {
	ctx       context.Context
	d         *Dispatcher
	messenger *notifytest.Messenger
	requests  *repository.MemoryRequestStore
	profiles  *repository.MemoryProfileStore
	sessions  *cache.MemorySessionCache
	tracked   *trackedSessions
	logs      *observer.ObservedLogs
	limiter   *stubLimiter
	diag      *recordingDiagnostics
	service   service.RequestService

	nextInteraction int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		ctx:       context.Background(),
		messenger: notifytest.New(),
		requests:  repository.NewMemoryRequestStore(),
		profiles:  repository.NewMemoryProfileStore(),
		sessions:  cache.NewMemorySessionCache(100, time.Minute),
		limiter:   &stubLimiter{},
		diag:      &recordingDiagnostics{},
	}
	routes := service.NewRouteTable([]models.Route{
		{Key: "tash_nam", Origin: "Tashkent", Destination: "Namangan"},
		{Key: "nam_tash", Origin: "Namangan", Destination: "Tashkent"},
	})
	h.tracked = &trackedSessions{SessionCache: h.sessions}
	core, logs := observer.New(zap.WarnLevel)
	h.logs = logs
	logger := zap.NewNop()
	settings := service.Settings{}
	pub := events.Nop{}

	broadcast := service.NewBroadcastService(h.requests, h.profiles, h.messenger, settings, logger)
	h.service = service.NewRequestService(h.requests, h.profiles, broadcast, h.messenger, pub, routes, settings, logger)
	h.d = NewDispatcher(Deps{
		Requests:    h.service,
		Negotiation: service.NewNegotiationService(h.requests, h.profiles, broadcast, h.messenger, pub, settings, logger),
		Claims:      service.NewClaimService(h.requests, h.profiles, broadcast, h.messenger, pub, settings, logger),
		Profiles:    service.NewProfileService(h.profiles, routes, nil, logger),
		Routes:      routes,
		Sessions:    h.tracked,
		Messenger:   h.messenger,
		Limiter:     h.limiter,
		Diagnostics: h.diag,
		Logger:      zap.New(core),
	})
	return h
}

func (h *harness) addCarrier(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, h.profiles.Save(h.ctx, &models.Profile{
		ID:             id,
		Role:           models.RoleCarrier,
		Name:           "Carrier",
		Phone:          "+998900000001",
		Route:          "tash_nam",
		Online:         true,
		ApprovalStatus: models.ApprovalApproved,
	}))
}

func (h *harness) send(userID int64, text string) {
	h.d.Handle(h.ctx, Update{UserID: userID, ChatID: userID, UserName: "user", Text: text})
}

// tap sends an interaction and returns the single answer it produced.
func (h *harness) tap(t *testing.T, userID int64, c control.Control) notifytest.Answer {
	t.Helper()
	data, err := control.Encode(c)
	require.NoError(t, err)
	return h.tapRaw(t, userID, data)
}

func (h *harness) tapRaw(t *testing.T, userID int64, data string) notifytest.Answer {
	t.Helper()
	h.nextInteraction++
	before := len(h.messenger.Answers())
	h.d.Handle(h.ctx, Update{
		UserID:        userID,
		ChatID:        userID,
		InteractionID: "cb-" + strconv.Itoa(h.nextInteraction),
		Data:          data,
	})
	answers := h.messenger.Answers()
	require.Len(t, answers, before+1, "every interaction is answered exactly once")
	return answers[len(answers)-1]
}

func (h *harness) createRequest(t *testing.T) *models.Request {
	t.Helper()
	req, err := h.service.CreateRequest(h.ctx, models.CreateRequestInput{
		RequesterRef: requester,
		Origin:       "Tashkent",
		Destination:  "Namangan",
		DesiredTime:  "tomorrow",
		Type:         models.RequestTypeTransport,
		Seats:        1,
		CreatedBy:    models.CreatedByRequester,
	})
	require.NoError(t, err)
	return req
}

func (h *harness) lastText(t *testing.T, chatID int64) string {
	t.Helper()
	m, ok := h.messenger.Last(chatID)
	require.True(t, ok, "expected a message to %d", chatID)
	return m.Text
}
