package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/models"
)

// MemoryRequestStore is an in-process RequestRepository with the same
// conditional-write semantics as the Postgres one. Callers always receive
// clones.
type MemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[string]*models.Request
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[string]*models.Request)}
}

func (m *MemoryRequestStore) Create(ctx context.Context, req *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.RequesterRef != 0 {
		for _, existing := range m.requests {
			if existing.RequesterRef == req.RequesterRef && existing.IsActive() {
				return apperrors.ErrActiveExists
			}
		}
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	req.Version = 1
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *MemoryRequestStore) GetByID(ctx context.Context, id string) (*models.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return req.Clone(), nil
}

func (m *MemoryRequestStore) Update(ctx context.Context, req *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.requests[req.ID]
	if !ok || stored.Version != req.Version {
		return apperrors.ErrStaleWrite
	}
	req.Version++
	req.UpdatedAt = time.Now()
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *MemoryRequestStore) GetActiveByRequester(ctx context.Context, requesterRef int64) (*models.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.Request
	for _, req := range m.requests {
		if req.RequesterRef != requesterRef || !req.IsActive() {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, nil
	}
	return latest.Clone(), nil
}

func (m *MemoryRequestStore) ListOpen(ctx context.Context, routeKey string, limit, offset int) ([]*models.Request, error) {
	open := m.open(routeKey)
	if offset >= len(open) {
		return nil, nil
	}
	end := offset + limit
	if end > len(open) {
		end = len(open)
	}
	return open[offset:end], nil
}

func (m *MemoryRequestStore) CountOpen(ctx context.Context, routeKey string) (int, error) {
	return len(m.open(routeKey)), nil
}

func (m *MemoryRequestStore) open(routeKey string) []*models.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Request
	for _, req := range m.requests {
		if req.Status != models.RequestStatusOpen {
			continue
		}
		if routeKey != "" && req.RouteKey != routeKey {
			continue
		}
		out = append(out, req.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// MemoryProfileStore is an in-process ProfileRepository.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[int64]*models.Profile
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[int64]*models.Profile)}
}

func (m *MemoryProfileStore) FindCarriers(ctx context.Context, filter models.CarrierFilter) ([]*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Profile
	for _, p := range m.profiles {
		if filter.Matches(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryProfileStore) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryProfileStore) Save(ctx context.Context, p *models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.ApprovalStatus == "" {
		p.ApprovalStatus = models.ApprovalPending
	}
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}
