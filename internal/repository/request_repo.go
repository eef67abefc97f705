package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/models"
)

// RequestRepository persists request aggregates. Update is a conditional
// write on Version and returns apperrors.ErrStaleWrite when another writer
// got there first. Lookups return nil, nil when nothing matches.
type RequestRepository interface {
	Create(ctx context.Context, req *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	Update(ctx context.Context, req *models.Request) error
	GetActiveByRequester(ctx context.Context, requesterRef int64) (*models.Request, error)
	ListOpen(ctx context.Context, routeKey string, limit, offset int) ([]*models.Request, error)
	CountOpen(ctx context.Context, routeKey string) (int, error)
}

const requestColumns = `id, requester_ref, origin, destination, route_key, desired_time, seats,
	package_kind, type, location_detail, voice_ref, photo_ref, contact_phone, status, claim_count,
	created_by, offers, blocked_carriers, notification_handles, version, created_at, updated_at`

type requestRepository struct {
	db *sqlx.DB
}

func NewRequestRepository(db *sqlx.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, req *models.Request) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	req.Version = 1

	query := `
		INSERT INTO requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.RequesterRef, req.Origin, req.Destination, req.RouteKey, req.DesiredTime, req.Seats,
		req.PackageKind, req.Type, req.LocationDetail, req.VoiceRef, req.PhotoRef, req.ContactPhone, req.Status, req.ClaimCount,
		req.CreatedBy, req.Offers, req.BlockedCarriers, req.NotificationHandles, req.Version, req.CreatedAt, req.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return apperrors.ErrActiveExists
	}
	return err
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	var req models.Request
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	err := r.db.GetContext(ctx, &req, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Update writes every mutable field if the stored version still matches and
// bumps req.Version on success.
func (r *requestRepository) Update(ctx context.Context, req *models.Request) error {
	updatedAt := time.Now()
	query := `
		UPDATE requests
		SET status = $1, claim_count = $2, offers = $3, blocked_carriers = $4,
			notification_handles = $5, updated_at = $6, version = version + 1
		WHERE id = $7 AND version = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		req.Status, req.ClaimCount, req.Offers, req.BlockedCarriers,
		req.NotificationHandles, updatedAt, req.ID, req.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrStaleWrite
	}
	req.Version++
	req.UpdatedAt = updatedAt
	return nil
}

func (r *requestRepository) GetActiveByRequester(ctx context.Context, requesterRef int64) (*models.Request, error) {
	var req models.Request
	query := `
		SELECT ` + requestColumns + ` FROM requests
		WHERE requester_ref = $1 AND status NOT IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &req, query, requesterRef, models.RequestStatusCompleted, models.RequestStatusCancelled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListOpen returns open requests newest first. An empty routeKey lists every
// route.
func (r *requestRepository) ListOpen(ctx context.Context, routeKey string, limit, offset int) ([]*models.Request, error) {
	var reqs []*models.Request
	query := `
		SELECT ` + requestColumns + ` FROM requests
		WHERE status = $1 AND ($2 = '' OR route_key = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	err := r.db.SelectContext(ctx, &reqs, query, models.RequestStatusOpen, routeKey, limit, offset)
	return reqs, err
}

func (r *requestRepository) CountOpen(ctx context.Context, routeKey string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM requests WHERE status = $1 AND ($2 = '' OR route_key = $2)`
	err := r.db.GetContext(ctx, &n, query, models.RequestStatusOpen, routeKey)
	return n, err
}
