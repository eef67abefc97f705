package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aditya/go-carpool/internal/models"
)

type ProfileRepository interface {
	FindCarriers(ctx context.Context, filter models.CarrierFilter) ([]*models.Profile, error)
	GetByID(ctx context.Context, id int64) (*models.Profile, error)
	Save(ctx context.Context, p *models.Profile) error
}

const profileColumns = `id, role, name, phone, car_model, route, online, approval_status, created_at, updated_at`

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) FindCarriers(ctx context.Context, filter models.CarrierFilter) ([]*models.Profile, error) {
	conds := []string{"role = $1"}
	args := []interface{}{models.RoleCarrier}
	add := func(column string, v interface{}) {
		args = append(args, v)
		conds = append(conds, column+" = $"+strconv.Itoa(len(args)))
	}
	if filter.Online != nil {
		add("online", *filter.Online)
	}
	if filter.ApprovalStatus != "" {
		add("approval_status", filter.ApprovalStatus)
	}
	if filter.Route != "" {
		add("route", filter.Route)
	}
	if filter.Model != "" {
		add("car_model", filter.Model)
	}

	query := `SELECT ` + profileColumns + ` FROM profiles WHERE ` + strings.Join(conds, " AND ") + ` ORDER BY id`
	var profiles []*models.Profile
	err := r.db.SelectContext(ctx, &profiles, query, args...)
	return profiles, err
}

func (r *profileRepository) GetByID(ctx context.Context, id int64) (*models.Profile, error) {
	var p models.Profile
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	err := r.db.GetContext(ctx, &p, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save inserts the profile or overwrites the stored one.
func (r *profileRepository) Save(ctx context.Context, p *models.Profile) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.ApprovalStatus == "" {
		p.ApprovalStatus = models.ApprovalPending
	}

	query := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET role = EXCLUDED.role, name = EXCLUDED.name, phone = EXCLUDED.phone,
			car_model = EXCLUDED.car_model, route = EXCLUDED.route, online = EXCLUDED.online,
			approval_status = EXCLUDED.approval_status, updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Role, p.Name, p.Phone, p.CarModel, p.Route, p.Online,
		p.ApprovalStatus, p.CreatedAt, p.UpdatedAt)
	return err
}
