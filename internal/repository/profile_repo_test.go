package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aditya/go-carpool/internal/models"
)

func TestProfileRepository_FindCarriers(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)
	online := true
	now := time.Now()

	rows := sqlmock.NewRows(columns(profileColumns)).
		AddRow(int64(11), models.RoleCarrier, "Aziz", "+998901112233", "Cobalt", "tash_nam", true, models.ApprovalApproved, now, now)
	mock.ExpectQuery(`FROM profiles WHERE role = \$1 AND online = \$2 AND approval_status = \$3 AND route = \$4 ORDER BY id`).
		WithArgs(models.RoleCarrier, true, models.ApprovalApproved, "tash_nam").
		WillReturnRows(rows)

	got, err := repo.FindCarriers(context.Background(), models.CarrierFilter{
		Online:         &online,
		ApprovalStatus: models.ApprovalApproved,
		Route:          "tash_nam",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(11), got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_GetByIDMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectQuery(`FROM profiles WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(columns(profileColumns)))

	p, err := repo.GetByID(context.Background(), 99)
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestProfileRepository_SaveUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProfileRepository(db)

	mock.ExpectExec(`(?s)INSERT INTO profiles (.+) ON CONFLICT \(id\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := &models.Profile{ID: 11, Role: models.RoleCarrier}
	require.NoError(t, repo.Save(context.Background(), p))
	assert.Equal(t, models.ApprovalPending, p.ApprovalStatus)
	assert.False(t, p.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
