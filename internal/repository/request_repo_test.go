package repository

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aditya/go-carpool/internal/errors"
	"github.com/aditya/go-carpool/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func columns(list string) []string {
	var out []string
	for _, c := range strings.Split(list, ",") {
		out = append(out, strings.TrimSpace(c))
	}
	return out
}

func requestRow(id string, status string, version int64) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, int64(7), "Tashkent", "Namangan", "tash_nam", "tomorrow 9:00", int64(2),
		"", models.RequestTypeTransport, "near the bazaar", nil, nil, nil, status, int64(0),
		models.CreatedByRequester,
		[]byte(`[{"id":"o1","kind":"bid","carrier_ref":11,"price":100,"status":"pending"}]`),
		[]byte(`[{"carrier_ref":12,"decline_count":1}]`),
		[]byte(`[{"carrier_ref":11,"message_ref":501}]`),
		version, now, now,
	}
}

func TestRequestRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	mock.ExpectExec(`INSERT INTO requests`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := &models.Request{RequesterRef: 7, Status: models.RequestStatusOpen, CreatedBy: models.CreatedByRequester}
	require.NoError(t, repo.Create(context.Background(), req))

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, int64(1), req.Version)
	assert.False(t, req.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_CreateDuplicateActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	mock.ExpectExec(`INSERT INTO requests`).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Request{RequesterRef: 7})
	assert.ErrorIs(t, err, apperrors.ErrActiveExists)
}

func TestRequestRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)
	id := "5b0f4c52-4a8e-4e57-9a39-8c3c1f0a6b11"

	rows := sqlmock.NewRows(columns(requestColumns)).AddRow(requestRow(id, models.RequestStatusNegotiating, 3)...)
	mock.ExpectQuery(`(?s)SELECT (.+) FROM requests WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(rows)

	req, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, req)

	assert.Equal(t, models.RequestStatusNegotiating, req.Status)
	assert.Equal(t, int64(3), req.Version)
	require.Len(t, req.Offers, 1)
	assert.Equal(t, int64(100), req.Offers[0].Price)
	require.Len(t, req.BlockedCarriers, 1)
	assert.Nil(t, req.BlockedCarriers[0].BlockedUntil)
	require.Len(t, req.NotificationHandles, 1)
	assert.Equal(t, 501, req.NotificationHandles[0].MessageRef)
	assert.Nil(t, req.VoiceRef)
}

func TestRequestRepository_GetByIDMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)
	id := "5b0f4c52-4a8e-4e57-9a39-8c3c1f0a6b11"

	mock.ExpectQuery(`(?s)SELECT (.+) FROM requests WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns(requestColumns)))

	req, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, req)

	// malformed ids never reach the database
	req, err = repo.GetByID(context.Background(), "not-a-uuid")
	assert.NoError(t, err)
	assert.Nil(t, req)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepository_UpdateCompareAndSwap(t *testing.T) {
	tests := []struct {
		name        string
		affected    int64
		wantErr     error
		wantVersion int64
	}{
		{"version matches", 1, nil, 5},
		{"lost the race", 0, apperrors.ErrStaleWrite, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewRequestRepository(db)

			req := &models.Request{ID: "r1", Status: models.RequestStatusMatched, Version: 4}
			mock.ExpectExec(`UPDATE requests`).
				WithArgs(models.RequestStatusMatched, 0, sqlmock.AnyArg(), sqlmock.AnyArg(),
					sqlmock.AnyArg(), sqlmock.AnyArg(), "r1", int64(4)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Update(context.Background(), req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantVersion, req.Version)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRequestRepository_ListOpen(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRequestRepository(db)

	rows := sqlmock.NewRows(columns(requestColumns)).
		AddRow(requestRow("5b0f4c52-4a8e-4e57-9a39-8c3c1f0a6b11", models.RequestStatusOpen, 1)...).
		AddRow(requestRow("6c1f4c52-4a8e-4e57-9a39-8c3c1f0a6b22", models.RequestStatusOpen, 2)...)
	mock.ExpectQuery(`(?s)SELECT (.+) FROM requests`).
		WithArgs(models.RequestStatusOpen, "tash_nam", 10, 10).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM requests`).
		WithArgs(models.RequestStatusOpen, "tash_nam").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	reqs, err := repo.ListOpen(context.Background(), "tash_nam", 10, 10)
	require.NoError(t, err)
	assert.Len(t, reqs, 2)

	n, err := repo.CountOpen(context.Background(), "tash_nam")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}
