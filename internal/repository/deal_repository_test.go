package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/deal-desk-api/internal/models"
)

func newDealRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var dealColumns = []string{"id", "ticker", "status", "payload", "created_at", "updated_at"}

func TestDealRepositoryGetAllDecodesPayload(t *testing.T) {
	db, mock, cleanup := newDealRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	price := 21.5
	payload, err := json.Marshal(models.Deal{Ticker: "AAPL", Structure: "IPO", OfferingPrice: &price, Status: models.DealStatusActive})
	require.NoError(t, err)
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, ticker, status, payload, created_at, updated_at FROM deals ORDER BY created_at DESC, id")).
		WillReturnRows(sqlmock.NewRows(dealColumns).AddRow("d-1", "AAPL", "active", payload, created, created))

	deals, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, "d-1", deals[0].ID)
	assert.Equal(t, "AAPL", deals[0].Ticker)
	assert.Equal(t, 21.5, *deals[0].OfferingPrice)
	assert.Equal(t, created, deals[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDealRepositoryGetByIDMissing(t *testing.T) {
	db, mock, cleanup := newDealRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	mock.ExpectQuery("FROM deals WHERE id = ").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDealRepositoryGetByTicker(t *testing.T) {
	db, mock, cleanup := newDealRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	payload := []byte(`{"ticker":"MSFT","structure":"M&A","status":"draft"}`)
	now := time.Now().UTC()
	mock.ExpectQuery("FROM deals WHERE ticker = .* ORDER BY updated_at DESC LIMIT 1").
		WithArgs("MSFT").
		WillReturnRows(sqlmock.NewRows(dealColumns).AddRow("d-2", "MSFT", "draft", payload, now, now))

	deal, err := repo.GetByTicker(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "d-2", deal.ID)
	assert.Equal(t, models.DealStatusDraft, deal.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDealRepositorySaveUpserts(t *testing.T) {
	db, mock, cleanup := newDealRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	mock.ExpectExec("INSERT INTO deals .* ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs(sqlmock.AnyArg(), "AAPL", "pending_review", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	deal := &models.Deal{Ticker: "AAPL", Structure: "IPO", Status: models.DealStatusPendingReview}
	require.NoError(t, repo.Save(context.Background(), deal))
	assert.NotEmpty(t, deal.ID)
	assert.False(t, deal.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDealRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newDealRepoMock(t)
	defer cleanup()
	repo := NewDealRepository(db)

	mock.ExpectExec("DELETE FROM deals WHERE id = ").WithArgs("d-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM deals WHERE id = ").WithArgs("d-1").WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.Delete(context.Background(), "d-1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(context.Background(), "d-1")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
