package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/deal-desk-api/internal/models"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
)

type memoryCacheRepo struct {
	data     map[string][]byte
	patterns []string
	getErr   error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

func TestDealServiceListUsesCache(t *testing.T) {
	store := newMockDealStore(
		models.Deal{Ticker: "AAPL", Structure: "IPO", Status: models.DealStatusActive},
		models.Deal{Ticker: "MSFT", Structure: "IPO", Status: models.DealStatusDraft},
	)
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := NewDealService(store, cache, nil)
	ctx := context.Background()

	deals, pagination, hit, err := svc.List(ctx, models.DealFilter{Status: "active"})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, deals, 1)
	assert.Equal(t, 1, pagination.TotalCount)

	deals, _, hit, err = svc.List(ctx, models.DealFilter{Status: "active"})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "AAPL", deals[0].Ticker)

	require.NoError(t, svc.Delete(ctx, "deal-1"))
	assert.Equal(t, []string{DealCachePattern}, repo.patterns)

	deals, _, hit, err = svc.List(ctx, models.DealFilter{Status: "active"})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, deals)
}

func TestDealServiceCacheFailureFallsThrough(t *testing.T) {
	store := newMockDealStore(models.Deal{Ticker: "AAPL", Structure: "IPO"})
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewDealService(store, NewCacheService(repo, nil, time.Minute, nil, true), nil)

	deals, _, hit, err := svc.List(context.Background(), models.DealFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, deals, 1)
}

func TestDealServiceGetAndDeleteNotFound(t *testing.T) {
	svc := NewDealService(newMockDealStore(), nil, nil)

	_, err := svc.Get(context.Background(), "missing")
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)

	err = svc.Delete(context.Background(), "missing")
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDealServiceSummary(t *testing.T) {
	svc := NewDealService(newMockDealStore(
		models.Deal{Ticker: "AAPL", Status: models.DealStatusActive},
		models.Deal{Ticker: "MSFT", Status: models.DealStatusPendingReview},
		models.Deal{Ticker: "GOOG", Status: models.DealStatusPendingReview},
		models.Deal{Ticker: "AMZN", Status: models.DealStatusDraft},
	), nil, nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DealSummary{Total: 4, Draft: 1, PendingReview: 2, Active: 1}, summary)
}

func TestDealServiceExportCSV(t *testing.T) {
	svc := NewDealService(newMockDealStore(), nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	var buf bytes.Buffer
	res, err := svc.Export(&buf, ExportCSV, []models.Deal{{
		Ticker:        "AAPL",
		Structure:     "IPO",
		CompanyName:   stringRef("Apple"),
		Status:        models.DealStatusActive,
		PricingDate:   stringRef("2026-01-15"),
		SharesAmount:  floatRef(12.5),
		OfferingPrice: floatRef(25),
	}})
	require.NoError(t, err)
	assert.Equal(t, "deals_export_20260304_050607.csv", res.Filename)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Ticker,Structure,Company,Status,Pricing Date,Amount (M),Price,Sector,Country", strings.TrimSpace(lines[0]))
	assert.Equal(t, "AAPL,IPO,Apple,active,2026-01-15,12.5,25,,", strings.TrimSpace(lines[1]))
}

func TestDealServiceExportRejectsEmptyAndUnknown(t *testing.T) {
	svc := NewDealService(newMockDealStore(), nil, nil)
	var buf bytes.Buffer

	_, err := svc.Export(&buf, ExportCSV, nil)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "No deals to export.", appErr.Message)

	_, err = svc.Export(&buf, "xlsx", []models.Deal{{Ticker: "AAPL"}})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestDealServiceExportPDF(t *testing.T) {
	svc := NewDealService(newMockDealStore(), nil, nil)
	var buf bytes.Buffer

	res, err := svc.Export(&buf, ExportPDF, []models.Deal{{Ticker: "AAPL", Structure: "IPO"}})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}
