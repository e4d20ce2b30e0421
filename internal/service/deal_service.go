package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/deal-desk-api/internal/models"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
	"github.com/noah-isme/deal-desk-api/pkg/export"
)

// DealStore is the persistence contract for deals. Lookups that find nothing
// return sql.ErrNoRows.
type DealStore interface {
	GetAll(ctx context.Context) ([]models.Deal, error)
	GetByID(ctx context.Context, id string) (*models.Deal, error)
	GetByTicker(ctx context.Context, ticker string) (*models.Deal, error)
	Save(ctx context.Context, deal *models.Deal) error
	Delete(ctx context.Context, id string) (bool, error)
}

// Export formats.
const (
	ExportCSV = "csv"
	ExportPDF = "pdf"
)

var exportHeaders = []string{
	"Ticker", "Structure", "Company", "Status", "Pricing Date", "Amount (M)", "Price", "Sector", "Country",
}

type datasetWriter interface {
	Write(w io.Writer, data export.Dataset) error
	ContentType() string
	Extension() string
}

type cachedDealPage struct {
	Deals      []models.Deal     `json:"deals"`
	Pagination models.Pagination `json:"pagination"`
}

// DealService answers list queries over the store and owns query cache
// invalidation.
type DealService struct {
	store   DealStore
	cache   *CacheService
	writers map[string]datasetWriter
	logger  *zap.Logger
	now     func() time.Time
}

// NewDealService constructs a DealService. cache may be nil.
func NewDealService(store DealStore, cache *CacheService, logger *zap.Logger) *DealService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DealService{
		store: store,
		cache: cache,
		writers: map[string]datasetWriter{
			ExportCSV: export.NewCSVExporter(),
			ExportPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// List returns one page of deals matching filter.
func (s *DealService) List(ctx context.Context, filter models.DealFilter) ([]models.Deal, *models.Pagination, bool, error) {
	filter = filter.Normalize()
	key := "deals:list:" + filter.CacheKey()

	var cached cachedDealPage
	if s.cache.Get(ctx, key, &cached) {
		return cached.Deals, &cached.Pagination, true, nil
	}

	all, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deals")
	}
	page, pagination := QueryDeals(all, filter)
	s.cache.Set(ctx, key, cachedDealPage{Deals: page, Pagination: pagination}, 0)
	return page, &pagination, false, nil
}

// All returns every deal in the store.
func (s *DealService) All(ctx context.Context) ([]models.Deal, error) {
	deals, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deals")
	}
	return deals, nil
}

// Get returns a deal by id.
func (s *DealService) Get(ctx context.Context, id string) (*models.Deal, error) {
	deal, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "deal not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load deal")
	}
	return deal, nil
}

// Delete removes a deal by id.
func (s *DealService) Delete(ctx context.Context, id string) error {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete deal")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "deal not found")
	}
	s.InvalidateDeals(ctx)
	return nil
}

// Summary counts deals per lifecycle status.
func (s *DealService) Summary(ctx context.Context) (models.DealSummary, error) {
	key := "deals:summary"
	var summary models.DealSummary
	if s.cache.Get(ctx, key, &summary) {
		return summary, nil
	}
	deals, err := s.All(ctx)
	if err != nil {
		return models.DealSummary{}, err
	}
	summary = Summarize(deals)
	s.cache.Set(ctx, key, summary, 0)
	return summary, nil
}

// InvalidateDeals drops every cached deal query. It is called after each
// mutation; failures only cost freshness until the TTL expires.
func (s *DealService) InvalidateDeals(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, DealCachePattern); err != nil {
		s.logger.Warn("deal cache invalidation failed", zap.Error(err))
	}
}

// ExportResult describes a rendered export for the transport layer.
type ExportResult struct {
	ContentType string
	Filename    string
}

// Export renders deals in format to w.
func (s *DealService) Export(w io.Writer, format string, deals []models.Deal) (*ExportResult, error) {
	writer, ok := s.writers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if len(deals) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "No deals to export.")
	}
	data := export.Dataset{Title: "Deal Export", Headers: exportHeaders, Rows: make([][]string, 0, len(deals))}
	for _, d := range deals {
		data.Rows = append(data.Rows, []string{
			d.Ticker,
			d.Structure,
			text(d.CompanyName),
			string(d.Status),
			text(d.PricingDate),
			number(d.SharesAmount),
			number(d.OfferingPrice),
			text(d.Sector),
			text(d.Country),
		})
	}
	if err := writer.Write(w, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		ContentType: writer.ContentType(),
		Filename:    fmt.Sprintf("deals_export_%s%s", s.now().UTC().Format("20060102_150405"), writer.Extension()),
	}, nil
}

// SelectForExport returns the selected deals when ids is non-empty, otherwise
// the filtered, sorted list without pagination.
func SelectForExport(all []models.Deal, ids []string, filter models.DealFilter) []models.Deal {
	if len(ids) > 0 {
		wanted := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			wanted[id] = struct{}{}
		}
		out := make([]models.Deal, 0, len(ids))
		for _, d := range all {
			if _, ok := wanted[d.ID]; ok {
				out = append(out, d)
			}
		}
		return out
	}
	filter = filter.Normalize()
	filtered := FilterDeals(all, filter)
	SortDeals(filtered, filter.SortBy, filter.SortDirection)
	return filtered
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func number(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
