package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/deal-desk-api/internal/models"
)

func queryFixture() []models.Deal {
	return []models.Deal{
		{ID: "1", Ticker: "AAPL", CompanyName: stringRef("Apple"), Status: models.DealStatusActive, PricingDate: stringRef("2026-02-01"), MarketCap: floatRef(300)},
		{ID: "2", Ticker: "MSFT", Sector: stringRef("Technology"), Status: models.DealStatusDraft, PricingDate: stringRef("2026-01-01")},
		{ID: "3", Ticker: "XOM", Country: stringRef("USA"), Status: models.DealStatusPendingReview, MarketCap: floatRef(100)},
	}
}

func TestFilterDeals(t *testing.T) {
	deals := queryFixture()

	assert.Len(t, FilterDeals(deals, models.DealFilter{Search: "apple"}), 1)
	assert.Len(t, FilterDeals(deals, models.DealFilter{Search: "techno"}), 1)
	assert.Len(t, FilterDeals(deals, models.DealFilter{Search: "usa"}), 1)
	assert.Len(t, FilterDeals(deals, models.DealFilter{Status: "all"}), 3)
	assert.Len(t, FilterDeals(deals, models.DealFilter{Status: "draft"}), 1)

	ranged := FilterDeals(deals, models.DealFilter{StartDate: "2026-01-15"})
	assert.Len(t, ranged, 1)
	assert.Equal(t, "AAPL", ranged[0].Ticker)
	assert.Len(t, FilterDeals(deals, models.DealFilter{EndDate: "2026-12-31"}), 2)
}

func TestSortDealsMissingValues(t *testing.T) {
	deals := queryFixture()

	SortDeals(deals, "market_cap", "asc")
	assert.Equal(t, []string{"MSFT", "XOM", "AAPL"}, tickers(deals))

	SortDeals(deals, "pricing_date", "desc")
	assert.Equal(t, []string{"AAPL", "MSFT", "XOM"}, tickers(deals))

	SortDeals(deals, "ticker", "asc")
	assert.Equal(t, []string{"AAPL", "MSFT", "XOM"}, tickers(deals))
}

func TestPaginateClampsPage(t *testing.T) {
	deals := queryFixture()

	page, p := Paginate(deals, 9, 2)
	assert.Equal(t, 2, p.Page)
	assert.Equal(t, 2, p.TotalPages)
	assert.Len(t, page, 1)

	page, p = Paginate(nil, 1, 10)
	assert.Empty(t, page)
	assert.Equal(t, 1, p.TotalPages)
}

func TestSelectForExport(t *testing.T) {
	deals := queryFixture()

	assert.Len(t, SelectForExport(deals, []string{"3", "missing"}, models.DealFilter{}), 1)
	assert.Len(t, SelectForExport(deals, nil, models.DealFilter{Status: "active"}), 1)
}

func tickers(deals []models.Deal) []string {
	out := make([]string, len(deals))
	for i, d := range deals {
		out[i] = d.Ticker
	}
	return out
}
