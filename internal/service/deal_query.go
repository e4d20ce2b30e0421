package service

import (
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/noah-isme/deal-desk-api/internal/models"
)

// FilterDeals applies search, status and pricing date filters. The input
// slice is never modified.
func FilterDeals(deals []models.Deal, filter models.DealFilter) []models.Deal {
	q := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]models.Deal, 0, len(deals))
	for _, deal := range deals {
		if q != "" && !matchesSearch(deal, q) {
			continue
		}
		if filter.Status != "" && filter.Status != models.StatusFilterAll && string(deal.Status) != filter.Status {
			continue
		}
		if filter.StartDate != "" && (deal.PricingDate == nil || *deal.PricingDate < filter.StartDate) {
			continue
		}
		if filter.EndDate != "" && (deal.PricingDate == nil || *deal.PricingDate > filter.EndDate) {
			continue
		}
		out = append(out, deal)
	}
	return out
}

func matchesSearch(deal models.Deal, q string) bool {
	if strings.Contains(strings.ToLower(deal.Ticker), q) {
		return true
	}
	for _, field := range []*string{deal.CompanyName, deal.Sector, deal.Country} {
		if field != nil && strings.Contains(strings.ToLower(*field), q) {
			return true
		}
	}
	return false
}

// SortDeals orders deals by any schema column in place. Missing numeric
// values sort as -1 and missing text as the empty string; ties keep input order.
func SortDeals(deals []models.Deal, column, direction string) {
	if column == "" || !models.IsDealField(column) {
		return
	}
	desc := direction == "desc"
	numeric := models.IsNumericField(column)

	type keyed struct {
		deal models.Deal
		num  float64
		text string
	}
	rows := make([]keyed, len(deals))
	for i, deal := range deals {
		rows[i].deal = deal
		raw := deal.Values()[column]
		switch {
		case numeric && raw == nil:
			rows[i].num = -1
		case numeric:
			rows[i].num = cast.ToFloat64(raw)
		default:
			rows[i].text = cast.ToString(raw)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if numeric {
			if desc {
				return a.num > b.num
			}
			return a.num < b.num
		}
		if desc {
			return a.text > b.text
		}
		return a.text < b.text
	})
	for i := range rows {
		deals[i] = rows[i].deal
	}
}

// Paginate slices one page out of deals and reports pagination metadata.
// The requested page is clamped into range; total pages is at least one.
func Paginate(deals []models.Deal, page, size int) ([]models.Deal, models.Pagination) {
	if size <= 0 {
		size = models.DefaultPageSize
	}
	total := len(deals)
	pages := int(math.Ceil(float64(total) / float64(size)))
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	out := make([]models.Deal, end-start)
	copy(out, deals[start:end])
	return out, models.Pagination{Page: page, PageSize: size, TotalCount: total, TotalPages: pages}
}

// QueryDeals runs filter, sort and pagination in one pass.
func QueryDeals(deals []models.Deal, filter models.DealFilter) ([]models.Deal, models.Pagination) {
	filter = filter.Normalize()
	filtered := FilterDeals(deals, filter)
	SortDeals(filtered, filter.SortBy, filter.SortDirection)
	return Paginate(filtered, filter.Page, filter.PageSize)
}

// Summarize counts deals per status.
func Summarize(deals []models.Deal) models.DealSummary {
	summary := models.DealSummary{Total: len(deals)}
	for _, deal := range deals {
		switch deal.Status {
		case models.DealStatusDraft:
			summary.Draft++
		case models.DealStatusPendingReview:
			summary.PendingReview++
		case models.DealStatusActive:
			summary.Active++
		}
	}
	return summary
}
