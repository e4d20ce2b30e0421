package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/deal-desk-api/internal/models"
	"github.com/noah-isme/deal-desk-api/internal/service"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
	"github.com/noah-isme/deal-desk-api/pkg/response"
)

// ListHandler drives the per-session deal list: query, paging, selection and
// the delete confirmation gate.
type ListHandler struct {
	exporter exporter
}

// NewListHandler builds a list handler. exporter renders selection exports.
func NewListHandler(exporter exporter) *ListHandler {
	return &ListHandler{exporter: exporter}
}

// Page godoc
// @Summary Current page of the session deal list
// @Tags List
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals [get]
func (h *ListHandler) Page(c *gin.Context) {
	h.view(c, nil)
}

// Refresh godoc
// @Summary Reload deals from the store
// @Tags List
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/refresh [post]
func (h *ListHandler) Refresh(c *gin.Context) {
	h.outcome(c, func(s *service.Session) models.Outcome {
		return s.Controller.Refresh(c.Request.Context())
	})
}

// Query godoc
// @Summary Replace search and filters
// @Tags List
// @Accept json
// @Produce json
// @Param payload body models.DealFilter true "Query"
// @Success 200 {object} response.Envelope
// @Router /session/deals/query [put]
func (h *ListHandler) Query(c *gin.Context) {
	var filter models.DealFilter
	if err := c.ShouldBindJSON(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid deal query"))
		return
	}
	h.view(c, func(s *service.Session) { s.Controller.SetQuery(filter) })
}

// ClearFilters godoc
// @Summary Restore the default query
// @Tags List
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/query [delete]
func (h *ListHandler) ClearFilters(c *gin.Context) {
	h.view(c, func(s *service.Session) { s.Controller.ClearFilters() })
}

// Sort godoc
// @Summary Sort by column, toggling direction on repeat
// @Tags List
// @Produce json
// @Param column path string true "Column"
// @Success 200 {object} response.Envelope
// @Router /session/deals/sort/{column} [post]
func (h *ListHandler) Sort(c *gin.Context) {
	column := c.Param("column")
	if !models.IsDealField(column) {
		response.Error(c, appErrors.Clone(appErrors.ErrUnknownField, "cannot sort by "+column))
		return
	}
	h.view(c, func(s *service.Session) { s.Controller.SortBy(column) })
}

// NextPage godoc
// @Summary Next page
// @Tags List
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/next [post]
func (h *ListHandler) NextPage(c *gin.Context) {
	h.view(c, func(s *service.Session) { s.Controller.NextPage() })
}

// PrevPage godoc
// @Summary Previous page
// @Tags List
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/prev [post]
func (h *ListHandler) PrevPage(c *gin.Context) {
	h.view(c, func(s *service.Session) { s.Controller.PrevPage() })
}

// ToggleSelect godoc
// @Summary Toggle selection of one deal
// @Tags List
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Envelope
// @Router /session/deals/select/{id} [post]
func (h *ListHandler) ToggleSelect(c *gin.Context) {
	h.view(c, func(s *service.Session) { s.Controller.ToggleSelect(c.Param("id")) })
}

// ToggleSelectAll godoc
// @Summary Toggle selection of the current page
// @Tags List
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/select-all [post]
func (h *ListHandler) ToggleSelectAll(c *gin.Context) {
	h.view(c, func(s *service.Session) { s.Controller.ToggleSelectAll() })
}

// RequestDelete godoc
// @Summary Ask to delete the selected deals
// @Tags List
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/delete/request [post]
func (h *ListHandler) RequestDelete(c *gin.Context) {
	h.outcome(c, func(s *service.Session) models.Outcome {
		return s.Controller.RequestDelete()
	})
}

// CancelDelete godoc
// @Summary Dismiss the delete confirmation
// @Tags List
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/delete/cancel [post]
func (h *ListHandler) CancelDelete(c *gin.Context) {
	h.view(c, func(s *service.Session) { s.Controller.CancelDelete() })
}

// ConfirmDelete godoc
// @Summary Delete the selected deals
// @Tags List
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/delete/confirm [post]
func (h *ListHandler) ConfirmDelete(c *gin.Context) {
	h.outcome(c, func(s *service.Session) models.Outcome {
		return s.Controller.ConfirmDelete(c.Request.Context())
	})
}

// Export godoc
// @Summary Export the selection, or the filtered list when nothing is selected
// @Tags List
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "csv or pdf"
// @Success 200 {file} file
// @Router /session/deals/export [get]
func (h *ListHandler) Export(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var deals []models.Deal
	sess.Do(func(s *service.Session) { deals = s.Controller.ExportSelection() })
	writeExport(c, h.exporter, strings.ToLower(c.DefaultQuery("format", service.ExportCSV)), deals)
}

// Pending godoc
// @Summary Deals awaiting review
// @Tags List
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/pending [get]
func (h *ListHandler) Pending(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var (
		pending []models.Deal
		active  int
	)
	sess.Do(func(s *service.Session) {
		pending = s.Controller.PendingDeals()
		active = s.Controller.ActiveCount()
	})
	response.JSON(c, http.StatusOK, pending, nil, map[string]interface{}{"active_count": active})
}

func (h *ListHandler) view(c *gin.Context, fn func(*service.Session)) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var page models.DealPage
	sess.Do(func(s *service.Session) {
		if fn != nil {
			fn(s)
		}
		page = s.Controller.Page()
	})
	response.JSON(c, http.StatusOK, page, &page.Pagination)
}

func (h *ListHandler) outcome(c *gin.Context, fn func(*service.Session) models.Outcome) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var (
		out  models.Outcome
		page models.DealPage
	)
	sess.Do(func(s *service.Session) {
		out = fn(s)
		page = s.Controller.Page()
	})
	response.Outcome(c, out, page)
}
