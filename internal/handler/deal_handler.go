package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/deal-desk-api/internal/middleware"
	"github.com/noah-isme/deal-desk-api/internal/models"
	"github.com/noah-isme/deal-desk-api/internal/service"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
	"github.com/noah-isme/deal-desk-api/pkg/response"
)

type dealService interface {
	List(ctx context.Context, filter models.DealFilter) ([]models.Deal, *models.Pagination, bool, error)
	All(ctx context.Context) ([]models.Deal, error)
	Get(ctx context.Context, id string) (*models.Deal, error)
	Delete(ctx context.Context, id string) error
	Summary(ctx context.Context) (models.DealSummary, error)
	Export(w io.Writer, format string, deals []models.Deal) (*service.ExportResult, error)
}

// DealHandler exposes stateless deal queries.
type DealHandler struct {
	service dealService
}

// NewDealHandler builds a deal handler.
func NewDealHandler(service dealService) *DealHandler {
	return &DealHandler{service: service}
}

// List godoc
// @Summary List deals
// @Tags Deals
// @Produce json
// @Param search query string false "Ticker, company, sector or country"
// @Param status query string false "draft, pending_review, active or all"
// @Param start_date query string false "Pricing date lower bound (YYYY-MM-DD)"
// @Param end_date query string false "Pricing date upper bound (YYYY-MM-DD)"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /deals [get]
func (h *DealHandler) List(c *gin.Context) {
	var filter models.DealFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid deal query"))
		return
	}
	deals, pagination, hit, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, deals, pagination, middleware.ExtractMeta(c))
}

// Summary godoc
// @Summary Count deals per status
// @Tags Deals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /deals/summary [get]
func (h *DealHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Get godoc
// @Summary Get deal by id
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /deals/{id} [get]
func (h *DealHandler) Get(c *gin.Context) {
	deal, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, deal, nil)
}

// Delete godoc
// @Summary Delete deal
// @Tags Deals
// @Param id path string true "Deal ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /deals/{id} [delete]
func (h *DealHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export deals
// @Tags Deals
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "csv or pdf"
// @Param ids query string false "Comma separated deal ids; defaults to the filtered list"
// @Success 200 {file} file
// @Router /deals/export [get]
func (h *DealHandler) Export(c *gin.Context) {
	var filter models.DealFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid deal query"))
		return
	}
	all, err := h.service.All(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	deals := service.SelectForExport(all, splitIDs(c.Query("ids")), filter)
	writeExport(c, h.service, strings.ToLower(c.DefaultQuery("format", service.ExportCSV)), deals)
}

type exporter interface {
	Export(w io.Writer, format string, deals []models.Deal) (*service.ExportResult, error)
}

// writeExport renders into memory first so a failed render still answers
// with a JSON error.
func writeExport(c *gin.Context, svc exporter, format string, deals []models.Deal) {
	var buf bytes.Buffer
	result, err := svc.Export(&buf, format, deals)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, buf.Bytes())
}

func splitIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
