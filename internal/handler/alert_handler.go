package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/deal-desk-api/internal/service"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
	"github.com/noah-isme/deal-desk-api/pkg/response"
)

// AlertHandler serves the session's notification sidebar.
type AlertHandler struct {
	generator *service.AlertService
}

// NewAlertHandler builds an alert handler.
func NewAlertHandler(generator *service.AlertService) *AlertHandler {
	return &AlertHandler{generator: generator}
}

// List godoc
// @Summary Session alerts
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/alerts [get]
func (h *AlertHandler) List(c *gin.Context) {
	h.respond(c, func(s *service.Session) bool {
		s.Alerts.Ensure(h.generator)
		return true
	})
}

// Dismiss godoc
// @Summary Dismiss an alert
// @Tags Alerts
// @Produce json
// @Param id path int true "Alert ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /session/alerts/{id}/dismiss [post]
func (h *AlertHandler) Dismiss(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "alert id must be a number"))
		return
	}
	h.respond(c, func(s *service.Session) bool {
		return s.Alerts.Dismiss(id)
	})
}

// ToggleSidebar godoc
// @Summary Show or hide the alert sidebar
// @Tags Alerts
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/alerts/toggle [post]
func (h *AlertHandler) ToggleSidebar(c *gin.Context) {
	h.respond(c, func(s *service.Session) bool {
		s.Alerts.ToggleSidebar()
		return true
	})
}

func (h *AlertHandler) respond(c *gin.Context, fn func(*service.Session) bool) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var (
		found bool
		feed  service.AlertFeed
	)
	sess.Do(func(s *service.Session) {
		found = fn(s)
		feed = s.Alerts.Feed()
	})
	if !found {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "alert not found"))
		return
	}
	response.JSON(c, http.StatusOK, feed, nil)
}
