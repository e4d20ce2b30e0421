package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/deal-desk-api/internal/dto"
	"github.com/noah-isme/deal-desk-api/internal/form"
	"github.com/noah-isme/deal-desk-api/internal/models"
	"github.com/noah-isme/deal-desk-api/internal/service"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
	"github.com/noah-isme/deal-desk-api/pkg/response"
)

// SessionHandler drives the per-session form buffer and deal lifecycle.
type SessionHandler struct {
	validate *validator.Validate
}

// NewSessionHandler builds a session handler.
func NewSessionHandler(validate *validator.Validate) *SessionHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SessionHandler{validate: validate}
}

// Form godoc
// @Summary Current form buffer
// @Tags Session
// @Produce json
// @Param X-Session-ID header string false "Session id"
// @Success 200 {object} response.Envelope
// @Router /session/form [get]
func (h *SessionHandler) Form(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var view dto.SessionView
	sess.Do(func(s *service.Session) { view = sessionView(s) })
	response.JSON(c, http.StatusOK, view, nil)
}

// SetField godoc
// @Summary Set one form field
// @Tags Session
// @Accept json
// @Produce json
// @Param field path string true "Field name"
// @Param payload body dto.FieldValueRequest true "Value"
// @Success 200 {object} response.Envelope
// @Router /session/form/fields/{field} [put]
func (h *SessionHandler) SetField(c *gin.Context) {
	var req dto.FieldValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid field payload"))
		return
	}
	h.mutateForm(c, func(b *form.Buffer) error {
		return b.SetFieldValue(c.Param("field"), req.Value)
	})
}

// TouchField godoc
// @Summary Mark a form field as touched
// @Tags Session
// @Produce json
// @Param field path string true "Field name"
// @Success 200 {object} response.Envelope
// @Router /session/form/fields/{field}/touch [post]
func (h *SessionHandler) TouchField(c *gin.Context) {
	h.mutateForm(c, func(b *form.Buffer) error {
		return b.TouchField(c.Param("field"))
	})
}

// ResetForm godoc
// @Summary Reset the form buffer
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/form/reset [post]
func (h *SessionHandler) ResetForm(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var view dto.SessionView
	sess.Do(func(s *service.Session) {
		s.Controller.ResetForm()
		view = sessionView(s)
	})
	response.JSON(c, http.StatusOK, view, nil)
}

// LoadForm godoc
// @Summary Open a stored deal in the form buffer
// @Tags Session
// @Produce json
// @Param id path string true "Deal ID"
// @Param mode query string false "add, edit or review"
// @Success 200 {object} response.Envelope
// @Router /session/form/load/{id} [post]
func (h *SessionHandler) LoadForm(c *gin.Context) {
	var req dto.LoadFormRequest
	_ = c.ShouldBindQuery(&req)
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form mode"))
		return
	}
	mode, _ := models.ParseFormMode(req.Mode)
	if req.Mode == "" {
		mode = models.FormModeEdit
	}
	h.outcome(c, func(s *service.Session) models.Outcome {
		return s.Controller.LoadForEdit(c.Request.Context(), c.Param("id"), mode)
	})
}

// SaveDraft godoc
// @Summary Save the form as a draft deal
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Param payload body dto.FormValuesRequest false "Values merged into the form first"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /session/deals/draft [post]
func (h *SessionHandler) SaveDraft(c *gin.Context) {
	values, ok := bindValues(c)
	if !ok {
		return
	}
	h.outcome(c, func(s *service.Session) models.Outcome {
		return s.Controller.SaveDraft(c.Request.Context(), values)
	})
}

// Submit godoc
// @Summary Submit the form for review
// @Tags Lifecycle
// @Accept json
// @Produce json
// @Param payload body dto.FormValuesRequest false "Values merged into the form first"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /session/deals/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	values, ok := bindValues(c)
	if !ok {
		return
	}
	h.outcome(c, func(s *service.Session) models.Outcome {
		return s.Controller.Submit(c.Request.Context(), values)
	})
}

// SelectForReview godoc
// @Summary Open a deal for review
// @Tags Lifecycle
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} response.Envelope
// @Router /session/deals/review/{id} [post]
func (h *SessionHandler) SelectForReview(c *gin.Context) {
	h.outcome(c, func(s *service.Session) models.Outcome {
		return s.Controller.SelectForReview(c.Request.Context(), c.Param("id"))
	})
}

// LoadReview godoc
// @Summary Restore the review target from a page parameter
// @Tags Lifecycle
// @Produce json
// @Param id query string false "Deal ID"
// @Success 200 {object} response.Envelope
// @Router /session/deals/review [get]
func (h *SessionHandler) LoadReview(c *gin.Context) {
	h.outcome(c, func(s *service.Session) models.Outcome {
		return s.Controller.LoadFromURLParam(c.Request.Context(), c.Query("id"))
	})
}

// Approve godoc
// @Summary Approve the deal under review
// @Tags Lifecycle
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/review/approve [post]
func (h *SessionHandler) Approve(c *gin.Context) {
	h.outcome(c, func(s *service.Session) models.Outcome {
		return s.Controller.Approve(c.Request.Context())
	})
}

// Reject godoc
// @Summary Reject and delete the deal under review
// @Tags Lifecycle
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/review/reject [post]
func (h *SessionHandler) Reject(c *gin.Context) {
	h.outcome(c, func(s *service.Session) models.Outcome {
		return s.Controller.Reject(c.Request.Context())
	})
}

// EditSelected godoc
// @Summary Open the single selected deal for editing
// @Tags Lifecycle
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session/deals/edit-selected [post]
func (h *SessionHandler) EditSelected(c *gin.Context) {
	h.outcome(c, func(s *service.Session) models.Outcome {
		return s.Controller.EditSelected(c.Request.Context())
	})
}

// SetUploadTab godoc
// @Summary Switch the add flow between upload and manual entry
// @Tags Session
// @Accept json
// @Produce json
// @Param payload body dto.UploadTabRequest true "Tab"
// @Success 200 {object} response.Envelope
// @Router /session/add/tab [put]
func (h *SessionHandler) SetUploadTab(c *gin.Context) {
	var req dto.UploadTabRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid tab payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "tab must be upload or manual"))
		return
	}
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var view dto.SessionView
	sess.Do(func(s *service.Session) {
		s.Controller.SetUploadTab(req.Tab)
		view = sessionView(s)
	})
	response.JSON(c, http.StatusOK, view, nil)
}

func (h *SessionHandler) mutateForm(c *gin.Context, fn func(*form.Buffer) error) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var (
		view dto.SessionView
		err  error
	)
	sess.Do(func(s *service.Session) {
		err = fn(s.Controller.Buffer())
		view = sessionView(s)
	})
	if err != nil {
		response.Error(c, formError(err))
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

func (h *SessionHandler) outcome(c *gin.Context, fn func(*service.Session) models.Outcome) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var (
		out  models.Outcome
		view dto.SessionView
	)
	sess.Do(func(s *service.Session) {
		out = fn(s)
		view = sessionView(s)
	})
	response.Outcome(c, out, view)
}

func bindValues(c *gin.Context) (models.FormValues, bool) {
	var req dto.FormValuesRequest
	if c.Request.ContentLength == 0 {
		return models.FormValues{}, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid form payload"))
		return nil, false
	}
	if req.Values == nil {
		req.Values = models.FormValues{}
	}
	return req.Values, true
}

func formError(err error) error {
	switch {
	case errors.Is(err, form.ErrUnknownField):
		return appErrors.Clone(appErrors.ErrUnknownField, err.Error())
	case errors.Is(err, form.ErrReadOnlyField):
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return err
}
