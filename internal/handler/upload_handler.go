package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/deal-desk-api/internal/dto"
	"github.com/noah-isme/deal-desk-api/internal/models"
	"github.com/noah-isme/deal-desk-api/internal/service"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
	"github.com/noah-isme/deal-desk-api/pkg/jobs"
	"github.com/noah-isme/deal-desk-api/pkg/response"
)

type uploadService interface {
	Save(ctx context.Context, filename string, content io.Reader, size int64) (*models.StoredFile, error)
	Open(token string) (*service.UploadDownload, error)
}

type ingestionService interface {
	Submit(ctx context.Context, file models.StoredFile) (*models.IngestionJob, error)
	Job(id string) (*models.IngestionJob, error)
	Jobs() []models.IngestionJob
	QueueStats() jobs.Stats
}

// UploadHandler accepts deal documents and serves them back through signed
// links.
type UploadHandler struct {
	uploads   uploadService
	ingestion ingestionService
}

// NewUploadHandler builds an upload handler. ingestion may be nil.
func NewUploadHandler(uploads uploadService, ingestion ingestionService) *UploadHandler {
	return &UploadHandler{uploads: uploads, ingestion: ingestion}
}

// Upload godoc
// @Summary Upload a deal document
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF or Word document"
// @Param ingest formData bool false "Queue the document for extraction"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	file, ok := h.store(c)
	if !ok {
		return
	}
	resp := dto.UploadResponse{File: *file}
	if ingest, _ := strconv.ParseBool(c.PostForm("ingest")); ingest {
		if h.ingestion == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "document ingestion is disabled"))
			return
		}
		job, err := h.ingestion.Submit(c.Request.Context(), *file)
		if err != nil {
			response.Error(c, err)
			return
		}
		resp.Job = job
	}
	response.Created(c, resp)
}

// Stage godoc
// @Summary Upload a document and stage it as the source of the next save
// @Tags Session
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF or Word document"
// @Success 201 {object} response.Envelope
// @Router /session/add/upload [post]
func (h *UploadHandler) Stage(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	file, ok := h.store(c)
	if !ok {
		return
	}
	var view dto.SessionView
	sess.Do(func(s *service.Session) {
		s.Controller.StageSource(*file)
		view = sessionView(s)
	})
	response.Created(c, view)
}

// Download godoc
// @Summary Stream a stored document
// @Tags Uploads
// @Produce application/octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /uploads/download [get]
func (h *UploadHandler) Download(c *gin.Context) {
	download, err := h.uploads.Open(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	info, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat document"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", download.Filename))
	http.ServeContent(c.Writer, c.Request, download.Filename, info.ModTime(), download.File)
}

// Jobs godoc
// @Summary List ingestion jobs
// @Tags Uploads
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /uploads/jobs [get]
func (h *UploadHandler) Jobs(c *gin.Context) {
	if h.ingestion == nil {
		response.JSON(c, http.StatusOK, []models.IngestionJob{}, nil)
		return
	}
	stats := h.ingestion.QueueStats()
	response.JSON(c, http.StatusOK, h.ingestion.Jobs(), nil, map[string]interface{}{"queue": stats})
}

// Job godoc
// @Summary Get an ingestion job
// @Tags Uploads
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /uploads/jobs/{id} [get]
func (h *UploadHandler) Job(c *gin.Context) {
	if h.ingestion == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "ingestion job not found"))
		return
	}
	job, err := h.ingestion.Job(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

func (h *UploadHandler) store(c *gin.Context) (*models.StoredFile, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return nil, false
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return nil, false
	}
	defer src.Close()

	file, err := h.uploads.Save(c.Request.Context(), fileHeader.Filename, src, fileHeader.Size)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return file, true
}
