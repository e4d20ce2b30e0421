package main

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/deal-desk-api/internal/handler"
	"github.com/noah-isme/deal-desk-api/internal/middleware"
	"github.com/noah-isme/deal-desk-api/internal/service"
)

type routeDeps struct {
	deals     *service.DealService
	sessions  *service.SessionService
	alerts    *service.AlertService
	uploads   *service.UploadService
	ingestion *service.IngestionService
	validate  *validator.Validate
	origins   []string
	logger    *zap.Logger
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	dealHandler := handler.NewDealHandler(deps.deals)
	deals := api.Group("/deals")
	deals.GET("", dealHandler.List)
	deals.GET("/summary", dealHandler.Summary)
	deals.GET("/export", dealHandler.Export)
	deals.GET("/:id", dealHandler.Get)
	deals.DELETE("/:id", dealHandler.Delete)

	// A nil *IngestionService must not reach the interface as a typed nil.
	var uploadHandler *handler.UploadHandler
	if deps.ingestion != nil {
		uploadHandler = handler.NewUploadHandler(deps.uploads, deps.ingestion)
	} else {
		uploadHandler = handler.NewUploadHandler(deps.uploads, nil)
	}
	uploads := api.Group("/uploads")
	uploads.POST("", uploadHandler.Upload)
	uploads.GET("/download", uploadHandler.Download)
	uploads.GET("/jobs", uploadHandler.Jobs)
	uploads.GET("/jobs/:id", uploadHandler.Job)

	sessionMW := middleware.Session(deps.sessions)
	sessionHandler := handler.NewSessionHandler(deps.validate)
	listHandler := handler.NewListHandler(deps.deals)
	alertHandler := handler.NewAlertHandler(deps.alerts)
	liveForm := handler.NewLiveFormHandler(deps.sessions, deps.validate, deps.origins, deps.logger)

	session := api.Group("/session", sessionMW)
	session.GET("/form", sessionHandler.Form)
	session.PUT("/form/fields/:field", sessionHandler.SetField)
	session.POST("/form/fields/:field/touch", sessionHandler.TouchField)
	session.POST("/form/reset", sessionHandler.ResetForm)
	session.POST("/form/load/:id", sessionHandler.LoadForm)

	session.PUT("/add/tab", sessionHandler.SetUploadTab)
	session.POST("/add/upload", uploadHandler.Stage)

	session.POST("/deals/draft", sessionHandler.SaveDraft)
	session.POST("/deals/submit", sessionHandler.Submit)
	session.GET("/deals/review", sessionHandler.LoadReview)
	session.POST("/deals/review/approve", sessionHandler.Approve)
	session.POST("/deals/review/reject", sessionHandler.Reject)
	session.POST("/deals/review/:id", sessionHandler.SelectForReview)
	session.POST("/deals/edit-selected", sessionHandler.EditSelected)

	session.GET("/deals", listHandler.Page)
	session.GET("/deals/pending", listHandler.Pending)
	session.POST("/deals/refresh", listHandler.Refresh)
	session.PUT("/deals/query", listHandler.Query)
	session.DELETE("/deals/query", listHandler.ClearFilters)
	session.POST("/deals/sort/:column", listHandler.Sort)
	session.POST("/deals/next", listHandler.NextPage)
	session.POST("/deals/prev", listHandler.PrevPage)
	session.POST("/deals/select-all", listHandler.ToggleSelectAll)
	session.POST("/deals/select/:id", listHandler.ToggleSelect)
	session.POST("/deals/delete/request", listHandler.RequestDelete)
	session.POST("/deals/delete/cancel", listHandler.CancelDelete)
	session.POST("/deals/delete/confirm", listHandler.ConfirmDelete)
	session.GET("/deals/export", listHandler.Export)

	session.GET("/alerts", alertHandler.List)
	session.POST("/alerts/:id/dismiss", alertHandler.Dismiss)
	session.POST("/alerts/toggle", alertHandler.ToggleSidebar)

	api.GET("/ws/session", sessionMW, liveForm.Serve)
}
