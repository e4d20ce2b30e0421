package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/deal-desk-api/internal/middleware"
	"github.com/noah-isme/deal-desk-api/internal/models"
	"github.com/noah-isme/deal-desk-api/internal/repository"
	"github.com/noah-isme/deal-desk-api/internal/service"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
	"github.com/noah-isme/deal-desk-api/pkg/logger"
	"github.com/noah-isme/deal-desk-api/pkg/storage"
)

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Outcome    *models.Outcome        `json:"outcome"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type testApp struct {
	router    *gin.Engine
	store     *repository.MemoryDealRepository
	sessions  *service.SessionService
	ingestion *service.IngestionService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryDealRepository(0, 1)
	deals := service.NewDealService(store, nil, nil)
	alerts := service.NewAlertService(3, gofakeit.New(1))
	sessions := service.NewSessionService(service.LifecycleDeps{Store: store, Cache: deals}, alerts, nil, time.Hour, nil)

	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	uploads := service.NewUploadService(files, storage.NewSignedURLSigner("test", time.Minute), nil, nil, service.UploadServiceConfig{MaxFileSize: 1024, APIPrefix: "/api/v1"})
	ingestion := service.NewIngestionService(store, deals, nil, nil)

	router := gin.New()
	router.Use(middleware.WithResponseMeta())
	api := router.Group("/api/v1")

	dealHandler := NewDealHandler(deals)
	api.GET("/deals", dealHandler.List)
	api.GET("/deals/export", dealHandler.Export)
	api.GET("/deals/:id", dealHandler.Get)

	uploadHandler := NewUploadHandler(uploads, ingestion)
	api.POST("/uploads", uploadHandler.Upload)
	api.GET("/uploads/download", uploadHandler.Download)

	sessionHandler := NewSessionHandler(nil)
	listHandler := NewListHandler(deals)
	alertHandler := NewAlertHandler(alerts)
	liveForm := NewLiveFormHandler(sessions, nil, []string{"*"}, nil)

	sess := api.Group("/session", middleware.Session(sessions))
	sess.GET("/form", sessionHandler.Form)
	sess.PUT("/form/fields/:field", sessionHandler.SetField)
	sess.POST("/form/fields/:field/touch", sessionHandler.TouchField)
	sess.POST("/deals/submit", sessionHandler.Submit)
	sess.POST("/deals/draft", sessionHandler.SaveDraft)
	sess.POST("/deals/review/approve", sessionHandler.Approve)
	sess.POST("/deals/review/:id", sessionHandler.SelectForReview)
	sess.PUT("/add/tab", sessionHandler.SetUploadTab)
	sess.POST("/add/upload", uploadHandler.Stage)
	sess.GET("/deals", listHandler.Page)
	sess.POST("/deals/select/:id", listHandler.ToggleSelect)
	sess.POST("/deals/delete/request", listHandler.RequestDelete)
	sess.POST("/deals/delete/confirm", listHandler.ConfirmDelete)
	sess.GET("/alerts", alertHandler.List)
	sess.POST("/alerts/:id/dismiss", alertHandler.Dismiss)
	router.GET("/ws/session", middleware.Session(sessions), liveForm.Serve)

	return &testApp{router: router, store: store, sessions: sessions, ingestion: ingestion}
}

func (a *testApp) do(t *testing.T, method, path, session string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(logger.SessionHeader, session)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (a *testApp) seed(t *testing.T, deal models.Deal) models.Deal {
	t.Helper()
	require.NoError(t, a.store.Save(context.Background(), &deal))
	return deal
}
