package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/deal-desk-api/internal/models"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}            `json:"data,omitempty"`
	Error      *appErrors.Error       `json:"error,omitempty"`
	Outcome    *models.Outcome        `json:"outcome,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data, Pagination: pagination}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Outcome reports the result of a lifecycle action alongside the data the
// client should re-render. Blocked actions carrying field errors answer 422,
// everything else answers 200 because a no-op or notice is not a failure.
func Outcome(c *gin.Context, outcome models.Outcome, data interface{}) {
	noStore(c)
	status := http.StatusOK
	if !outcome.Success && outcome.Level == models.OutcomeError {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, Envelope{Data: data, Outcome: &outcome})
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
