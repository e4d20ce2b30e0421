package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/deal-desk-api/internal/dto"
	"github.com/noah-isme/deal-desk-api/internal/middleware"
	"github.com/noah-isme/deal-desk-api/internal/service"
	appErrors "github.com/noah-isme/deal-desk-api/pkg/errors"
	"github.com/noah-isme/deal-desk-api/pkg/response"
)

// sessionFromContext returns the editing session resolved by the session
// middleware, answering 500 when the route was wired without it.
func sessionFromContext(c *gin.Context) (*service.Session, bool) {
	sess, ok := middleware.SessionFrom(c)
	if !ok || sess == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "session middleware not configured"))
		return nil, false
	}
	return sess, true
}

// sessionView renders the form side of a session. Callers hold the session
// lock.
func sessionView(sess *service.Session) dto.SessionView {
	add := sess.Controller.AddState()
	return dto.SessionView{
		SessionID: sess.ID,
		Form:      sess.Controller.Buffer().Snapshot(),
		Review:    sess.Controller.ReviewTarget(),
		Upload:    dto.AddView{UploadTab: add.UploadTab, StagedSource: add.StagedSource},
	}
}
