package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/deal-desk-api/internal/service"
	"github.com/noah-isme/deal-desk-api/pkg/logger"
)

// ContextSessionKey stores the resolved *service.Session on the gin context.
const ContextSessionKey = "deal_session"

// Session resolves the caller's editing session from the X-Session-ID header,
// or the session query parameter for clients that cannot set headers, and
// echoes the id back so new clients can adopt it.
func Session(sessions *service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(logger.SessionHeader)
		if id == "" {
			id = c.Query("session")
		}
		sess := sessions.Acquire(c.Request.Context(), id)
		c.Set(ContextSessionKey, sess)
		c.Header(logger.SessionHeader, sess.ID)
		c.Next()
	}
}

// SessionFrom returns the session stored by Session.
func SessionFrom(c *gin.Context) (*service.Session, bool) {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil, false
	}
	sess, ok := value.(*service.Session)
	return sess, ok
}
