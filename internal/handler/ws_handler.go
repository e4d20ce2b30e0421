package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/noah-isme/deal-desk-api/internal/dto"
	"github.com/noah-isme/deal-desk-api/internal/models"
	"github.com/noah-isme/deal-desk-api/internal/service"
)

const wsWriteWait = 10 * time.Second

// LiveFormHandler syncs the session form buffer over a WebSocket so every
// keystroke gets its verdict without a request round trip.
type LiveFormHandler struct {
	sessions       *service.SessionService
	validate       *validator.Validate
	originPatterns []string
	logger         *zap.Logger
}

// NewLiveFormHandler builds the socket handler. originPatterns follow
// websocket.AcceptOptions; empty allows same-origin only.
func NewLiveFormHandler(sessions *service.SessionService, validate *validator.Validate, originPatterns []string, logger *zap.Logger) *LiveFormHandler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveFormHandler{sessions: sessions, validate: validate, originPatterns: originPatterns, logger: logger}
}

// Serve godoc
// @Summary Live form sync
// @Description Upgrade to a WebSocket. Send {"type":"set_field","field":"ticker","value":"AAPL"}; every message is answered with the form snapshot.
// @Tags Session
// @Param session query string false "Session id"
// @Router /ws/session [get]
func (h *LiveFormHandler) Serve(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ctx := c.Request.Context()
	h.logger.Debug("live form connected", zap.String("session_id", sess.ID))

	if err := h.write(ctx, conn, h.apply(sess, dto.WSMessage{Type: "snapshot"})); err != nil {
		return
	}
	for {
		var msg dto.WSMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if ctx.Err() == nil {
				h.logger.Debug("live form read failed", zap.String("session_id", sess.ID), zap.Error(err))
			}
			return
		}
		if h.sessions != nil {
			sess = h.sessions.Acquire(ctx, sess.ID)
		}
		if err := h.write(ctx, conn, h.apply(sess, msg)); err != nil {
			return
		}
	}
}

func (h *LiveFormHandler) apply(sess *service.Session, msg dto.WSMessage) dto.WSReply {
	reply := dto.WSReply{Type: msg.Type}
	if err := h.validate.Struct(msg); err != nil {
		reply.Type = "error"
		reply.Error = "unsupported message"
		return reply
	}

	var snap models.FormSnapshot
	var err error
	sess.Do(func(s *service.Session) {
		buf := s.Controller.Buffer()
		switch msg.Type {
		case "set_field":
			err = buf.SetFieldValue(msg.Field, msg.Value)
		case "touch":
			err = buf.TouchField(msg.Field)
		case "reset":
			s.Controller.ResetForm()
		}
		snap = buf.Snapshot()
	})
	reply.Form = &snap
	if err != nil {
		reply.Error = formError(err).Error()
	}
	return reply
}

func (h *LiveFormHandler) write(ctx context.Context, conn *websocket.Conn, reply dto.WSReply) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteWait)
	defer cancel()
	err := wsjson.Write(writeCtx, conn, reply)
	if err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Debug("live form write failed", zap.Error(err))
	}
	return err
}
