package handler

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/noah-isme/deal-desk-api/internal/dto"
	"github.com/noah-isme/deal-desk-api/internal/service"
)

func TestLiveFormSyncsFieldEdits(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/session?session=live-1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	var reply dto.WSReply
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, "snapshot", reply.Type)
	require.NotNil(t, reply.Form)
	assert.False(t, reply.Form.IsDirty)

	require.NoError(t, wsjson.Write(ctx, conn, dto.WSMessage{Type: "set_field", Field: "ticker", Value: "aapl"}))
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, "set_field", reply.Type)
	assert.Empty(t, reply.Error)
	require.NotNil(t, reply.Form)
	assert.True(t, reply.Form.IsDirty)

	require.NoError(t, wsjson.Write(ctx, conn, dto.WSMessage{Type: "set_field", Field: "bogus", Value: 1}))
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.NotEmpty(t, reply.Error)

	require.NoError(t, wsjson.Write(ctx, conn, dto.WSMessage{Type: "explode"}))
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, "error", reply.Type)

	sess := app.sessions.Acquire(ctx, "live-1")
	var dirty bool
	sess.Do(func(s *service.Session) { dirty = s.Controller.Buffer().Snapshot().IsDirty })
	assert.True(t, dirty)
}
