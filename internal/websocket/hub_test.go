package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voucherpro/internal/reqctx"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, tokens map[string]reqctx.Identity) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	authenticate := func(_ context.Context, token string) (reqctx.Identity, error) {
		id, ok := tokens[token]
		if !ok {
			return reqctx.Identity{}, errors.New("unknown token")
		}
		return id, nil
	}
	router := gin.New()
	router.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, authenticate) })

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func TestHub_DeliversEventsToOwnCompanyOnly(t *testing.T) {
	acme := reqctx.Identity{UserID: uuid.New(), CompanyID: uuid.New()}
	globex := reqctx.Identity{UserID: uuid.New(), CompanyID: uuid.New()}
	hub, srv := newTestServer(t, map[string]reqctx.Identity{"acme-token": acme, "globex-token": globex})

	conn, _, err := dial(t, srv, "acme-token")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount(acme.CompanyID) == 1 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, hub.ClientCount(globex.CompanyID))

	hub.Publish(globex.CompanyID, EventVoucherCreated, map[string]string{"voucher_number": "VCH-2026-0001"})
	hub.Publish(acme.CompanyID, EventVoucherStatusChanged, map[string]string{"status": "approved"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
		At   string            `json:"at"`
	}
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, EventVoucherStatusChanged, event.Type)
	assert.Equal(t, "approved", event.Data["status"])
	_, err = time.Parse(time.RFC3339, event.At)
	assert.NoError(t, err)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	acme := reqctx.Identity{UserID: uuid.New(), CompanyID: uuid.New()}
	hub, srv := newTestServer(t, map[string]reqctx.Identity{"acme-token": acme})

	conn, _, err := dial(t, srv, "acme-token")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount(acme.CompanyID) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount(acme.CompanyID) == 0 }, time.Second, 10*time.Millisecond)
}

func TestServeWs_RejectsMissingOrInvalidToken(t *testing.T) {
	_, srv := newTestServer(t, map[string]reqctx.Identity{})

	for _, token := range []string{"", "forged"} {
		_, res, err := dial(t, srv, token)
		require.Error(t, err)
		require.NotNil(t, res)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	}
}

func TestPublish_DropsWhenQueueIsFull(t *testing.T) {
	hub := NewHub(zap.NewNop())
	companyID := uuid.New()

	// no Run loop, so nothing drains the queue
	for i := 0; i < cap(hub.broadcast)+5; i++ {
		hub.Publish(companyID, EventVoucherUpdated, i)
	}
	assert.Len(t, hub.broadcast, cap(hub.broadcast))
}
