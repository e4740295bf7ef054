package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func queryUser(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("no user")
	}
	return id, nil
}

func newServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	srv := httptest.NewServer(&Handler{Hub: hub, Authenticate: queryUser})
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func waitConnected(t *testing.T, hub *Hub, userID int64, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Connected(userID) == n },
		2*time.Second, 10*time.Millisecond)
}

func TestNotifyReachesEveryConnectionOfUser(t *testing.T) {
	hub, url := newServer(t)

	a := dial(t, url+"?user=7")
	b := dial(t, url+"?user=7")
	other := dial(t, url+"?user=8")
	waitConnected(t, hub, 7, 2)
	waitConnected(t, hub, 8, 1)

	hub.Notify([]int64{7}, "message.new", map[string]any{"content": "oi"})

	for _, conn := range []*websocket.Conn{a, b} {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		var ev struct {
			Type string         `json:"type"`
			Data map[string]any `json:"data"`
		}
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		cancel()
		assert.Equal(t, "message.new", ev.Type)
		assert.Equal(t, "oi", ev.Data["content"])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var ev Event
	assert.Error(t, wsjson.Read(ctx, other, &ev), "user 8 must not receive user 7's event")
}

func TestUnauthenticatedUpgradeRejected(t *testing.T) {
	_, url := newServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, url := newServer(t)

	conn := dial(t, url+"?user=3")
	waitConnected(t, hub, 3, 1)

	conn.Close(websocket.StatusNormalClosure, "done")
	waitConnected(t, hub, 3, 0)
}

func TestNotifyWithoutClientsIsNoop(t *testing.T) {
	hub := NewHub()
	hub.Notify([]int64{1, 2}, "item.status", nil)
	assert.Zero(t, hub.Connected(1))
}
