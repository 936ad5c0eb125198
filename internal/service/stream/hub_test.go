package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenScope/internal/domain/models"
)

func dial(t *testing.T, h *Hub, token string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.ServeWS(w, r, token)
	}))
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	h := NewHub(4, time.Second, time.Second, []string{"*"}, nil)
	all := dial(t, h, "")
	only := dial(t, h, "tok-b")
	require.Eventually(t, func() bool { return h.Len() == 2 }, time.Second, 5*time.Millisecond)

	h.Broadcast(&models.AnalysisResult{ID: "1", TokenID: "tok-a"})
	h.Broadcast(&models.AnalysisResult{ID: "2", TokenID: "tok-b"})

	var got models.AnalysisResult
	require.NoError(t, all.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, "1", got.ID)
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, "2", got.ID)

	require.NoError(t, only.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, only.ReadJSON(&got))
	assert.Equal(t, "2", got.ID, "filtered subscriber skips other tokens")
}

func TestSubscriberRemovedOnDisconnect(t *testing.T) {
	h := NewHub(4, time.Second, time.Second, []string{"*"}, nil)
	conn := dial(t, h, "")
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	h := NewHub(1, time.Second, time.Second, []string{"*"}, nil)
	c := &client{token: "", send: make(chan []byte, 1)}
	h.clients[c] = struct{}{}

	h.Broadcast(&models.AnalysisResult{ID: "1"})
	h.Broadcast(&models.AnalysisResult{ID: "2"})
	assert.Equal(t, uint64(1), h.Dropped())
	assert.Len(t, c.send, 1)

	h.Close()
	assert.Zero(t, h.Len())
}

func TestUpgradeChecksOrigin(t *testing.T) {
	h := NewHub(4, time.Second, time.Second, []string{"https://app.tokenscope.io"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.ServeWS(w, r, "")
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, h.Len())

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.tokenscope.io"}})
	require.NoError(t, err)
	defer conn.Close()

	cli, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "clients without an Origin header are accepted")
	defer cli.Close()
	assert.Eventually(t, func() bool { return h.Len() == 2 }, time.Second, 5*time.Millisecond)
}
