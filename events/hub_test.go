package events

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewHub(logger)
}

func dial(t *testing.T, hub *Hub, userID string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, userID)
	}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, id := range hub.ConnectedUsers() {
			if id == userID {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestConcurrentWritersOnOneConnection(t *testing.T) {
	hub := newTestHub()
	conn, done := dial(t, hub, "u1")
	defer done()

	const writers = 64
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.NotifyUser("u1", "info", "ping")
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast("sweep", map[string]string{"k": "v"})
		}()
	}

	received := 0
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for received < 2*writers {
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		received++
	}
	wg.Wait()

	assert.Equal(t, 2*writers, received, "every write arrives intact")
}

func TestNotifyUserTargetsOnlyThatUser(t *testing.T) {
	hub := newTestHub()
	target, doneTarget := dial(t, hub, "target")
	defer doneTarget()
	other, doneOther := dial(t, hub, "other")
	defer doneOther()

	hub.NotifyUser("target", "info", "for you")

	target.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	require.NoError(t, target.ReadJSON(&msg))
	assert.Equal(t, "for you", msg["message"])

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	assert.Error(t, other.ReadJSON(&msg), "the other user hears nothing")
}

func TestDisconnectUnregisters(t *testing.T) {
	hub := newTestHub()
	_, done := dial(t, hub, "u1")

	done()
	require.Eventually(t, func() bool {
		return len(hub.ConnectedUsers()) == 0
	}, time.Second, 10*time.Millisecond)

	// Writes to a gone user are a silent no-op.
	hub.NotifyUser("u1", "info", "nobody home")
}
