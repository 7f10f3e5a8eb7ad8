package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHubServer(t *testing.T, apartmentID uint) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Start(ctx)
	t.Cleanup(cancel)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, apartmentID)
	}))
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHubBroadcastsToApartment(t *testing.T) {
	hub, url := startHubServer(t, 7)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count(7) == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(8, "ticket.approved", map[string]uint{"ticket_id": 1})
	hub.Broadcast(7, "ticket.approved", map[string]uint{"ticket_id": 2})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt struct {
		Type        string          `json:"type"`
		ApartmentID uint            `json:"apartment_id"`
		Data        map[string]uint `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &evt))
	assert.Equal(t, "ticket.approved", evt.Type)
	assert.Equal(t, uint(7), evt.ApartmentID)
	assert.Equal(t, uint(2), evt.Data["ticket_id"])
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub, url := startHubServer(t, 3)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Count(3) == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Count(3) == 0 }, 2*time.Second, 10*time.Millisecond)
}
