package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/moodchat/internal/model/chat"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubSendsCurrentStateThenBroadcasts(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	hub := NewHub(func(context.Context) chat.EmotionRecord {
		return chat.EmotionRecord{Emotion: "happy", Intensity: 0.7, CreatedAt: at}
	}, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a := dial(t, srv)
	defer a.Close()
	b := dial(t, srv)
	defer b.Close()

	assert.Equal(t, Message{Emotion: "happy", Intensity: 0.7, Timestamp: "2024-01-02T03:04:05Z"}, readMessage(t, a))
	assert.Equal(t, "happy", readMessage(t, b).Emotion)
	require.Equal(t, 2, hub.Len())

	hub.Broadcast(chat.EmotionRecord{Emotion: "curious", Intensity: 0.4})

	assert.Equal(t, Message{Emotion: "curious", Intensity: 0.4}, readMessage(t, a))
	assert.Equal(t, Message{Emotion: "curious", Intensity: 0.4}, readMessage(t, b))
}

func TestHubForgetsDisconnectedListeners(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 5*time.Second, 10*time.Millisecond)

	// broadcasting with nobody listening is a no-op
	hub.Broadcast(chat.EmotionRecord{Emotion: "calm"})
}

func TestHubCloseDisconnectsListeners(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}
