package server

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/MeKo-Tech/handwriter/internal/testutil"
	"github.com/stretchr/testify/require"
)

// mockWebSocketConn records the messages written to it.
type mockWebSocketConn struct {
	mu           sync.Mutex
	sentMessages []sentMessage
}

type sentMessage struct {
	messageType int
	data        []byte
}

func (m *mockWebSocketConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentMessages = append(m.sentMessages, sentMessage{messageType: messageType, data: data})
	return nil
}

// events decodes every sent message.
func (m *mockWebSocketConn) events(t *testing.T) []WebSocketEvent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WebSocketEvent, 0, len(m.sentMessages))
	for _, msg := range m.sentMessages {
		var e WebSocketEvent
		require.NoError(t, json.Unmarshal(msg.data, &e))
		out = append(out, e)
	}
	return out
}

// newTestServer returns a server rooted in a temp dir holding a small font.
func newTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	testutil.WriteSimpleFont(t, root)

	app := config.DefaultConfig()
	app.Paths.Root = root
	for _, m := range mutate {
		m(&app)
	}
	s, err := NewServer(ConfigFrom(&app))
	require.NoError(t, err)
	return s, root
}
