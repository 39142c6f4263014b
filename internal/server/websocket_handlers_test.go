package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/MeKo-Tech/handwriter/internal/pipeline"
	"github.com/MeKo-Tech/handwriter/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_HandleWebSocketMessage_InvalidRequests(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name string
		data string
		want string
	}{
		{"invalid json", `{`, "Failed to parse request"},
		{"unknown type", `{"type": "write"}`, "Unsupported request type: write"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &mockWebSocketConn{}
			server.handleWebSocketMessage(context.Background(), conn, []byte(tt.data))

			events := conn.events(t)
			require.Len(t, events, 1)
			assert.Equal(t, EventError, events[0].Type)
			assert.Equal(t, "invalid_request", events[0].ErrorType)
			assert.Contains(t, events[0].Error, tt.want)
			assert.Equal(t, websocket.TextMessage, conn.sentMessages[0].messageType)
		})
	}
}

func TestServer_RunFontmake_Busy(t *testing.T) {
	server, _ := newTestServer(t)
	server.runMu.Lock()
	defer server.runMu.Unlock()

	conn := &mockWebSocketConn{}
	server.handleWebSocketMessage(context.Background(), conn, []byte(`{"type": "run"}`))

	events := conn.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "busy", events[0].ErrorType)
}

func TestServer_RunFontmake_Completed(t *testing.T) {
	server, root := newTestServer(t)
	testutil.SaveImage(t, testutil.GenerateSheet(testutil.DefaultSheetConfig()), filepath.Join(root, "bnw", "c.png"))

	conn := &mockWebSocketConn{}
	server.handleWebSocketMessage(context.Background(), conn, []byte(`{"type": "run"}`))

	events := conn.events(t)
	require.NotEmpty(t, events)
	first, last := events[0], events[len(events)-1]
	assert.Equal(t, EventRun, first.Type)
	assert.Equal(t, StatusStarted, first.Status)
	assert.Equal(t, 3, first.Total)
	assert.NotEmpty(t, first.RunID)

	assert.Equal(t, EventRun, last.Type)
	assert.Equal(t, StatusCompleted, last.Status)
	assert.Equal(t, pipeline.DoneMessage, last.Message)
	assert.Equal(t, first.RunID, last.RunID)
	require.NotNil(t, last.Report)
	assert.True(t, last.Report.Succeeded)

	var started []string
	for _, e := range events {
		assert.Equal(t, first.RunID, e.RunID)
		if e.Type == EventStage && e.Status == StatusStarted {
			started = append(started, e.Stage)
		}
	}
	assert.Equal(t, []string{config.StageTransparentize, config.StageChop, config.StageTrim}, started)
	assert.Equal(t, []string{"1.png", "2.png", "3.png"}, testutil.ListNames(t, filepath.Join(root, "ready", "c")))
}

func TestServer_RunFontmake_ThresholdOverride(t *testing.T) {
	server, _ := newTestServer(t)
	var got []bool
	server.newStages = func(withThreshold bool, progress pipeline.ProgressFactory) ([]pipeline.Stage, error) {
		got = append(got, withThreshold)
		return []pipeline.Stage{{Name: "noop", Run: func(context.Context) error { return nil }}}, nil
	}

	server.handleWebSocketMessage(context.Background(), &mockWebSocketConn{}, []byte(`{"type": "run"}`))
	server.handleWebSocketMessage(context.Background(), &mockWebSocketConn{}, []byte(`{"type": "run", "threshold": true}`))
	assert.Equal(t, []bool{false, true}, got)
}

func TestServer_RunFontmake_StageFailure(t *testing.T) {
	server, _ := newTestServer(t)
	ran := false
	server.newStages = func(bool, pipeline.ProgressFactory) ([]pipeline.Stage, error) {
		return []pipeline.Stage{
			{Name: "boom", Announcement: "Booming...", Run: func(context.Context) error { return errors.New("kaput") }},
			{Name: "after", Run: func(context.Context) error { ran = true; return nil }},
		}, nil
	}

	conn := &mockWebSocketConn{}
	server.runFontmake(context.Background(), conn, false)

	events := conn.events(t)
	require.Len(t, events, 4)
	assert.Equal(t, EventStage, events[1].Type)
	assert.Equal(t, "Booming...", events[1].Message)
	assert.Equal(t, StatusFailed, events[2].Status)
	assert.Equal(t, "kaput", events[2].Error)

	last := events[3]
	assert.Equal(t, StatusFailed, last.Status)
	assert.Equal(t, "boom", last.Stage)
	assert.Equal(t, "pipeline_error", last.ErrorType)
	require.NotNil(t, last.Report)
	assert.False(t, last.Report.Succeeded)
	assert.False(t, ran)

	// The lock is released after a failed run.
	assert.False(t, server.running())
}

func TestServer_RunFontmake_BuildError(t *testing.T) {
	server, _ := newTestServer(t, func(c *config.Config) { c.Threshold.Backend = "gimp" })

	conn := &mockWebSocketConn{}
	server.runFontmake(context.Background(), conn, true)

	events := conn.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, "pipeline_error", events[0].ErrorType)
	assert.NotEmpty(t, events[0].RunID)
}

func TestServer_FontmakeWebSocket_EndToEnd(t *testing.T) {
	server, root := newTestServer(t)
	testutil.SaveImage(t, testutil.GenerateSheet(testutil.DefaultSheetConfig()), filepath.Join(root, "bnw", "c.png"))

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/fontmake"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_ = resp.Body.Close()

	require.NoError(t, conn.WriteJSON(WebSocketRunRequest{Type: EventRun}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))

	for {
		var e WebSocketEvent
		require.NoError(t, conn.ReadJSON(&e))
		if e.Type == EventRun && e.Status != StatusStarted {
			assert.Equal(t, StatusCompleted, e.Status, e.Error)
			break
		}
	}
	assert.True(t, testutil.DirExists(filepath.Join(root, "ready", "c")))
}
