package support

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/MeKo-Tech/handwriter/internal/server"
	"github.com/gorilla/websocket"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// startTestHTTPServer serves the workspace in-process.
func (testCtx *TestContext) startTestHTTPServer(mutate func(*config.Config)) error {
	if testCtx.HTTPTestServer != nil {
		return errors.New("server already running")
	}

	app := config.DefaultConfig()
	app.Paths.Root = testCtx.Workspace
	if mutate != nil {
		mutate(&app)
	}
	srv, err := server.NewServer(server.ConfigFrom(&app))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(srv.Handler()),
		TestServer: srv,
	}
	return nil
}

// StopServer stops the httptest server if one is running.
func (testCtx *TestContext) StopServer() error {
	if testCtx.HTTPTestServer == nil {
		return nil
	}
	testCtx.HTTPTestServer.Server.Close()
	err := testCtx.HTTPTestServer.TestServer.Close()
	testCtx.HTTPTestServer = nil
	return err
}

// doRequest sends a request to the running server and stores the response.
func (testCtx *TestContext) doRequest(method, path string, body []byte) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("server is not running")
	}

	req, err := http.NewRequest(method, testCtx.HTTPTestServer.Server.URL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse, err = io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

// runFontmakeOverWebSocket sends a run request and collects events until the
// final run event arrives.
func (testCtx *TestContext) runFontmakeOverWebSocket(request string) error {
	if testCtx.HTTPTestServer == nil {
		return errors.New("server is not running")
	}

	url := "ws" + strings.TrimPrefix(testCtx.HTTPTestServer.Server.URL, "http") + "/ws/fontmake"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", url, err)
	}
	defer func() { _ = conn.Close() }()
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(request)); err != nil {
		return err
	}
	if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		return err
	}

	testCtx.LastEvents = nil
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		var event map[string]any
		if err := json.Unmarshal(data, &event); err != nil {
			return err
		}
		testCtx.LastEvents = append(testCtx.LastEvents, event)

		if event["type"] == server.EventError {
			return nil
		}
		if event["type"] == server.EventRun && event["status"] != server.StatusStarted {
			return nil
		}
	}
}
