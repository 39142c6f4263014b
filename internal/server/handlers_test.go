package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/handwriter/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_HealthHandler(t *testing.T) {
	server := &Server{}

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{"GET request success", http.MethodGet, http.StatusOK},
		{"POST request not allowed", http.MethodPost, http.StatusMethodNotAllowed},
		{"PUT request not allowed", http.MethodPut, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.healthHandler(w, httptest.NewRequest(tt.method, "/health", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var response HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.NotEmpty(t, response.Time)
			assert.False(t, response.Running)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestServer_HealthHandler_ReportsRunningPipeline(t *testing.T) {
	server := &Server{}
	server.runMu.Lock()
	defer server.runMu.Unlock()

	w := httptest.NewRecorder()
	server.healthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response.Running)
}

func postWrite(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.writeHandler(w, httptest.NewRequest(http.MethodPost, "/write", strings.NewReader(body)))
	return w
}

func TestServer_WriteHandler_PNG(t *testing.T) {
	server, _ := newTestServer(t)

	w := postWrite(t, server, `{"text": "bb", "seed": 3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	img, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
}

func TestServer_WriteHandler_SameSeedSameBytes(t *testing.T) {
	server, _ := newTestServer(t)

	first := postWrite(t, server, `{"text": "aaa aa", "seed": 11}`)
	second := postWrite(t, server, `{"text": "aaa aa", "seed": 11}`)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
}

func TestServer_WriteHandler_PDF(t *testing.T) {
	server, _ := newTestServer(t)

	w := postWrite(t, server, `{"text": "ab", "format": "pdf", "debug": true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
}

func TestServer_WriteHandler_Errors(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{"text":`, http.StatusBadRequest},
		{"empty text", `{"text": "  "}`, http.StatusBadRequest},
		{"unsupported format", `{"text": "a", "format": "gif"}`, http.StatusBadRequest},
		{"unsupported char", `{"text": "a#"}`, http.StatusUnprocessableEntity},
		{"missing letter", `{"text": "abc"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWrite(t, server, tt.body)
			assert.Equal(t, tt.status, w.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.False(t, response.Success)
			assert.NotEmpty(t, response.Error)
		})
	}

	w := httptest.NewRecorder()
	server.writeHandler(w, httptest.NewRequest(http.MethodGet, "/write", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_WriteHandler_TooLarge(t *testing.T) {
	server, _ := newTestServer(t, func(c *config.Config) { c.Server.MaxTextKB = 1 })

	w := postWrite(t, server, `{"text": "`+strings.Repeat("a", 4096)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestServer_WriteHandler_MissingBoundingBoxes(t *testing.T) {
	server, root := newTestServer(t)
	require.NoError(t, os.Remove(filepath.Join(root, "bounding-boxes.json")))

	w := postWrite(t, server, `{"text": "a"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_Routes(t *testing.T) {
	server, _ := newTestServer(t)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/write", "application/json", strings.NewReader(`{"text": "ab"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "handwriter_write_requests_total")
	assert.Contains(t, string(body), "handwriter_http_requests_total")

	resp, err = http.Get(ts.URL + "/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_Routes_RateLimited(t *testing.T) {
	server, _ := newTestServer(t, func(c *config.Config) { c.Server.RateLimit.RequestsPerMinute = 1 })
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		resp, err := http.Post(ts.URL+"/write", "application/json", strings.NewReader(`{"text": "a"}`))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, "request %d", i+1)
	}
}

func TestNewServer(t *testing.T) {
	s, err := NewServer(Config{MaxTextKB: 2, TimeoutSec: 5})
	require.NoError(t, err)
	assert.NotNil(t, s.app)
	assert.Equal(t, int64(2048), s.maxTextBytes)
	assert.Nil(t, s.rateLimiter)
	assert.NoError(t, s.Close())

	app := config.DefaultConfig()
	app.Server.RateLimit.MaxRequestsPerDay = 3
	cfg := ConfigFrom(&app)
	assert.Equal(t, app.Server.CORSOrigin, cfg.CORSOrigin)
	s, err = NewServer(cfg)
	require.NoError(t, err)
	assert.NotNil(t, s.rateLimiter)
}
