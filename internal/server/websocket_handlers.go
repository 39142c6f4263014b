package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MeKo-Tech/handwriter/internal/pipeline"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event types sent over /ws/fontmake.
const (
	EventRun      = "run"
	EventStage    = "stage"
	EventProgress = "progress"
	EventError    = "error"
)

// Event statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusError     = "error"
)

// WebSocketRunRequest asks the server to run the font pipeline.
type WebSocketRunRequest struct {
	Type string `json:"type"` // "run"
	// Threshold overrides pipeline.threshold for this run.
	Threshold *bool `json:"threshold,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketEvent reports the state of a fontmake run.
type WebSocketEvent struct {
	Type      string           `json:"type"`
	Status    string           `json:"status"`
	Stage     string           `json:"stage,omitempty"`
	Message   string           `json:"message,omitempty"`
	Index     int              `json:"index,omitempty"`
	Total     int              `json:"total,omitempty"`
	Progress  float64          `json:"progress,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
	RunID     string           `json:"run_id,omitempty"`
	Report    *pipeline.Report `json:"report,omitempty"`
}

// fontmakeWebSocketHandler handles WebSocket connections that trigger pipeline runs.
func (s *Server) fontmakeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.log().Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log().Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(ctx, conn, data)
			// A run may take longer than the read deadline.
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		}
	}
}

// handleWebSocketMessage processes a WebSocket message.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketRunRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	switch req.Type {
	case EventRun:
		withThreshold := s.app.Pipeline.Threshold
		if req.Threshold != nil {
			withThreshold = *req.Threshold
		}
		s.runFontmake(ctx, conn, withThreshold)
	default:
		s.sendWebSocketError(conn, "", "invalid_request", "Unsupported request type: "+req.Type)
	}
}

// runFontmake runs the pipeline and streams its events to conn. Only one run
// may be active per server.
func (s *Server) runFontmake(ctx context.Context, conn WebSocketConnWriter, withThreshold bool) {
	if !s.runMu.TryLock() {
		pipelineRunsTotal.WithLabelValues("busy").Inc()
		s.sendWebSocketError(conn, "", "busy", "A pipeline run is already in progress")
		return
	}
	defer s.runMu.Unlock()

	runID := uuid.NewString()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	progress := func(stage string) pipeline.ProgressCallback {
		return pipeline.NewThrottledProgressCallback(pipeline.ProgressFunc(func(current, total int) {
			var fraction float64
			if total > 0 {
				fraction = float64(current) / float64(total)
			}
			s.sendWebSocketEvent(conn, WebSocketEvent{
				Type: EventProgress, Status: StatusStarted, Stage: stage,
				Index: current, Total: total, Progress: fraction, RunID: runID,
			})
		}), 100*time.Millisecond)
	}

	stages, err := s.newStages(withThreshold, progress)
	if err != nil {
		pipelineRunsTotal.WithLabelValues("failed").Inc()
		s.sendWebSocketError(conn, runID, "pipeline_error", fmt.Sprintf("Failed to build pipeline: %v", err))
		return
	}

	runner, err := pipeline.NewBuilder().
		WithOutput(io.Discard).
		WithLogger(s.log()).
		WithStages(stages...).
		WithObserver(&wsObserver{server: s, conn: conn, runID: runID}).
		Build()
	if err != nil {
		pipelineRunsTotal.WithLabelValues("failed").Inc()
		s.sendWebSocketError(conn, runID, "pipeline_error", fmt.Sprintf("Failed to build pipeline: %v", err))
		return
	}

	s.log().Info("Pipeline run started", "run_id", runID, "stages", len(stages))
	s.sendWebSocketEvent(conn, WebSocketEvent{Type: EventRun, Status: StatusStarted, Total: len(stages), RunID: runID})

	report, err := runner.Run(ctx)
	if err != nil {
		pipelineRunsTotal.WithLabelValues("failed").Inc()
		stage := ""
		var se *pipeline.StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		s.log().Error("Pipeline run failed", "run_id", runID, "stage", stage, "error", err)
		s.sendWebSocketEvent(conn, WebSocketEvent{
			Type: EventRun, Status: StatusFailed, Stage: stage, Error: err.Error(),
			ErrorType: "pipeline_error", RunID: runID, Report: report,
		})
		return
	}

	pipelineRunsTotal.WithLabelValues("completed").Inc()
	s.log().Info("Pipeline run completed", "run_id", runID)
	s.sendWebSocketEvent(conn, WebSocketEvent{
		Type: EventRun, Status: StatusCompleted, Message: pipeline.DoneMessage,
		Progress: 1, RunID: runID, Report: report,
	})
}

// wsObserver forwards stage lifecycle events to a WebSocket client.
type wsObserver struct {
	server *Server
	conn   WebSocketConnWriter
	runID  string
}

func (o *wsObserver) OnStageStart(stage pipeline.Stage, index, total int) {
	o.server.sendWebSocketEvent(o.conn, WebSocketEvent{
		Type: EventStage, Status: StatusStarted, Stage: stage.Name, Message: stage.Announcement,
		Index: index + 1, Total: total, RunID: o.runID,
	})
}

func (o *wsObserver) OnStageFinish(stage pipeline.Stage, index, total int, elapsed time.Duration, err error) {
	pipelineStageDuration.WithLabelValues(stage.Name).Observe(elapsed.Seconds())
	event := WebSocketEvent{
		Type: EventStage, Status: StatusCompleted, Stage: stage.Name,
		Index: index + 1, Total: total, Progress: float64(index+1) / float64(total), RunID: o.runID,
	}
	if err != nil {
		event.Status = StatusFailed
		event.Error = err.Error()
	}
	o.server.sendWebSocketEvent(o.conn, event)
}

// sendWebSocketEvent sends an event over WebSocket.
func (s *Server) sendWebSocketEvent(conn WebSocketConnWriter, event WebSocketEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.log().Error("Failed to marshal WebSocket event", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.log().Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, runID, errorType, message string) {
	s.sendWebSocketEvent(conn, WebSocketEvent{
		Type:      EventError,
		Status:    StatusError,
		Error:     message,
		ErrorType: errorType,
		RunID:     runID,
	})
}
