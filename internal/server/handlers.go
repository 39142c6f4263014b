package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MeKo-Tech/handwriter/internal/version"
	"github.com/MeKo-Tech/handwriter/internal/writer"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Running: s.running(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log().Error("Error encoding health response", "error", err)
	}
}

// running reports whether a fontmake run holds the run lock.
func (s *Server) running() bool {
	if s.runMu.TryLock() {
		s.runMu.Unlock()
		return false
	}
	return true
}

// writeHandler renders the posted text with the current font.
func (s *Server) writeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.maxTextBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxTextBytes)
	}

	var req WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeErrorResponse(w, "Text too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Invalid JSON request", http.StatusBadRequest)
		}
		writeRequestsTotal.WithLabelValues("invalid").Inc()
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeRequestsTotal.WithLabelValues("invalid").Inc()
		s.writeErrorResponse(w, "No text provided", http.StatusBadRequest)
		return
	}
	format := strings.ToLower(req.Format)
	if format == "" {
		format = writer.FormatPNG
	}
	if format != writer.FormatPNG && format != writer.FormatPDF {
		writeRequestsTotal.WithLabelValues("invalid").Inc()
		s.writeErrorResponse(w, "Unsupported format: "+req.Format, http.StatusBadRequest)
		return
	}

	boxes, err := writer.LoadBoundingBoxes(s.app.Paths.BoundingBoxesFile())
	if err != nil {
		writeRequestsTotal.WithLabelValues("error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Bounding boxes unavailable: %v", err), http.StatusServiceUnavailable)
		return
	}

	opts := writer.OptionsFromConfig(s.app.Writer)
	opts.Logger = s.log()
	if req.Debug != nil {
		opts.Debug = *req.Debug
	}
	if req.Connect != nil {
		opts.Connect = *req.Connect
	}
	seed := s.app.Writer.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	writeTextLength.Observe(float64(utf8.RuneCountInString(req.Text)))
	start := time.Now()
	img, err := writer.New(s.app.Paths.ReadyDir(), boxes).Write(req.Text, seed, opts)
	writeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		status := http.StatusInternalServerError
		label := "error"
		if isTextError(err) {
			status = http.StatusUnprocessableEntity
			label = "invalid"
		}
		writeRequestsTotal.WithLabelValues(label).Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Rendering failed: %v", err), status)
		return
	}

	var buf bytes.Buffer
	contentType := "image/png"
	if format == writer.FormatPDF {
		contentType = "application/pdf"
		err = s.encodePDF(&buf, img)
	} else {
		err = writer.Encode(&buf, img)
	}
	if err != nil {
		writeRequestsTotal.WithLabelValues("error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Encoding failed: %v", err), http.StatusInternalServerError)
		return
	}

	writeRequestsTotal.WithLabelValues("success").Inc()
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.log().Error("Error writing response", "error", err)
	}
}

// isTextError reports errors caused by the requested text rather than the server.
func isTextError(err error) bool {
	var uce *writer.UnsupportedCharError
	return errors.As(err, &uce) ||
		errors.Is(err, writer.ErrNoVariations) ||
		errors.Is(err, writer.ErrNoBoundingBox) ||
		errors.Is(err, writer.ErrNothingToDraw)
}

// encodePDF exports img into a temporary PDF and copies it to buf.
func (s *Server) encodePDF(buf *bytes.Buffer, img image.Image) error {
	dir, err := os.MkdirTemp("", "handwriter-write-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "out.pdf")
	if err := writer.Save(img, path, writer.FormatPDF); err != nil {
		return err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is inside our temp dir
	if err != nil {
		return err
	}
	_, err = buf.Write(data)
	return err
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: message}); err != nil {
		s.log().Error("Error writing error response", "error", err)
	}
}
