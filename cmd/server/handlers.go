package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/TapAlign/internal/annotation"
	"github.com/himanishpuri/TapAlign/internal/export"
	"github.com/himanishpuri/TapAlign/internal/metadata"
	"github.com/himanishpuri/TapAlign/internal/storage"
	"github.com/himanishpuri/TapAlign/pkg/tapalign"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service tapalign.Service
	config  *ServerConfig
	log     tapalign.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	TempDir        string
	Workers        int
	Schema         metadata.Schema
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service tapalign.Service, config *ServerConfig, log tapalign.Logger) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     log,
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, metadata.ErrUnknownGroup), errors.Is(err, metadata.ErrUnknownCondition):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "TapAlign API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":          "GET /health",
			"metrics":         "GET /api/health/metrics",
			"recordings":      "GET /api/recordings",
			"getRecording":    "GET /api/recordings/{id}",
			"deleteRecording": "DELETE /api/recordings/{id}",
			"matches":         "GET /api/recordings/{id}/matches",
			"process":         "POST /api/process",
			"export":          "GET /api/export",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats()
	if err != nil {
		s.log.Errorf("Failed to get stats: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:         "healthy",
		DatabasePath:   s.config.DBPath,
		RecordingCount: stats.Recordings,
		MatchCount:     stats.Matches,
		Workers:        s.config.Workers,
	})
}

// handleListRecordings handles GET /api/recordings
func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	recs, err := s.service.ListRecordings()
	if err != nil {
		s.log.Errorf("Failed to list recordings: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve recordings")
		return
	}

	dtos := make([]RecordingDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = newRecordingDTO(rec)
	}

	s.respondJSON(w, http.StatusOK, ListRecordingsResponse{
		Recordings: dtos,
		Count:      len(dtos),
	})
}

// handleGetRecording handles GET /api/recordings/{id}
func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.service.GetRecording(id)
	if err != nil {
		s.log.Warnf("Recording not found: %s", id)
		s.respondError(w, statusFor(err), fmt.Sprintf("Recording with ID %s not found", id))
		return
	}

	s.respondJSON(w, http.StatusOK, newRecordingDTO(*rec))
}

// handleGetMatches handles GET /api/recordings/{id}/matches
func (s *Server) handleGetMatches(w http.ResponseWriter, r *http.Request, id string) {
	rows, err := s.service.GetMatches(id)
	if err != nil {
		s.log.Warnf("Failed to get matches for %s: %v", id, err)
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, MatchesResponse{
		RecordingID: id,
		Matches:     newMatchDTOs(rows),
		Count:       len(rows),
	})
}

// handleDeleteRecording handles DELETE /api/recordings/{id}
func (s *Server) handleDeleteRecording(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.service.DeleteRecording(id); err != nil {
		status := statusFor(err)
		if status == http.StatusNotFound {
			s.respondError(w, status, fmt.Sprintf("Recording with ID %s not found", id))
			return
		}
		s.log.Errorf("Failed to delete recording %s: %v", id, err)
		s.respondError(w, status, "Failed to delete recording")
		return
	}

	s.respondJSON(w, http.StatusOK, DeleteRecordingResponse{
		Message: "Recording deleted successfully",
		ID:      id,
	})
}

// handleProcess handles POST /api/process (multipart upload)
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	subject := r.FormValue("subject")
	group := r.FormValue("group")
	condition := r.FormValue("condition")
	if subject == "" || group == "" || condition == "" {
		s.respondError(w, http.StatusBadRequest, "subject, group and condition are required")
		return
	}

	trialsJSON, err := formText(r, "trials")
	if err != nil || strings.TrimSpace(trialsJSON) == "" {
		s.respondError(w, http.StatusBadRequest, "trials are required")
		return
	}
	trials, err := annotation.ParseTrials([]byte(trialsJSON))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid trials: %v", err))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.log.Errorf("Failed to get audio file: %v", err)
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	info, err := s.config.Schema.Resolve(subject, group, condition, strings.TrimSuffix(name, filepath.Ext(name)))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Save to temporary file
	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("upload_%d_%s", time.Now().UnixNano(), name))
	out, err := os.Create(tempFile)
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to process upload")
		return
	}
	defer os.Remove(tempFile)

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		s.log.Errorf("Failed to save file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	out.Close()

	s.log.Infof("Processing upload %s for %s/%s/%s", name, subject, group, condition)
	res, err := s.service.ProcessFile(ctx, tapalign.FileJob{
		AudioPath: tempFile,
		Trials:    trials,
		Info:      &info,
		Key:       strings.Join([]string{"upload", subject + "-" + group, condition, name}, "/"),
	})
	if err != nil {
		s.log.Errorf("Failed to process upload: %v", err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to process recording: %v", err))
		return
	}

	s.respondJSON(w, http.StatusCreated, ProcessResponse{
		Message:   "Recording processed successfully",
		Recording: newRecordingDTO(res.Recording),
		Trials:    newTrialDTOs(res.Trials),
		Matches:   newMatchDTOs(res.Rows),
	})
}

// formText reads a form field given either as a value or as an uploaded file
func formText(r *http.Request, key string) (string, error) {
	if v := r.FormValue(key); v != "" {
		return v, nil
	}
	f, _, err := r.FormFile(key)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// handleExport handles GET /api/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	rows, err := s.service.ExportRows()
	if err != nil {
		s.log.Errorf("Failed to export rows: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to export matches")
		return
	}

	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tapalign.tsv"`)
	w.WriteHeader(http.StatusOK)
	if err := export.Write(w, rows, true); err != nil {
		s.log.Errorf("Failed to write export: %v", err)
	}
}

// handleRecordings routes requests to /api/recordings
func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleListRecordings(w, r)
}

// handleRecording routes requests to /api/recordings/{id} and /api/recordings/{id}/matches
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/recordings/"), "/")
	if rest == "" {
		s.respondError(w, http.StatusBadRequest, "Recording ID required")
		return
	}

	id, sub, _ := strings.Cut(rest, "/")
	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.handleGetRecording(w, r, id)
	case sub == "" && r.Method == http.MethodDelete:
		s.handleDeleteRecording(w, r, id)
	case sub == "matches" && r.Method == http.MethodGet:
		s.handleGetMatches(w, r, id)
	case sub == "" || sub == "matches":
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	default:
		http.NotFound(w, r)
	}
}

// handleProcessRoute routes requests to /api/process
func (s *Server) handleProcessRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleProcess(w, r)
}

// handleExportRoute routes requests to /api/export
func (s *Server) handleExportRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.handleExport(w, r)
}
