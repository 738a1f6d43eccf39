package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bpsr-tools/crowddata/pkg/ingest"
	"github.com/bpsr-tools/crowddata/pkg/store"
)

// Server exposes the ingest and report endpoints.
type Server struct {
	pipeline *ingest.Pipeline
	reports  store.ReportStore

	// retryAfterSecs is suggested to rate-limited clients.
	retryAfterSecs int
}

// NewServer wires the HTTP surface. rateLimitPerMinute drives the
// Retry-After hint on 429 responses.
func NewServer(pipeline *ingest.Pipeline, reports store.ReportStore, rateLimitPerMinute int) *Server {
	retryAfter := 1
	if rateLimitPerMinute > 0 {
		retryAfter = 60 / rateLimitPerMinute
		if retryAfter < 1 {
			retryAfter = 1
		}
	}
	return &Server{
		pipeline:       pipeline,
		reports:        reports,
		retryAfterSecs: retryAfter,
	}
}

// Routes returns the handler with middleware applied.
func (s *Server) Routes(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.HandleHealth)
	mux.HandleFunc("/v1/ingest", s.HandleIngest)
	mux.HandleFunc("/v1/reports", s.HandleListReports)
	mux.HandleFunc("/v1/reports/", s.HandleGetReport)

	return RequestIDMiddleware(CORSMiddleware(allowedOrigins)(mux))
}

// HandleHealth handles the /health liveness endpoint. No auth.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// IngestRequest is the ingest body.
type IngestRequest struct {
	Source  string         `json:"source"`
	Payload map[string]any `json:"payload"`
}

// IngestResponse is returned for both first-insert and duplicate
// submissions; callers cannot distinguish the two.
type IngestResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

// HandleIngest handles POST /v1/ingest.
func (s *Server) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteBadRequest(w, "Unable to read request body")
		return
	}

	var generic any
	if err := json.Unmarshal(body, &generic); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ingestBodySchema.Validate(generic); err != nil {
		WriteBadRequest(w, "Body must be {source: string, payload: object}")
		return
	}

	var req IngestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}

	key := r.Header.Get("X-API-Key")

	report, err := s.pipeline.Submit(r.Context(), key, req.Source, req.Payload)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrMissingCredential):
			WriteUnauthorized(w, "Missing X-API-Key header")
		case errors.Is(err, ingest.ErrInvalidCredential):
			WriteForbidden(w, "Invalid API key")
		case errors.Is(err, ingest.ErrInvalidSource):
			WriteUnprocessable(w, "Source must be one of: bp_timer, bpsr_logs, manual, other")
		case errors.Is(err, ingest.ErrRateLimited):
			WriteTooManyRequests(w, s.retryAfterSecs)
		default:
			WriteInternal(w, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(IngestResponse{OK: true, ID: report.ID})
}

// HandleGetReport handles GET /v1/reports/{id}.
func (s *Server) HandleGetReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/reports/")
	if id == "" || strings.Contains(id, "/") {
		WriteNotFound(w, "Report not found")
		return
	}

	report, err := s.reports.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "Report "+id+" not found")
			return
		}
		WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

// HandleListReports handles GET /v1/reports with source/limit/offset query
// parameters.
func (s *Server) HandleListReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}

	opts := store.ListOptions{
		Source: r.URL.Query().Get("source"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	reports, err := s.reports.List(r.Context(), opts)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reports)
}
