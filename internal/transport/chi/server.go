// Package chi exposes the pipeline over HTTP.
package chi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/finbrief/finbrief/internal/domain"
	healthuc "github.com/finbrief/finbrief/internal/usecase/health"
	ingestuc "github.com/finbrief/finbrief/internal/usecase/ingest"
	orchestrateuc "github.com/finbrief/finbrief/internal/usecase/orchestrate"
)

const maxIngestBatch = 100

// ErrorCode identifies an API error category.
type ErrorCode string

const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeQueryFailed            ErrorCode = "query_failed"
	CodeTranscriptionFailed    ErrorCode = "transcription_failed"
	CodeDocumentNotFound       ErrorCode = "document_not_found"
	CodeDimensionMismatch      ErrorCode = "vector_dim_mismatch"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the usecase services into HTTP handlers.
type Server struct {
	orchestrator  *orchestrateuc.Service
	ingester      *ingestuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	orchestrator *orchestrateuc.Service,
	ingester *ingestuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		orchestrator: orchestrator,
		ingester:     ingester,
		health:       health,
		logger:       logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrTranscriptionFailed, http.StatusBadGateway, CodeTranscriptionFailed),
		sentinelHandler(domain.ErrQueryFailed, http.StatusServiceUnavailable, CodeQueryFailed),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, CodeDimensionMismatch),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, CodeEmbeddingProviderError),
	}
	return s
}

// Routes mounts all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/query", s.PostQuery)
	r.Post("/v1/documents", s.PostDocuments)
	r.Delete("/v1/documents/{id}", s.DeleteDocument)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// QueryRequest is the body of POST /v1/query. Exactly one of text or
// audio must be set; audio is base64-encoded and switches the query to
// voice mode.
type QueryRequest struct {
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"`
}

// QueryResponse is the body of a successful POST /v1/query.
type QueryResponse struct {
	QueryID    string   `json:"query_id"`
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
	Degraded   bool     `json:"degraded"`
	Audio      string   `json:"audio,omitempty"`
}

// PostQuery handles POST /v1/query.
func (s *Server) PostQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if (req.Text == "") == (req.Audio == "") {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "exactly one of text or audio is required")
		return
	}

	var q domain.Query
	if req.Audio != "" {
		audio, err := base64.StdEncoding.DecodeString(req.Audio)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "audio must be base64-encoded")
			return
		}
		q = domain.NewVoiceQuery(audio)
	} else {
		q = domain.NewQuery(req.Text)
	}

	result, err := s.orchestrator.Process(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := QueryResponse{
		QueryID:    q.ID,
		Answer:     result.AnswerText,
		Confidence: result.Confidence,
		Sources:    result.Sources,
		Degraded:   result.Degraded,
	}
	if len(result.Audio) > 0 {
		resp.Audio = base64.StdEncoding.EncodeToString(result.Audio)
	}
	writeJSON(w, http.StatusOK, resp)
}

// IngestRequest is the body of POST /v1/documents.
type IngestRequest struct {
	Documents []IngestItem `json:"documents"`
}

// IngestItem is one document to index. ID is optional; one is assigned
// when absent.
type IngestItem struct {
	ID          string     `json:"id,omitempty"`
	Text        string     `json:"text"`
	Source      string     `json:"source,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// IngestResponse lists the ids of the indexed documents.
type IngestResponse struct {
	IDs     []string `json:"ids"`
	Indexed int      `json:"indexed"`
}

// PostDocuments handles POST /v1/documents.
func (s *Server) PostDocuments(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Documents) == 0 || len(req.Documents) > maxIngestBatch {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			"documents count must be between 1 and 100")
		return
	}

	docs := make([]domain.Document, len(req.Documents))
	for i, item := range req.Documents {
		if item.Text == "" {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "document text is required")
			return
		}
		docs[i] = domain.Document{
			ID:     item.ID,
			Text:   item.Text,
			Source: item.Source,
		}
		if item.PublishedAt != nil {
			docs[i].PublishedAt = *item.PublishedAt
		}
	}

	ids, err := s.ingester.IngestBatch(r.Context(), docs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, IngestResponse{IDs: ids, Indexed: len(ids)})
}

// DeleteDocument handles DELETE /v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "document id is required")
		return
	}

	if err := s.ingester.Remove(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status           string            `json:"status"`
	Checks           map[string]string `json:"checks"`
	IndexedDocuments int               `json:"indexed_documents"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:           string(report.Status),
		Checks:           checks,
		IndexedDocuments: report.IndexedDocuments,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrQueryFailed,
		domain.ErrTranscriptionFailed,
		domain.ErrDocumentNotFound,
		domain.ErrDimensionMismatch,
		domain.ErrEmbeddingUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
