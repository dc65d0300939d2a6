// Package api provides HTTP API handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/qfcreview/reviewdesk/internal/analysis"
	"github.com/qfcreview/reviewdesk/internal/dashboard"
	"github.com/qfcreview/reviewdesk/internal/ingest"
	"github.com/qfcreview/reviewdesk/internal/models"
	"github.com/qfcreview/reviewdesk/internal/normalize"
	"github.com/qfcreview/reviewdesk/internal/store"
)

const uploadSource = "new_review_upload_api"

// Analyzer turns an uploaded PDF into a raw analysis response.
type Analyzer interface {
	Analyze(ctx context.Context, pdf []byte) ([]byte, error)
}

// Handler contains all HTTP handlers.
type Handler struct {
	svc       *dashboard.Service
	analyzer  Analyzer
	counter   *ingest.Counter
	maxUpload int64
}

// NewHandler creates a new handler. analyzer may be nil, in which case the
// upload endpoint reports the service as unavailable. counter may be nil.
func NewHandler(svc *dashboard.Service, analyzer Analyzer, counter *ingest.Counter, maxUpload int64) *Handler {
	return &Handler{
		svc:       svc,
		analyzer:  analyzer,
		counter:   counter,
		maxUpload: maxUpload,
	}
}

// HealthCheck returns the service health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.counter != nil {
		response["ingestions"] = h.counter.Snapshot()
	}
	writeJSON(w, http.StatusOK, response)
}

type submitRequest struct {
	Response json.RawMessage `json:"response"`
	Metadata models.Metadata `json:"metadata"`
}

// SubmitReview ingests a raw analysis response.
func (h *Handler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Response) == 0 || string(req.Response) == "null" {
		writeError(w, http.StatusBadRequest, "Response is required")
		return
	}

	meta := req.Metadata
	meta.DedupeKey = ""
	h.ingest(w, r, req.Response, meta)
}

// UploadReview sends an uploaded PDF to the analysis service and ingests
// the result.
func (h *Handler) UploadReview(w http.ResponseWriter, r *http.Request) {
	if h.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "Analysis service is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	pdf, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if err := analysis.ValidateUpload(contentType, pdf, h.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	raw, err := h.analyzer.Analyze(r.Context(), pdf)
	if err != nil {
		log.Error().Err(err).Str("file", header.Filename).Msg("Analysis request failed")
		writeError(w, http.StatusBadGateway, "Analysis failed: "+err.Error())
		return
	}

	h.ingest(w, r, raw, models.Metadata{
		Company:      r.FormValue("company"),
		DocumentType: r.FormValue("document_type"),
		FileName:     header.Filename,
		FileSize:     int64(len(pdf)),
		ContentType:  contentType,
		Source:       uploadSource,
	})
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, raw []byte, meta models.Metadata) {
	result, err := h.svc.Ingest(r.Context(), raw, meta)
	if err != nil {
		writeIngestError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Status == ingest.StatusDuplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// ListReviews returns paginated review entries.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	reviews, err := h.svc.ListReviews(r.Context(), store.Filter{
		Status:    q.Get("status"),
		RiskLevel: q.Get("risk_level"),
		Company:   q.Get("company"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reviews")
		writeError(w, http.StatusServiceUnavailable, "Failed to list reviews")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reviews": reviews,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetLatestReview returns the most recent report.
func (h *Handler) GetLatestReview(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Latest(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get latest review")
		writeError(w, http.StatusServiceUnavailable, "Failed to get latest review")
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "No reviews stored")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetReview returns a report by ID.
func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "ID is required")
		return
	}

	report, err := h.svc.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Review not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to get review")
		writeError(w, http.StatusServiceUnavailable, "Failed to get review")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetResponse returns the raw analysis response stored under an ID.
func (h *Handler) GetResponse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "ID is required")
		return
	}

	resp, err := h.svc.Response(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Response not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to get response")
		writeError(w, http.StatusServiceUnavailable, "Failed to get response")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetDashboard returns the snapshot of the latest report.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.svc.Dashboard(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get dashboard")
		writeError(w, http.StatusServiceUnavailable, "Failed to get dashboard")
		return
	}
	if snapshot == nil {
		writeError(w, http.StatusNotFound, "No reviews stored")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// GetRegulations returns every stored gap grouped by article.
func (h *Handler) GetRegulations(w http.ResponseWriter, r *http.Request) {
	idx, err := h.svc.Regulations(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get regulations")
		writeError(w, http.StatusServiceUnavailable, "Failed to get regulations")
		return
	}
	byArticle, err := h.svc.RegulationsByArticle(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get regulations")
		writeError(w, http.StatusServiceUnavailable, "Failed to get regulations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"articles":            byArticle,
		"critical_gaps_count": idx.CriticalGapsCount,
		"action_plan":         idx.ActionPlan,
		"last_updated":        idx.LastUpdated,
	})
}

// GetMetrics returns cross-report statistics.
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.AggregateMetrics(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to compute metrics")
		writeError(w, http.StatusServiceUnavailable, "Failed to compute metrics")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetAuditTrail returns the most recent audit entries.
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 50
	}

	entries, err := h.svc.AuditTrail(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get audit trail")
		writeError(w, http.StatusServiceUnavailable, "Failed to get audit trail")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"limit":   limit,
	})
}

// ClearData removes every stored report.
func (h *Handler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.ClearAllData(r.Context()); err != nil {
		log.Error().Err(err).Msg("Failed to clear data")
		writeError(w, http.StatusServiceUnavailable, "Failed to clear data")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeIngestError(w http.ResponseWriter, err error) {
	if se, ok := normalize.AsSchemaError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  se.Error(),
			"kind":   se.Kind,
			"fields": se.Fields,
		})
		return
	}
	if store.IsStorageError(err) {
		writeError(w, http.StatusServiceUnavailable, "Storage unavailable")
		return
	}
	if ingest.IsCanceled(err) {
		writeError(w, http.StatusServiceUnavailable, "Request canceled")
		return
	}
	log.Error().Err(err).Msg("Ingestion failed")
	writeError(w, http.StatusInternalServerError, "Ingestion failed")
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
