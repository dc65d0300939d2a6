// Package dashboard is the read/write surface used by the dashboard views.
// It joins the ingestion pipeline, the response store and the aggregator.
package dashboard

import (
	"context"
	"sync"

	"github.com/qfcreview/reviewdesk/internal/aggregate"
	"github.com/qfcreview/reviewdesk/internal/ingest"
	"github.com/qfcreview/reviewdesk/internal/models"
	"github.com/qfcreview/reviewdesk/internal/store"
)

// Service exposes ingestion and every projection of the stored reports.
type Service struct {
	pipeline *ingest.Pipeline
	store    *store.Store

	mu           sync.Mutex
	cached       *models.AggregateMetrics
	cacheVersion uint64
}

// NewService creates a Service.
func NewService(pipeline *ingest.Pipeline, s *store.Store) *Service {
	return &Service{pipeline: pipeline, store: s}
}

// Ingest runs raw through the ingestion pipeline.
func (s *Service) Ingest(ctx context.Context, raw []byte, meta models.Metadata) (*ingest.Result, error) {
	return s.pipeline.Ingest(ctx, raw, meta)
}

// Response returns the raw response a report was built from.
func (s *Service) Response(ctx context.Context, id string) (*models.StoredResponse, error) {
	return s.store.Response(ctx, id)
}

// Latest returns the most recent report, or nil when nothing is stored.
func (s *Service) Latest(ctx context.Context) (*models.AnalysisReport, error) {
	return s.store.Latest(ctx)
}

// Get returns one report.
func (s *Service) Get(ctx context.Context, id string) (*models.AnalysisReport, error) {
	return s.store.Get(ctx, id)
}

// ListReviews returns review entries, most recent first.
func (s *Service) ListReviews(ctx context.Context, f store.Filter) ([]models.ReviewEntry, error) {
	return s.store.ListReviews(ctx, f)
}

// Dashboard returns the snapshot of the latest report.
func (s *Service) Dashboard(ctx context.Context) (*models.DashboardSnapshot, error) {
	return s.store.Dashboard(ctx)
}

// Regulations returns the full regulation index.
func (s *Service) Regulations(ctx context.Context) (models.RegulationIndex, error) {
	return s.store.Regulations(ctx)
}

// RegulationsByArticle groups every stored gap by article.
func (s *Service) RegulationsByArticle(ctx context.Context) (map[string][]models.Gap, error) {
	return s.store.RegulationsByArticle(ctx)
}

// AuditTrail returns up to limit of the most recent audit entries, oldest
// first. A non-positive limit returns all of them.
func (s *Service) AuditTrail(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	entries, err := s.store.AuditTrail(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// AggregateMetrics summarizes every stored report. The result is cached
// until the store changes.
func (s *Service) AggregateMetrics(ctx context.Context) (models.AggregateMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := s.store.Version()
	if s.cached != nil && s.cacheVersion == version {
		return s.cached.Clone(), nil
	}

	reports, err := s.store.List(ctx, store.Filter{})
	if err != nil {
		return models.AggregateMetrics{}, err
	}
	m := aggregate.Summarize(reports)
	s.cached = &m
	s.cacheVersion = version
	return m.Clone(), nil
}

// ClearAllData removes every stored report and projection.
func (s *Service) ClearAllData(ctx context.Context) error {
	return s.store.ClearAll(ctx)
}
