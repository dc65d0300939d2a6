// Package store keeps every ingested report together with its derived
// projections (dashboard snapshot, review list, regulation index) and the
// capped audit trail.
//
// Each mutation loads the current state, builds the complete next state in
// memory and commits all affected keys in one backend batch, so a failed
// write leaves the previously committed state untouched.
package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/qfcreview/reviewdesk/internal/clock"
	"github.com/qfcreview/reviewdesk/internal/database"
	"github.com/qfcreview/reviewdesk/internal/models"
)

// DefaultAuditLimit is the number of audit entries kept when Options leaves it unset.
const DefaultAuditLimit = 1000

const (
	defaultSource  = "new_review_upload_api"
	defaultVersion = "1.0"
)

// Options configures a Store.
type Options struct {
	AuditLimit int
	Clock      clock.Clock
}

// PutResult is the outcome of Put.
type PutResult struct {
	ID        string
	Duplicate bool
}

// Store is the response store.
type Store struct {
	backend    database.Backend
	clock      clock.Clock
	newID      func() string
	auditLimit int

	mu      sync.RWMutex
	version atomic.Uint64
}

// New creates a Store on backend.
func New(backend database.Backend, opts Options) *Store {
	if opts.AuditLimit <= 0 {
		opts.AuditLimit = DefaultAuditLimit
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	return &Store{
		backend:    backend,
		clock:      opts.Clock,
		newID:      func() string { return uuid.New().String() },
		auditLimit: opts.AuditLimit,
	}
}

// Version increases on every committed mutation.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

func (s *Store) load(ctx context.Context, op string, keys ...string) (*state, error) {
	values, err := s.backend.Get(ctx, keys...)
	if err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	st, err := decodeState(values)
	if err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}
	return st, nil
}

func (s *Store) commit(ctx context.Context, op string, st *state, keys ...string) error {
	batch, err := st.encode(keys...)
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	if err := s.backend.Commit(ctx, batch); err != nil {
		return &StorageError{Op: op, Err: err}
	}
	s.version.Add(1)
	return nil
}

// Put persists report and updates every projection in one commit. When
// meta.DedupeKey matches an earlier report, the existing id is returned and
// only a duplicate_suppressed audit entry is written.
func (s *Store) Put(ctx context.Context, report *models.AnalysisReport, meta models.Metadata, raw []byte) (PutResult, error) {
	if report == nil {
		return PutResult{}, errors.New("store: nil report")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx, "put", allKeys...)
	if err != nil {
		return PutResult{}, err
	}
	now := s.clock.Now().UTC()

	if meta.DedupeKey != "" {
		if id, ok := st.findDedupe(meta.DedupeKey); ok {
			st.appendAudit(models.AuditEntry{
				ID:        s.newID(),
				Timestamp: now,
				Action:    models.AuditDuplicateSuppressed,
				RelatedID: id,
				Detail:    "identical submission already stored",
				Metadata:  &meta,
			}, s.auditLimit)
			if err := s.commit(ctx, "put", st, KeyAuditTrail); err != nil {
				return PutResult{}, err
			}
			log.Info().Str("id", id).Msg("Duplicate submission suppressed")
			return PutResult{ID: id, Duplicate: true}, nil
		}
	}

	if meta.Source == "" {
		meta.Source = defaultSource
	}
	if meta.Version == "" {
		meta.Version = defaultVersion
	}

	stored := *report
	stored.ID = s.newID()
	stored.ReceivedAt = now

	st.responses = append(st.responses, models.StoredResponse{
		ID:        stored.ID,
		Timestamp: now,
		Data:      rawJSON(raw),
		Metadata:  meta,
	})
	st.reviews.Reviews = append(st.reviews.Reviews, reviewEntry(&stored, meta))
	st.reviews.LastUpdated = now
	st.indexViolations(&stored, now, s.newID)
	st.dashboard = dashboardSnapshot(&stored, now)
	st.appendAudit(models.AuditEntry{
		ID:        s.newID(),
		Timestamp: now,
		Action:    models.AuditStored,
		RelatedID: stored.ID,
		Detail:    stored.Summary.CompanyName + " / " + stored.Summary.DocumentType,
		Metadata:  &meta,
	}, s.auditLimit)

	if err := s.commit(ctx, "put", st, allKeys...); err != nil {
		return PutResult{}, err
	}
	return PutResult{ID: stored.ID}, nil
}

// Get returns the report with the given id.
func (s *Store) Get(ctx context.Context, id string) (*models.AnalysisReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.load(ctx, "get", KeyReviews)
	if err != nil {
		return nil, err
	}
	for i := range st.reviews.Reviews {
		if st.reviews.Reviews[i].ID == id {
			return &st.reviews.Reviews[i].Report, nil
		}
	}
	return nil, ErrNotFound
}

// ListReviews returns review entries matching f, most recent first.
func (s *Store) ListReviews(ctx context.Context, f Filter) ([]models.ReviewEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.load(ctx, "list", KeyReviews)
	if err != nil {
		return nil, err
	}
	return f.apply(st.reviews.Reviews), nil
}

// List returns reports matching f, most recent first.
func (s *Store) List(ctx context.Context, f Filter) ([]models.AnalysisReport, error) {
	entries, err := s.ListReviews(ctx, f)
	if err != nil {
		return nil, err
	}
	reports := make([]models.AnalysisReport, len(entries))
	for i, e := range entries {
		reports[i] = e.Report
	}
	return reports, nil
}

// Latest returns the most recently received report, or nil when the store is empty.
func (s *Store) Latest(ctx context.Context) (*models.AnalysisReport, error) {
	reports, err := s.List(ctx, Filter{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	return &reports[0], nil
}

// Responses returns the raw response log in arrival order.
func (s *Store) Responses(ctx context.Context) ([]models.StoredResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.load(ctx, "responses", KeyResponses)
	if err != nil {
		return nil, err
	}
	return nonNil(st.responses), nil
}

// Response returns the raw response stored under id.
func (s *Store) Response(ctx context.Context, id string) (*models.StoredResponse, error) {
	responses, err := s.Responses(ctx)
	if err != nil {
		return nil, err
	}
	for i := range responses {
		if responses[i].ID == id {
			return &responses[i], nil
		}
	}
	return nil, ErrNotFound
}

// Dashboard returns the snapshot of the latest report, or nil when empty.
func (s *Store) Dashboard(ctx context.Context) (*models.DashboardSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.load(ctx, "dashboard", KeyDashboard)
	if err != nil {
		return nil, err
	}
	return st.dashboard, nil
}

// Regulations returns the regulation index.
func (s *Store) Regulations(ctx context.Context) (models.RegulationIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.load(ctx, "regulations", KeyRegulations)
	if err != nil {
		return models.RegulationIndex{}, err
	}
	idx := st.regulations
	if idx.Articles == nil {
		idx.Articles = map[string][]models.Violation{}
	}
	idx.Violations = nonNil(idx.Violations)
	return idx, nil
}

// RegulationsByArticle groups every stored gap by its article.
func (s *Store) RegulationsByArticle(ctx context.Context) (map[string][]models.Gap, error) {
	idx, err := s.Regulations(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]models.Gap, len(idx.Articles))
	for article, violations := range idx.Articles {
		gaps := make([]models.Gap, len(violations))
		for i, v := range violations {
			gaps[i] = v.Gap
		}
		out[article] = gaps
	}
	return out, nil
}

// AuditTrail returns the audit entries, oldest first.
func (s *Store) AuditTrail(ctx context.Context) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.load(ctx, "audit", KeyAuditTrail)
	if err != nil {
		return nil, err
	}
	return nonNil(st.audit), nil
}

// RecordFailure appends an ingest_failed audit entry carrying the payload,
// error message and metadata of a failed ingestion.
func (s *Store) RecordFailure(ctx context.Context, rec models.FailureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load(ctx, "record_failure", KeyAuditTrail)
	if err != nil {
		return err
	}
	meta := rec.Metadata
	st.appendAudit(models.AuditEntry{
		ID:        s.newID(),
		Timestamp: s.clock.Now().UTC(),
		Action:    models.AuditIngestFailed,
		Detail:    rec.Stage + ": " + rec.Error,
		Metadata:  &meta,
		Payload:   rawJSON(rec.Payload),
	}, s.auditLimit)
	return s.commit(ctx, "record_failure", st, KeyAuditTrail)
}

// ClearAll deletes every report and projection in one commit. The audit
// trail is reset to a single all_data_cleared entry.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &state{}
	st.appendAudit(models.AuditEntry{
		ID:        s.newID(),
		Timestamp: s.clock.Now().UTC(),
		Action:    models.AuditAllDataCleared,
		Detail:    "all stored data cleared",
	}, s.auditLimit)

	batch, err := st.encode(KeyAuditTrail)
	if err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	for _, key := range allKeys {
		if key != KeyAuditTrail {
			batch[key] = nil
		}
	}
	if err := s.backend.Commit(ctx, batch); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	s.version.Add(1)
	log.Info().Msg("All stored data cleared")
	return nil
}
