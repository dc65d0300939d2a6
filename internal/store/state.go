package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/qfcreview/reviewdesk/internal/database"
	"github.com/qfcreview/reviewdesk/internal/models"
)

// Persisted keys. Each holds one JSON document.
const (
	KeyResponses   = "qfc_api_responses"
	KeyDashboard   = "qfc_dashboard_data"
	KeyReviews     = "qfc_reviews_data"
	KeyRegulations = "qfc_regulations_data"
	KeyAuditTrail  = "qfc_audit_trail"
)

var allKeys = []string{KeyResponses, KeyDashboard, KeyReviews, KeyRegulations, KeyAuditTrail}

// state is the decoded content of the persisted keys. Mutations build a new
// state in memory and commit it in one batch.
type state struct {
	responses   []models.StoredResponse
	dashboard   *models.DashboardSnapshot
	reviews     models.ReviewList
	regulations models.RegulationIndex
	audit       []models.AuditEntry
}

// decodeState decodes the given values. Missing keys decode to empty values.
func decodeState(values map[string][]byte) (*state, error) {
	st := &state{}
	targets := map[string]any{
		KeyResponses:   &st.responses,
		KeyDashboard:   &st.dashboard,
		KeyReviews:     &st.reviews,
		KeyRegulations: &st.regulations,
		KeyAuditTrail:  &st.audit,
	}
	for key, data := range values {
		target, ok := targets[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(data, target); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	return st, nil
}

// encode serializes the given keys into a batch.
func (st *state) encode(keys ...string) (database.Batch, error) {
	batch := make(database.Batch, len(keys))
	for _, key := range keys {
		var v any
		switch key {
		case KeyResponses:
			v = nonNil(st.responses)
		case KeyDashboard:
			v = st.dashboard
		case KeyReviews:
			st.reviews.Reviews = nonNil(st.reviews.Reviews)
			v = st.reviews
		case KeyRegulations:
			if st.regulations.Articles == nil {
				st.regulations.Articles = map[string][]models.Violation{}
			}
			st.regulations.Violations = nonNil(st.regulations.Violations)
			v = st.regulations
		case KeyAuditTrail:
			v = nonNil(st.audit)
		default:
			return nil, fmt.Errorf("unknown key %s", key)
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		batch[key] = data
	}
	return batch, nil
}

// appendAudit adds e and evicts the oldest entries beyond limit.
func (st *state) appendAudit(e models.AuditEntry, limit int) {
	st.audit = append(st.audit, e)
	if limit > 0 && len(st.audit) > limit {
		st.audit = append([]models.AuditEntry(nil), st.audit[len(st.audit)-limit:]...)
	}
}

func (st *state) findDedupe(key string) (string, bool) {
	for _, r := range st.responses {
		if r.Metadata.DedupeKey == key {
			return r.ID, true
		}
	}
	return "", false
}

// indexViolations appends one violation per gap of r and regroups by article.
func (st *state) indexViolations(r *models.AnalysisReport, now time.Time, newID func() string) {
	idx := &st.regulations
	if idx.Articles == nil {
		idx.Articles = map[string][]models.Violation{}
	}
	for _, gap := range r.CriticalGaps.Items {
		v := models.Violation{
			ID:        newID(),
			ReportID:  r.ID,
			Gap:       gap,
			Timestamp: now,
		}
		idx.Violations = append(idx.Violations, v)
		idx.Articles[gap.QFCArticle] = append(idx.Articles[gap.QFCArticle], v)
	}
	idx.ActionPlan = r.ActionPlan
	idx.CriticalGapsCount = len(idx.Violations)
	idx.LastUpdated = now
}

func reviewEntry(r *models.AnalysisReport, meta models.Metadata) models.ReviewEntry {
	return models.ReviewEntry{
		ID:                   r.ID,
		Timestamp:            r.ReceivedAt,
		Company:              r.Summary.CompanyName,
		DocumentType:         r.Summary.DocumentType,
		Status:               r.FinalAssessment.OverallComplianceStatus,
		CriticalCount:        r.CriticalGaps.Count,
		RecommendationsCount: r.Recommendations.Count,
		InconsistenciesCount: r.Inconsistencies.Count,
		CompliantAreasCount:  r.CompliantItems.Count,
		ConfidenceScore:      r.FinalAssessment.ConfidenceScore,
		RiskLevel:            r.FinalAssessment.RiskLevel,
		Metadata:             meta,
		Report:               *r,
	}
}

func dashboardSnapshot(r *models.AnalysisReport, now time.Time) *models.DashboardSnapshot {
	return &models.DashboardSnapshot{
		ReportID:         r.ID,
		ComplianceStatus: r.FinalAssessment.OverallComplianceStatus,
		ComplianceRate:   r.DashboardMetrics.ComplianceRate,
		CriticalIssues:   r.DashboardMetrics.TotalCriticalGaps,
		ReviewsThisMonth: r.DashboardMetrics.ReviewsThisMonth,
		AvgReviewTime:    r.DashboardMetrics.AvgReviewTime,
		GapsFound:        r.DashboardMetrics.GapsFound,
		ConfidenceScore:  r.FinalAssessment.ConfidenceScore,
		RiskLevel:        r.FinalAssessment.RiskLevel,
		NextReviewDate:   r.FinalAssessment.NextReviewDate,
		ExecutiveSummary: r.FinalAssessment.ExecutiveSummary,
		DocumentType:     r.Summary.DocumentType,
		CompanyName:      r.Summary.CompanyName,
		AnalysisDate:     r.Summary.AnalysisDate,
		OverallStatus:    r.Summary.OverallStatus,
		MustFixItems:     nonNil(r.ActionPlan.ImmediateActions),
		LastUpdated:      now,
	}
}

// rawJSON returns raw when it is valid JSON and otherwise stores it as a
// JSON string so the log stays decodable.
func rawJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return append(json.RawMessage(nil), raw...)
	}
	b, _ := json.Marshal(string(raw))
	return b
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
