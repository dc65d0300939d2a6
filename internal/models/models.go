// Package models defines the core data structures used throughout the application.
package models

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// AnalysisReport is the canonical form of one document's compliance analysis.
// Every field is populated after normalization; list fields are never nil.
type AnalysisReport struct {
	ID               string                `json:"id"`
	ReceivedAt       time.Time             `json:"received_at"`
	Summary          AnalysisSummary       `json:"analysis_summary"`
	CriticalGaps     GapSection            `json:"critical_gaps"`
	Recommendations  RecommendationSection `json:"recommendations"`
	Inconsistencies  InconsistencySection  `json:"inconsistencies"`
	CompliantItems   CompliantSection      `json:"compliant_items"`
	ActionPlan       ActionPlan            `json:"action_plan"`
	FinalAssessment  FinalAssessment       `json:"final_assessment"`
	DashboardMetrics DashboardMetrics      `json:"dashboard_metrics"`
}

// AnalysisSummary holds the headline strings of a report.
type AnalysisSummary struct {
	CompanyName   string `json:"company_name"`
	DocumentType  string `json:"document_type"`
	AnalysisDate  string `json:"analysis_date"`
	OverallStatus string `json:"overall_status"`
}

// Gap is a single compliance violation tied to a regulatory article.
type Gap struct {
	GapType         string `json:"gap_type"`
	Severity        string `json:"severity"`
	QFCArticle      string `json:"qfc_article"`
	DocumentState   string `json:"document_states"`
	Requirement     string `json:"qfc_requires"`
	ImmediateAction string `json:"immediate_action"`
	LegalRisk       string `json:"legal_risk"`
}

// GapSection is the critical-gaps section of a report.
type GapSection struct {
	Count       int    `json:"count"`
	Description string `json:"description"`
	Items       []Gap  `json:"items"`
}

// Recommendation is a best-practice improvement.
type Recommendation struct {
	Area                 string `json:"area"`
	Priority             string `json:"priority"`
	CurrentPractice      string `json:"current_practice"`
	RecommendedChange    string `json:"recommended_change"`
	BusinessBenefit      string `json:"business_benefit"`
	ImplementationEffort string `json:"implementation_effort"`
}

// RecommendationSection is the recommendations section of a report.
type RecommendationSection struct {
	Count       int              `json:"count"`
	Description string           `json:"description"`
	Items       []Recommendation `json:"items"`
}

// Inconsistency is an internal conflict between statements of the document.
type Inconsistency struct {
	ConflictArea          string   `json:"conflict_area"`
	ConflictingStatements []string `json:"conflicting_statements"`
	OperationalRisk       string   `json:"operational_risk"`
	RecommendedResolution string   `json:"recommended_resolution"`
	Priority              string   `json:"priority"`
}

// InconsistencySection is the inconsistencies section of a report.
type InconsistencySection struct {
	Count       int             `json:"count"`
	Description string          `json:"description"`
	Items       []Inconsistency `json:"items"`
}

// CompliantItem is an area found to meet the regulation.
type CompliantItem struct {
	ComplianceArea string `json:"compliance_area"`
	QFCArticle     string `json:"qfc_article"`
	Evidence       string `json:"evidence"`
	Strength       string `json:"strength"`
}

// CompliantSection is the compliant-items section of a report.
type CompliantSection struct {
	Count       int             `json:"count"`
	Description string          `json:"description"`
	Items       []CompliantItem `json:"items"`
}

// ActionPlan groups remediation steps by horizon.
type ActionPlan struct {
	ImmediateActions      []string `json:"immediate_actions"`
	ShortTermImprovements []string `json:"short_term_improvements"`
	LongTermEnhancements  []string `json:"long_term_enhancements"`
}

// FinalAssessment is the overall verdict of the analysis.
type FinalAssessment struct {
	OverallComplianceStatus string `json:"overall_compliance_status"`
	ConfidenceScore         string `json:"confidence_score"`
	RiskLevel               string `json:"risk_level"`
	NextReviewDate          string `json:"next_review_date"`
	ExecutiveSummary        string `json:"executive_summary"`
}

// DashboardMetrics is the counter snapshot stored with each report.
// The Total* counters are always recomputed from the item lists; the other
// figures are display values passed through from the analysis service.
type DashboardMetrics struct {
	ReviewsThisMonth     int    `json:"reviews_this_month"`
	ComplianceRate       string `json:"compliance_rate"`
	GapsFound            int    `json:"gaps_found"`
	AvgReviewTime        string `json:"avg_review_time"`
	TotalCriticalGaps    int    `json:"total_critical_gaps"`
	TotalRecommendations int    `json:"total_recommendations"`
	TotalInconsistencies int    `json:"total_inconsistencies"`
	TotalCompliantAreas  int    `json:"total_compliant_areas"`
}

// Metadata is caller-supplied context for one ingestion.
type Metadata struct {
	Company      string `json:"company,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
	FileName     string `json:"file_name,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
	Source       string `json:"source,omitempty"`
	Version      string `json:"version,omitempty"`
	DedupeKey    string `json:"dedupe_key,omitempty"`
}

// StoredResponse is one entry of the raw response log.
type StoredResponse struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Metadata  Metadata        `json:"metadata"`
}

// ReviewEntry is the review-list projection of a stored report.
type ReviewEntry struct {
	ID                   string         `json:"id"`
	Timestamp            time.Time      `json:"timestamp"`
	Company              string         `json:"company"`
	DocumentType         string         `json:"document_type"`
	Status               string         `json:"status"`
	CriticalCount        int            `json:"critical_count"`
	RecommendationsCount int            `json:"recommendations_count"`
	InconsistenciesCount int            `json:"inconsistencies_count"`
	CompliantAreasCount  int            `json:"compliant_areas_count"`
	ConfidenceScore      string         `json:"confidence_score"`
	RiskLevel            string         `json:"risk_level"`
	Metadata             Metadata       `json:"metadata"`
	Report               AnalysisReport `json:"report"`
}

// ReviewList is the persisted form of the review list.
type ReviewList struct {
	Reviews     []ReviewEntry `json:"reviews"`
	LastUpdated time.Time     `json:"last_updated"`
}

// DashboardSnapshot holds the headline figures of the most recent report.
type DashboardSnapshot struct {
	ReportID         string    `json:"report_id"`
	ComplianceStatus string    `json:"compliance_status"`
	ComplianceRate   string    `json:"compliance_rate"`
	CriticalIssues   int       `json:"critical_issues"`
	ReviewsThisMonth int       `json:"reviews_this_month"`
	AvgReviewTime    string    `json:"avg_review_time"`
	GapsFound        int       `json:"gaps_found"`
	ConfidenceScore  string    `json:"confidence_score"`
	RiskLevel        string    `json:"risk_level"`
	NextReviewDate   string    `json:"next_review_date"`
	ExecutiveSummary string    `json:"executive_summary"`
	DocumentType     string    `json:"document_type"`
	CompanyName      string    `json:"company_name"`
	AnalysisDate     string    `json:"analysis_date"`
	OverallStatus    string    `json:"overall_status"`
	MustFixItems     []string  `json:"must_fix_items"`
	LastUpdated      time.Time `json:"last_updated"`
}

// Violation is a gap as indexed by the regulation view.
type Violation struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"report_id"`
	Gap       Gap       `json:"gap"`
	Timestamp time.Time `json:"timestamp"`
}

// RegulationIndex groups every stored gap by regulatory article.
type RegulationIndex struct {
	Articles          map[string][]Violation `json:"articles"`
	Violations        []Violation            `json:"violations"`
	ActionPlan        ActionPlan             `json:"action_plan"`
	CriticalGapsCount int                    `json:"critical_gaps_count"`
	LastUpdated       time.Time              `json:"last_updated"`
}

// AuditAction names a mutating store operation.
type AuditAction string

const (
	AuditStored              AuditAction = "stored"
	AuditDuplicateSuppressed AuditAction = "duplicate_suppressed"
	AuditIngestFailed        AuditAction = "ingest_failed"
	AuditAllDataCleared      AuditAction = "all_data_cleared"
)

// AuditEntry is one record of the append-only audit trail.
type AuditEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Action    AuditAction     `json:"action"`
	RelatedID string          `json:"related_id,omitempty"`
	Detail    string          `json:"detail"`
	Metadata  *Metadata       `json:"metadata,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// FailureRecord describes an ingestion that did not complete.
type FailureRecord struct {
	Stage     string          `json:"stage"`
	Error     string          `json:"error"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Metadata  Metadata        `json:"metadata"`
	Timestamp time.Time       `json:"timestamp"`
}

// GapTypeCount is a ranked gap type.
type GapTypeCount struct {
	GapType string `json:"gap_type"`
	Count   int    `json:"count"`
}

// ArticleCount is a ranked regulatory article.
type ArticleCount struct {
	Article string `json:"article"`
	Count   int    `json:"count"`
}

// AggregateMetrics are cross-report statistics for the analytics views.
type AggregateMetrics struct {
	TotalReports             int            `json:"total_reports"`
	ComplianceRate           float64        `json:"compliance_rate"`
	AvgCriticalGapsPerReport float64        `json:"avg_critical_gaps_per_report"`
	TotalCriticalGaps        int            `json:"total_critical_gaps"`
	TopGapTypes              []GapTypeCount `json:"top_gap_types"`
	TopArticles              []ArticleCount `json:"top_articles"`
	RiskDistribution         map[string]int `json:"risk_distribution"`
	ComplianceDistribution   map[string]int `json:"compliance_distribution"`
}

// Clone returns a copy that shares no maps or slices with m.
func (m AggregateMetrics) Clone() AggregateMetrics {
	m.TopGapTypes = slices.Clone(m.TopGapTypes)
	m.TopArticles = slices.Clone(m.TopArticles)
	m.RiskDistribution = maps.Clone(m.RiskDistribution)
	m.ComplianceDistribution = maps.Clone(m.ComplianceDistribution)
	return m
}
