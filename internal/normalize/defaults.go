package normalize

import (
	"fmt"
	"strings"
)

// Envelope key under which the analysis service wraps the JSON-encoded report.
const EnvelopeKey = "final"

// Top-level sections of the canonical payload.
const (
	SectionSummary         = "analysis_summary"
	SectionCriticalGaps    = "critical_gaps"
	SectionRecommendations = "recommendations"
	SectionInconsistencies = "inconsistencies"
	SectionCompliantItems  = "compliant_items"
	SectionActionPlan      = "action_plan"
	SectionFinalAssessment = "final_assessment"
	SectionDashboard       = "dashboard_metrics"
)

// RequiredSections must be present (and non-null) in every canonical payload.
var RequiredSections = []string{SectionSummary, SectionCriticalGaps, SectionFinalAssessment}

const (
	DefaultCompany       = "Unknown Company"
	DefaultDocumentType  = "Unknown Document"
	DefaultOverallStatus = "Pending"
	DefaultUnknown       = "Unknown"
	DefaultNotSpecified  = "Not specified"
	DefaultArticle       = "Unknown Article"
	DefaultConfidence    = "0%"
	DefaultRate          = "0%"
	DefaultReviewTime    = "0 hrs"
	DateLayout           = "2006-01-02"
)

// fieldRule maps one canonical key to its default. A default containing %d is
// formatted with the item's 1-based position.
type fieldRule struct {
	key string
	def string
}

type fieldTable []fieldRule

var (
	gapRules = fieldTable{
		{"gap_type", "Gap %d"},
		{"severity", DefaultUnknown},
		{"qfc_article", DefaultArticle},
		{"document_states", "Unknown State"},
		{"qfc_requires", "Unknown Requirement"},
		{"immediate_action", "No action specified"},
		{"legal_risk", DefaultUnknown},
	}
	recommendationRules = fieldTable{
		{"area", "Recommendation %d"},
		{"priority", DefaultUnknown},
		{"current_practice", DefaultNotSpecified},
		{"recommended_change", DefaultNotSpecified},
		{"business_benefit", DefaultNotSpecified},
		{"implementation_effort", DefaultUnknown},
	}
	inconsistencyRules = fieldTable{
		{"conflict_area", "Inconsistency %d"},
		{"operational_risk", DefaultNotSpecified},
		{"recommended_resolution", DefaultNotSpecified},
		{"priority", DefaultUnknown},
	}
	compliantRules = fieldTable{
		{"compliance_area", "Compliant Area %d"},
		{"qfc_article", DefaultArticle},
		{"evidence", DefaultNotSpecified},
		{"strength", DefaultNotSpecified},
	}
	assessmentRules = fieldTable{
		{"overall_compliance_status", DefaultUnknown},
		{"confidence_score", DefaultConfidence},
		{"risk_level", DefaultUnknown},
		{"next_review_date", ""},
		{"executive_summary", ""},
	}
	dashboardRules = fieldTable{
		{"compliance_rate", DefaultRate},
		{"avg_review_time", DefaultReviewTime},
	}

	sectionDescriptions = map[string]string{
		SectionCriticalGaps:    "Critical compliance issues",
		SectionRecommendations: "Best practice improvements suggested",
		SectionInconsistencies: "Internal document conflicts found",
		SectionCompliantItems:  "Areas meeting QFC standards",
	}
)

// fill resolves every rule of t against obj. obj may be nil.
func (t fieldTable) fill(obj map[string]any, position int) map[string]string {
	out := make(map[string]string, len(t))
	for _, r := range t {
		if v, ok := text(obj[r.key]); ok {
			out[r.key] = v
			continue
		}
		def := r.def
		if strings.Contains(def, "%d") {
			def = fmt.Sprintf(def, position)
		}
		out[r.key] = def
	}
	return out
}
