package normalize

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/qfcreview/reviewdesk/internal/clock"
	"github.com/qfcreview/reviewdesk/internal/models"
)

const fullReport = `{
  "analysis_summary": {
    "document_type": "Employment Contract & HR Manual",
    "company_name": "Test Company",
    "analysis_date": "2024-06-13",
    "overall_status": "Completed"
  },
  "critical_gaps": {
    "count": 5,
    "description": "Mandatory compliance issues that require immediate attention",
    "items": [
      {
        "gap_type": "Probation Period Gap",
        "severity": "Critical",
        "qfc_article": "Article 18",
        "document_states": "The first six (6) months of employment will be considered a probationary period.",
        "qfc_requires": "A probationary period must not exceed 3 months from the date employment commences.",
        "immediate_action": "Amend the probationary period to a maximum of 3 months.",
        "legal_risk": "High"
      },
      {
        "gap_type": "Annual Leave Entitlement Gap",
        "severity": "Critical",
        "qfc_article": "Article 33",
        "document_states": "Employees are entitled to 15 working days of annual leave per year.",
        "qfc_requires": "Employees must receive at least 20 working days of annual leave per year.",
        "immediate_action": "Increase annual leave entitlement to at least 20 working days per year.",
        "legal_risk": "High"
      }
    ]
  },
  "recommendations": {
    "count": 4,
    "items": [
      {
        "area": "Contract Requirements",
        "priority": "High",
        "current_practice": "Contract refers to HR Manual for certain terms.",
        "recommended_change": "Include all legally required minimum entitlements directly in the contract.",
        "business_benefit": "Reduces ambiguity.",
        "implementation_effort": "Easy"
      }
    ]
  },
  "inconsistencies": {
    "count": 3,
    "items": [
      {
        "conflict_area": "Reference to HR Manual vs. Contract Minimums",
        "conflicting_statements": ["Sick leave provisions are detailed in the HR Manual.", "", "Contract does not specify statutory minimum sick leave entitlements."],
        "operational_risk": "Employees may be unaware of legal minimums.",
        "recommended_resolution": "Summarize all statutory minimums in the contract.",
        "priority": "High"
      }
    ]
  },
  "compliant_items": {
    "count": 2,
    "items": [
      {
        "compliance_area": "Salary Payment Frequency",
        "qfc_article": "Article 26",
        "evidence": "Salary is paid monthly.",
        "strength": "Regular compensation."
      }
    ]
  },
  "dashboard_metrics": {
    "reviews_this_month": 23,
    "compliance_rate": "89%",
    "gaps_found": "156",
    "avg_review_time": "2.3 hrs",
    "total_critical_gaps": 5
  },
  "action_plan": {
    "immediate_actions": ["Reduce probation period to a maximum of 3 months."],
    "short_term_improvements": ["Add an overtime clause."],
    "long_term_enhancements": ["Implement structured performance management procedures."]
  },
  "final_assessment": {
    "overall_compliance_status": "Non-Compliant",
    "confidence_score": "96%",
    "risk_level": "High",
    "next_review_date": "2024-09-13",
    "executive_summary": "Several critical non-compliance issues."
  }
}`

func newTestNormalizer() *Normalizer {
	return New(&clock.Stepping{T: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)})
}

func envelope(t *testing.T, inner string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]string{EnvelopeKey: inner})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return b
}

func assertCountsMatch(t *testing.T, r *models.AnalysisReport) {
	t.Helper()
	if r.CriticalGaps.Count != len(r.CriticalGaps.Items) {
		t.Errorf("critical gaps count %d, items %d", r.CriticalGaps.Count, len(r.CriticalGaps.Items))
	}
	if r.Recommendations.Count != len(r.Recommendations.Items) {
		t.Errorf("recommendations count %d, items %d", r.Recommendations.Count, len(r.Recommendations.Items))
	}
	if r.Inconsistencies.Count != len(r.Inconsistencies.Items) {
		t.Errorf("inconsistencies count %d, items %d", r.Inconsistencies.Count, len(r.Inconsistencies.Items))
	}
	if r.CompliantItems.Count != len(r.CompliantItems.Items) {
		t.Errorf("compliant count %d, items %d", r.CompliantItems.Count, len(r.CompliantItems.Items))
	}
	if r.DashboardMetrics.TotalCriticalGaps != len(r.CriticalGaps.Items) {
		t.Errorf("dashboard total critical gaps %d, items %d", r.DashboardMetrics.TotalCriticalGaps, len(r.CriticalGaps.Items))
	}
}

func assertNoNilLists(t *testing.T, r *models.AnalysisReport) {
	t.Helper()
	// Marshalled form must never contain null for a list.
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal report: %v", err)
	}
	if strings.Contains(string(b), "null") {
		t.Errorf("normalized report contains null: %s", b)
	}
	for _, inc := range r.Inconsistencies.Items {
		if inc.ConflictingStatements == nil {
			t.Error("conflicting statements is nil")
		}
	}
}

func TestNormalizeFullReport(t *testing.T) {
	n := newTestNormalizer()

	r, err := n.Normalize([]byte(fullReport), models.Metadata{})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	assertCountsMatch(t, r)
	assertNoNilLists(t, r)

	if r.CriticalGaps.Count != 2 {
		t.Errorf("Expected source count 5 to be recomputed to 2, got %d", r.CriticalGaps.Count)
	}
	if r.Summary.CompanyName != "Test Company" {
		t.Errorf("Expected company Test Company, got %s", r.Summary.CompanyName)
	}
	if r.FinalAssessment.OverallComplianceStatus != "Non-Compliant" {
		t.Errorf("Expected Non-Compliant, got %s", r.FinalAssessment.OverallComplianceStatus)
	}
	if got := r.CriticalGaps.Items[1].QFCArticle; got != "Article 33" {
		t.Errorf("Expected Article 33, got %s", got)
	}
	if r.DashboardMetrics.GapsFound != 156 {
		t.Errorf("Expected numeric string gaps_found to parse as 156, got %d", r.DashboardMetrics.GapsFound)
	}
	if r.DashboardMetrics.ComplianceRate != "89%" {
		t.Errorf("Expected compliance rate 89%%, got %s", r.DashboardMetrics.ComplianceRate)
	}
	if got := r.Inconsistencies.Items[0].ConflictingStatements; len(got) != 2 {
		t.Errorf("Expected blank statement dropped, got %v", got)
	}
	if r.ID != "" || !r.ReceivedAt.IsZero() {
		t.Error("Normalizer must not assign identity")
	}
}

func TestNormalizeEnvelope(t *testing.T) {
	n := newTestNormalizer()

	doc, err := n.Validate(envelope(t, fullReport))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !doc.Enveloped() {
		t.Error("Expected document to be marked enveloped")
	}

	r, err := n.Canonicalize(doc, models.Metadata{})
	if err != nil {
		t.Fatalf("Canonicalize failed: %v", err)
	}
	if r.Summary.DocumentType != "Employment Contract & HR Manual" {
		t.Errorf("Unexpected document type %q", r.Summary.DocumentType)
	}
}

func TestNormalizeEnvelopeVariants(t *testing.T) {
	n := newTestNormalizer()

	fenced := "```json\n" + fullReport + "\n```"
	objectEnvelope := `{"final": ` + fullReport + `}`
	doubleEncoded, _ := json.Marshal(fullReport)
	nullEnvelope := `{"final": null, ` + strings.TrimPrefix(strings.TrimSpace(fullReport), "{")

	tests := []struct {
		name  string
		input []byte
	}{
		{"code fenced envelope", envelope(t, fenced)},
		{"object envelope", []byte(objectEnvelope)},
		{"double encoded payload", doubleEncoded},
		{"null envelope reads outer object", []byte(nullEnvelope)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := n.Normalize(tt.input, models.Metadata{})
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if r.CriticalGaps.Count != 2 {
				t.Errorf("Expected 2 gaps, got %d", r.CriticalGaps.Count)
			}
		})
	}
}

func TestNormalizeSchemaErrors(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name   string
		input  []byte
		kind   ErrorKind
		fields []string
	}{
		{"not json", []byte(`{not json`), KindMalformedPayload, nil},
		{"array payload", []byte(`[1,2]`), KindMalformedPayload, nil},
		{"trailing data", []byte(`{} {}`), KindMalformedPayload, nil},
		{"envelope not json", []byte(`{"final": "this is not json"}`), KindMalformedEnvelope, []string{"final"}},
		{"envelope holds array", []byte(`{"final": "[1]"}`), KindMalformedEnvelope, []string{"final"}},
		{"envelope number", []byte(`{"final": 12}`), KindMalformedEnvelope, []string{"final"}},
		{
			"missing final assessment",
			[]byte(`{"analysis_summary": {}, "critical_gaps": {"items": []}}`),
			KindMissingRequiredField,
			[]string{"final_assessment"},
		},
		{
			"missing everything",
			[]byte(`{"recommendations": {}}`),
			KindMissingRequiredField,
			[]string{"analysis_summary", "critical_gaps", "final_assessment"},
		},
		{
			"null counts as missing",
			[]byte(`{"analysis_summary": null, "critical_gaps": {}, "final_assessment": {}}`),
			KindMissingRequiredField,
			[]string{"analysis_summary"},
		},
		{
			"required section wrong type",
			[]byte(`{"analysis_summary": "x", "critical_gaps": {}, "final_assessment": []}`),
			KindInvalidFieldType,
			[]string{"analysis_summary", "final_assessment"},
		},
		{
			"items wrong type",
			[]byte(`{"analysis_summary": {}, "critical_gaps": {"items": {}}, "final_assessment": {}, "recommendations": "none"}`),
			KindInvalidFieldType,
			[]string{"critical_gaps.items", "recommendations"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.input, models.Metadata{})
			if err == nil {
				t.Fatal("Expected error")
			}
			se, ok := AsSchemaError(err)
			if !ok {
				t.Fatalf("Expected SchemaError, got %T: %v", err, err)
			}
			if se.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, se.Kind)
			}
			if tt.fields != nil && strings.Join(se.Fields, ",") != strings.Join(tt.fields, ",") {
				t.Errorf("Expected fields %v, got %v", tt.fields, se.Fields)
			}
		})
	}
}

func TestNormalizeMinimalPayloadDefaults(t *testing.T) {
	n := newTestNormalizer()

	raw := `{"analysis_summary": {}, "critical_gaps": {"count": 99, "items": [{}, null, {"severity": 3}]}, "final_assessment": {}}`
	r, err := n.Normalize([]byte(raw), models.Metadata{})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	assertCountsMatch(t, r)
	assertNoNilLists(t, r)

	if r.CriticalGaps.Count != 3 {
		t.Errorf("Expected count 3, got %d", r.CriticalGaps.Count)
	}
	want := models.Gap{
		GapType:         "Gap 1",
		Severity:        "Unknown",
		QFCArticle:      "Unknown Article",
		DocumentState:   "Unknown State",
		Requirement:     "Unknown Requirement",
		ImmediateAction: "No action specified",
		LegalRisk:       "Unknown",
	}
	if r.CriticalGaps.Items[0] != want {
		t.Errorf("Unexpected defaults: %+v", r.CriticalGaps.Items[0])
	}
	if r.CriticalGaps.Items[1].GapType != "Gap 2" {
		t.Errorf("Expected positional default Gap 2, got %s", r.CriticalGaps.Items[1].GapType)
	}
	if r.CriticalGaps.Items[2].Severity != "3" {
		t.Errorf("Expected numeric severity rendered as text, got %s", r.CriticalGaps.Items[2].Severity)
	}

	if r.Summary.CompanyName != DefaultCompany {
		t.Errorf("Expected %s, got %s", DefaultCompany, r.Summary.CompanyName)
	}
	if r.Summary.DocumentType != DefaultDocumentType {
		t.Errorf("Expected %s, got %s", DefaultDocumentType, r.Summary.DocumentType)
	}
	if r.Summary.AnalysisDate != "2026-03-01" {
		t.Errorf("Expected clock date, got %s", r.Summary.AnalysisDate)
	}
	if r.Summary.OverallStatus != DefaultOverallStatus {
		t.Errorf("Expected %s, got %s", DefaultOverallStatus, r.Summary.OverallStatus)
	}
	if r.FinalAssessment.ConfidenceScore != "0%" || r.FinalAssessment.RiskLevel != "Unknown" {
		t.Errorf("Unexpected assessment defaults: %+v", r.FinalAssessment)
	}
	if r.CriticalGaps.Description != "Critical compliance issues" {
		t.Errorf("Unexpected description %q", r.CriticalGaps.Description)
	}
	if r.DashboardMetrics.AvgReviewTime != DefaultReviewTime {
		t.Errorf("Expected %s, got %s", DefaultReviewTime, r.DashboardMetrics.AvgReviewTime)
	}
}

func TestNormalizeDashboardCounts(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		name    string
		reviews string
		want    int
	}{
		{"integer", `23`, 23},
		{"numeric string", `"7"`, 7},
		{"fraction truncated", `4.9`, 4},
		{"negative", `-4`, 0},
		{"out of range float", `1e30`, 0},
		{"out of range integer", `9223372036854775807`, 0},
		{"not a number", `"many"`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"analysis_summary": {}, "critical_gaps": {}, "final_assessment": {}, ` +
				`"dashboard_metrics": {"reviews_this_month": ` + tt.reviews + `, "gaps_found": ` + tt.reviews + `}}`
			r, err := n.Normalize([]byte(raw), models.Metadata{})
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if r.DashboardMetrics.ReviewsThisMonth != tt.want || r.DashboardMetrics.GapsFound != tt.want {
				t.Errorf("Expected %d, got reviews=%d gaps=%d", tt.want,
					r.DashboardMetrics.ReviewsThisMonth, r.DashboardMetrics.GapsFound)
			}
		})
	}
}

func TestNormalizeMetadataHints(t *testing.T) {
	n := newTestNormalizer()

	raw := `{"analysis_summary": {"company_name": "  "}, "critical_gaps": {}, "final_assessment": {}}`
	r, err := n.Normalize([]byte(raw), models.Metadata{Company: "Hinted LLC", DocumentType: "HR Manual"})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if r.Summary.CompanyName != "Hinted LLC" {
		t.Errorf("Expected hint for blank company, got %s", r.Summary.CompanyName)
	}
	if r.Summary.DocumentType != "HR Manual" {
		t.Errorf("Expected hint document type, got %s", r.Summary.DocumentType)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := newTestNormalizer()

	a, err := n.Normalize([]byte(fullReport), models.Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := n.Normalize([]byte(fullReport), models.Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	if string(ja) != string(jb) {
		t.Error("Expected identical output for identical input")
	}
}

func TestSchemaErrorMessage(t *testing.T) {
	err := &SchemaError{Kind: KindMissingRequiredField, Fields: []string{"critical_gaps", "final_assessment"}}
	msg := err.Error()
	if !strings.Contains(msg, "missing_required_field") || !strings.Contains(msg, "critical_gaps, final_assessment") {
		t.Errorf("Unexpected message: %s", msg)
	}
}
