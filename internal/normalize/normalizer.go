// Package normalize turns raw analysis-service responses into canonical reports.
//
// Normalization runs in two phases so callers can observe them separately:
// Validate decodes the payload, unwraps the transport envelope and checks the
// required sections; Canonicalize transcodes legacy payloads and applies the
// default table. Every defaulted value comes from defaults.go.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/qfcreview/reviewdesk/internal/clock"
	"github.com/qfcreview/reviewdesk/internal/models"
)

var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// Document is a decoded and validated payload, ready for Canonicalize.
type Document struct {
	fields    map[string]any
	legacy    bool
	enveloped bool
}

// Legacy reports whether the payload uses the older flat response shape.
func (d *Document) Legacy() bool { return d.legacy }

// Enveloped reports whether the payload was wrapped under EnvelopeKey.
func (d *Document) Enveloped() bool { return d.enveloped }

// Normalizer converts raw payloads into models.AnalysisReport values.
type Normalizer struct {
	clock clock.Clock
}

// New creates a Normalizer. A nil clock uses the system clock.
func New(c clock.Clock) *Normalizer {
	if c == nil {
		c = clock.System{}
	}
	return &Normalizer{clock: c}
}

// Normalize validates and canonicalizes raw in one call. Metadata hints fill
// the company and document type when the payload omits them.
func (n *Normalizer) Normalize(raw []byte, meta models.Metadata) (*models.AnalysisReport, error) {
	doc, err := n.Validate(raw)
	if err != nil {
		return nil, err
	}
	return n.Canonicalize(doc, meta)
}

// Validate decodes raw, unwraps the envelope and checks required sections.
func (n *Normalizer) Validate(raw []byte) (*Document, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, &SchemaError{Kind: KindMalformedPayload, Err: err}
	}
	// A payload that is itself a JSON string was encoded twice.
	if s, ok := v.(string); ok {
		v, err = decodeJSON([]byte(s))
		if err != nil {
			return nil, &SchemaError{Kind: KindMalformedPayload, Err: fmt.Errorf("double-encoded payload: %w", err)}
		}
	}
	fields, ok := v.(map[string]any)
	if !ok {
		return nil, &SchemaError{Kind: KindMalformedPayload, Err: fmt.Errorf("expected JSON object, got %s", jsonKind(v))}
	}

	doc := &Document{fields: fields}
	if present(fields, EnvelopeKey) {
		inner, err := unwrapEnvelope(fields[EnvelopeKey])
		if err != nil {
			return nil, &SchemaError{Kind: KindMalformedEnvelope, Fields: []string{EnvelopeKey}, Err: err}
		}
		doc.fields = inner
		doc.enveloped = true
	}

	doc.legacy = isLegacy(doc.fields)
	required := RequiredSections
	if doc.legacy {
		required = legacyRequired
	}

	var missing []string
	for _, key := range required {
		if !present(doc.fields, key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Kind: KindMissingRequiredField, Fields: missing}
	}

	if !doc.legacy {
		var issues typeIssues
		for _, key := range RequiredSections {
			issues.object(doc.fields, key, key)
		}
		if len(issues) > 0 {
			return nil, &SchemaError{Kind: KindInvalidFieldType, Fields: issues, Err: errors.New("section must be an object")}
		}
	}
	return doc, nil
}

// Canonicalize builds the canonical report from a validated document. The
// returned report has no ID or ReceivedAt; those are assigned on storage.
func (n *Normalizer) Canonicalize(doc *Document, meta models.Metadata) (*models.AnalysisReport, error) {
	fields := doc.fields
	if doc.legacy {
		transcoded, err := transcodeLegacy(fields)
		if err != nil {
			return nil, err
		}
		fields = transcoded
	}

	var issues typeIssues
	report := &models.AnalysisReport{
		Summary:         n.summary(issues.object(fields, SectionSummary, SectionSummary), meta),
		CriticalGaps:    gapSection(&issues, fields),
		Recommendations: recommendationSection(&issues, fields),
		Inconsistencies: inconsistencySection(&issues, fields),
		CompliantItems:  compliantSection(&issues, fields),
		ActionPlan:      actionPlan(&issues, fields),
		FinalAssessment: finalAssessment(issues.object(fields, SectionFinalAssessment, SectionFinalAssessment)),
	}
	report.DashboardMetrics = dashboardMetrics(issues.object(fields, SectionDashboard, SectionDashboard), report)

	if len(issues) > 0 {
		return nil, &SchemaError{Kind: KindInvalidFieldType, Fields: issues}
	}
	return report, nil
}

func (n *Normalizer) summary(obj map[string]any, meta models.Metadata) models.AnalysisSummary {
	date, ok := text(obj["analysis_date"])
	if !ok {
		date = n.clock.Now().Format(DateLayout)
	}
	return models.AnalysisSummary{
		CompanyName:   firstText(obj["company_name"], meta.Company, DefaultCompany),
		DocumentType:  firstText(obj["document_type"], meta.DocumentType, DefaultDocumentType),
		AnalysisDate:  date,
		OverallStatus: firstText(obj["overall_status"], DefaultOverallStatus),
	}
}

func gapSection(issues *typeIssues, fields map[string]any) models.GapSection {
	sec := issues.object(fields, SectionCriticalGaps, SectionCriticalGaps)
	raw := issues.array(sec, "items", SectionCriticalGaps+".items")
	items := make([]models.Gap, 0, len(raw))
	for i, item := range raw {
		f := gapRules.fill(asObject(item), i+1)
		items = append(items, models.Gap{
			GapType:         f["gap_type"],
			Severity:        f["severity"],
			QFCArticle:      f["qfc_article"],
			DocumentState:   f["document_states"],
			Requirement:     f["qfc_requires"],
			ImmediateAction: f["immediate_action"],
			LegalRisk:       f["legal_risk"],
		})
	}
	return models.GapSection{
		Count:       len(items),
		Description: firstText(sec["description"], sectionDescriptions[SectionCriticalGaps]),
		Items:       items,
	}
}

func recommendationSection(issues *typeIssues, fields map[string]any) models.RecommendationSection {
	sec := issues.object(fields, SectionRecommendations, SectionRecommendations)
	raw := issues.array(sec, "items", SectionRecommendations+".items")
	items := make([]models.Recommendation, 0, len(raw))
	for i, item := range raw {
		f := recommendationRules.fill(asObject(item), i+1)
		items = append(items, models.Recommendation{
			Area:                 f["area"],
			Priority:             f["priority"],
			CurrentPractice:      f["current_practice"],
			RecommendedChange:    f["recommended_change"],
			BusinessBenefit:      f["business_benefit"],
			ImplementationEffort: f["implementation_effort"],
		})
	}
	return models.RecommendationSection{
		Count:       len(items),
		Description: firstText(sec["description"], sectionDescriptions[SectionRecommendations]),
		Items:       items,
	}
}

func inconsistencySection(issues *typeIssues, fields map[string]any) models.InconsistencySection {
	sec := issues.object(fields, SectionInconsistencies, SectionInconsistencies)
	raw := issues.array(sec, "items", SectionInconsistencies+".items")
	items := make([]models.Inconsistency, 0, len(raw))
	for i, item := range raw {
		obj := asObject(item)
		f := inconsistencyRules.fill(obj, i+1)
		items = append(items, models.Inconsistency{
			ConflictArea:          f["conflict_area"],
			ConflictingStatements: textList(obj["conflicting_statements"]),
			OperationalRisk:       f["operational_risk"],
			RecommendedResolution: f["recommended_resolution"],
			Priority:              f["priority"],
		})
	}
	return models.InconsistencySection{
		Count:       len(items),
		Description: firstText(sec["description"], sectionDescriptions[SectionInconsistencies]),
		Items:       items,
	}
}

func compliantSection(issues *typeIssues, fields map[string]any) models.CompliantSection {
	sec := issues.object(fields, SectionCompliantItems, SectionCompliantItems)
	raw := issues.array(sec, "items", SectionCompliantItems+".items")
	items := make([]models.CompliantItem, 0, len(raw))
	for i, item := range raw {
		f := compliantRules.fill(asObject(item), i+1)
		items = append(items, models.CompliantItem{
			ComplianceArea: f["compliance_area"],
			QFCArticle:     f["qfc_article"],
			Evidence:       f["evidence"],
			Strength:       f["strength"],
		})
	}
	return models.CompliantSection{
		Count:       len(items),
		Description: firstText(sec["description"], sectionDescriptions[SectionCompliantItems]),
		Items:       items,
	}
}

func actionPlan(issues *typeIssues, fields map[string]any) models.ActionPlan {
	sec := issues.object(fields, SectionActionPlan, SectionActionPlan)
	return models.ActionPlan{
		ImmediateActions:      textList(issues.array(sec, "immediate_actions", SectionActionPlan+".immediate_actions")),
		ShortTermImprovements: textList(issues.array(sec, "short_term_improvements", SectionActionPlan+".short_term_improvements")),
		LongTermEnhancements:  textList(issues.array(sec, "long_term_enhancements", SectionActionPlan+".long_term_enhancements")),
	}
}

func finalAssessment(obj map[string]any) models.FinalAssessment {
	f := assessmentRules.fill(obj, 0)
	return models.FinalAssessment{
		OverallComplianceStatus: f["overall_compliance_status"],
		ConfidenceScore:         f["confidence_score"],
		RiskLevel:               f["risk_level"],
		NextReviewDate:          f["next_review_date"],
		ExecutiveSummary:        f["executive_summary"],
	}
}

// dashboardMetrics keeps the display figures supplied by the service but
// always recomputes the totals from the normalized lists.
func dashboardMetrics(obj map[string]any, r *models.AnalysisReport) models.DashboardMetrics {
	f := dashboardRules.fill(obj, 0)
	reviews, _ := integer(obj["reviews_this_month"])
	gaps, _ := integer(obj["gaps_found"])
	return models.DashboardMetrics{
		ReviewsThisMonth:     reviews,
		ComplianceRate:       f["compliance_rate"],
		GapsFound:            gaps,
		AvgReviewTime:        f["avg_review_time"],
		TotalCriticalGaps:    len(r.CriticalGaps.Items),
		TotalRecommendations: len(r.Recommendations.Items),
		TotalInconsistencies: len(r.Inconsistencies.Items),
		TotalCompliantAreas:  len(r.CompliantItems.Items),
	}
}

// firstText returns the first candidate that resolves to text. Candidates
// that are plain strings are used as literal fallbacks.
func firstText(candidates ...any) string {
	for _, c := range candidates {
		if s, ok := text(c); ok {
			return s
		}
	}
	return ""
}

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid JSON: trailing data after value")
	}
	return v, nil
}

// unwrapEnvelope resolves the value stored under EnvelopeKey. The service
// sends a JSON-encoded string; model output occasionally arrives inside a
// markdown code fence, which is stripped before parsing.
func unwrapEnvelope(env any) (map[string]any, error) {
	switch t := env.(type) {
	case map[string]any:
		return t, nil
	case string:
		body := strings.TrimSpace(t)
		if m := codeFence.FindStringSubmatch(body); len(m) > 1 {
			body = m[1]
		}
		v, err := decodeJSON([]byte(body))
		if err != nil {
			return nil, err
		}
		inner, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("envelope holds %s, not an object", jsonKind(v))
		}
		return inner, nil
	default:
		return nil, fmt.Errorf("envelope holds %s, not a string", jsonKind(env))
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
