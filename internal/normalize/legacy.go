package normalize

// The older response shape carried flat arrays with different field names and
// a compliance_summary block instead of final_assessment.
const (
	legacyIssues          = "mandatory_compliance_issues"
	legacyRecommendations = "best_practice_recommendations"
	legacyInconsistencies = "document_inconsistencies"
	legacySummary         = "compliance_summary"
)

var (
	legacyMarkers  = []string{legacyIssues, legacyRecommendations, legacyInconsistencies, legacySummary}
	legacyRequired = []string{legacyIssues, legacySummary}

	// Legacy field name -> canonical field name. Fields not listed keep
	// their name (qfc_article, document_states, qfc_requires, area, ...).
	legacyGapKeys = map[string]string{
		"violation":    "gap_type",
		"fix_required": "immediate_action",
	}
	legacyRecommendationKeys = map[string]string{
		"current":        "current_practice",
		"recommendation": "recommended_change",
		"benefit":        "business_benefit",
	}
	legacyInconsistencyKeys = map[string]string{
		"issue":    "conflict_area",
		"problem":  "operational_risk",
		"solution": "recommended_resolution",
	}
)

// isLegacy reports whether fields use the legacy shape: a distinguishing
// legacy section is present and the canonical critical_gaps section is not.
func isLegacy(fields map[string]any) bool {
	if _, ok := fields[SectionCriticalGaps]; ok {
		return false
	}
	for _, key := range legacyMarkers {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}

// transcodeLegacy maps a legacy payload onto the canonical section layout so
// the regular defaulting applies to it unchanged.
func transcodeLegacy(fields map[string]any) (map[string]any, error) {
	var issues typeIssues
	gaps := issues.array(fields, legacyIssues, legacyIssues)
	recs := issues.array(fields, legacyRecommendations, legacyRecommendations)
	incs := issues.array(fields, legacyInconsistencies, legacyInconsistencies)
	summary := issues.object(fields, legacySummary, legacySummary)
	if len(issues) > 0 {
		return nil, &SchemaError{Kind: KindLegacyTranscode, Fields: issues}
	}

	out := map[string]any{
		SectionSummary:         map[string]any{},
		SectionCriticalGaps:    map[string]any{"items": renameAll(gaps, legacyGapKeys)},
		SectionRecommendations: map[string]any{"items": renameAll(recs, legacyRecommendationKeys)},
		SectionInconsistencies: map[string]any{"items": renameAll(incs, legacyInconsistencyKeys)},
		SectionFinalAssessment: map[string]any{"overall_compliance_status": summary["status"]},
		SectionActionPlan:      map[string]any{"immediate_actions": summary["must_fix_items"]},
	}
	// Sections that already exist in canonical form are kept as sent.
	for _, key := range []string{SectionSummary, SectionCompliantItems, SectionActionPlan, SectionFinalAssessment, SectionDashboard} {
		if present(fields, key) {
			out[key] = fields[key]
		}
	}
	return out, nil
}

// renameAll copies each object item with legacy keys renamed. Non-object
// items become empty objects and receive the table defaults.
func renameAll(items []any, keys map[string]string) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		src := asObject(item)
		dst := make(map[string]any, len(src))
		for k, v := range src {
			if _, legacy := keys[k]; !legacy {
				dst[k] = v
			}
		}
		// A canonical key sent alongside its legacy name wins.
		for old, canonical := range keys {
			if v, ok := src[old]; ok && !present(dst, canonical) {
				dst[canonical] = v
			}
		}
		out = append(out, dst)
	}
	return out
}
