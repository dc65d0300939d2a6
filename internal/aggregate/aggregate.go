// Package aggregate computes cross-report statistics for the analytics views.
package aggregate

import (
	"math"
	"sort"
	"strings"

	"github.com/qfcreview/reviewdesk/internal/models"
)

// TopN is the length of the ranked gap-type and article lists.
const TopN = 5

// StatusCompliant is the only status counted towards the compliance rate.
const StatusCompliant = "Compliant"

const unknownBucket = "Unknown"

// Summarize derives AggregateMetrics from reports. It is pure; the same
// input always yields the same output.
func Summarize(reports []models.AnalysisReport) models.AggregateMetrics {
	m := models.AggregateMetrics{
		TotalReports:           len(reports),
		TopGapTypes:            []models.GapTypeCount{},
		TopArticles:            []models.ArticleCount{},
		RiskDistribution:       map[string]int{},
		ComplianceDistribution: map[string]int{},
	}
	if len(reports) == 0 {
		return m
	}

	gapTypes := newCounter()
	articles := newCounter()
	compliant := 0

	for _, r := range reports {
		status := r.FinalAssessment.OverallComplianceStatus
		if status == StatusCompliant {
			compliant++
		}
		m.ComplianceDistribution[bucket(status)]++
		m.RiskDistribution[bucket(r.FinalAssessment.RiskLevel)]++

		m.TotalCriticalGaps += len(r.CriticalGaps.Items)
		for _, g := range r.CriticalGaps.Items {
			gapTypes.add(bucket(g.GapType))
			articles.add(bucket(g.QFCArticle))
		}
	}

	total := float64(len(reports))
	m.ComplianceRate = round1(float64(compliant) / total * 100)
	m.AvgCriticalGapsPerReport = round1(float64(m.TotalCriticalGaps) / total)

	for _, e := range gapTypes.top(TopN) {
		m.TopGapTypes = append(m.TopGapTypes, models.GapTypeCount{GapType: e.key, Count: e.count})
	}
	for _, e := range articles.top(TopN) {
		m.TopArticles = append(m.TopArticles, models.ArticleCount{Article: e.key, Count: e.count})
	}
	return m
}

func bucket(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownBucket
	}
	return s
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

type entry struct {
	key   string
	count int
}

// counter tallies keys and remembers first-seen order for tie breaking.
type counter struct {
	index   map[string]int
	entries []entry
}

func newCounter() *counter {
	return &counter{index: map[string]int{}}
}

func (c *counter) add(key string) {
	if i, ok := c.index[key]; ok {
		c.entries[i].count++
		return
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, entry{key: key, count: 1})
}

func (c *counter) top(n int) []entry {
	out := append([]entry(nil), c.entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].count > out[j].count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
