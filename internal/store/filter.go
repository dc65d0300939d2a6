package store

import (
	"sort"
	"strings"
	"time"

	"github.com/qfcreview/reviewdesk/internal/models"
)

// Filter narrows List and ListReviews. Zero values match everything.
type Filter struct {
	Status    string
	RiskLevel string
	Company   string // case-insensitive substring
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

func (f Filter) match(e models.ReviewEntry) bool {
	if f.Status != "" && !strings.EqualFold(e.Status, f.Status) {
		return false
	}
	if f.RiskLevel != "" && !strings.EqualFold(e.RiskLevel, f.RiskLevel) {
		return false
	}
	if f.Company != "" && !strings.Contains(strings.ToLower(e.Company), strings.ToLower(f.Company)) {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// apply returns the matching entries most-recent-first. Entries with equal
// timestamps keep reverse insertion order.
func (f Filter) apply(entries []models.ReviewEntry) []models.ReviewEntry {
	out := make([]models.ReviewEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if f.match(entries[i]) {
			out = append(out, entries[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []models.ReviewEntry{}
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out
}
