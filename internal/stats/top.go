// Package stats contains statistics calculations and reporting.
package stats

import (
	"sort"

	"github.com/projectlif/liplearn/internal/model"
)

// TopLabelsByFrequency returns the top N labels by attempt count.
func TopLabelsByFrequency(aggs []model.LabelAggregate, n int) []string {
	if n <= 0 || len(aggs) == 0 {
		return nil
	}
	items := make([]model.LabelAggregate, len(aggs))
	copy(items, aggs)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Attempts == items[j].Attempts {
			return items[i].Label < items[j].Label
		}
		return items[i].Attempts > items[j].Attempts
	})
	n = min(n, len(items))
	out := make([]string, 0, n)
	for _, item := range items[:n] {
		out = append(out, item.Label)
	}
	return out
}
