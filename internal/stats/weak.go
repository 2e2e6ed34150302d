package stats

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/projectlif/liplearn/internal/model"
)

const defaultWeakTop = 3

// SelectWeakLabels selects the labels with the lowest hit rate (or accuracy when never targeted).
func SelectWeakLabels(aggs []model.LabelAggregate, top int) map[string]struct{} {
	weakSet := map[string]struct{}{}
	if len(aggs) == 0 {
		return weakSet
	}
	candidates := make([]model.LabelAggregate, len(aggs))
	copy(candidates, aggs)
	sort.Slice(candidates, func(i, j int) bool {
		wi := weakness(candidates[i])
		wj := weakness(candidates[j])
		if wi == wj {
			return candidates[i].Label < candidates[j].Label
		}
		return wi < wj
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	for i := 0; i < top; i++ {
		weakSet[candidates[i].Label] = struct{}{}
	}
	return weakSet
}

func weakness(agg model.LabelAggregate) float64 {
	if agg.Targeted > 0 {
		return float64(agg.Hits) / float64(agg.Targeted)
	}
	if agg.Attempts == 0 {
		return 1.0
	}
	return agg.AverageAccuracy()
}

// RenderWeakLabels prints the labels to focus on next.
func RenderWeakLabels(w io.Writer, aggs []model.LabelAggregate, top int) error {
	weak := SelectWeakLabels(aggs, top)
	if len(weak) == 0 {
		return nil
	}
	labels := make([]string, 0, len(weak))
	for label := range weak {
		labels = append(labels, strings.ToUpper(label))
	}
	sort.Strings(labels)
	_, err := fmt.Fprintf(w, "Focus next: %s\n", strings.Join(labels, ", "))
	return err
}
