// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/projectlif/liplearn/internal/model"
)

const sparkChars = " .:-=+*#%@"

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	last := len(sparkChars) - 1
	for _, v := range values {
		idx := int(math.Round((v - lo) / (hi - lo) * float64(last)))
		idx = max(0, min(idx, last))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// AggregateLabels groups attempts by practice key: the target when one was set,
// else the predicted label.
func AggregateLabels(attempts []model.Attempt) []model.LabelAggregate {
	byKey := map[string]*model.LabelAggregate{}
	var order []string
	for _, a := range attempts {
		key := a.Target
		if key == "" {
			key = a.Label
		}
		agg, ok := byKey[key]
		if !ok {
			agg = &model.LabelAggregate{Label: key}
			byKey[key] = agg
			order = append(order, key)
		}
		agg.Attempts++
		agg.AccuracySum += a.Accuracy
		if a.Target != "" {
			agg.Targeted++
			if a.Hit() {
				agg.Hits++
			}
		}
	}
	out := make([]model.LabelAggregate, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out
}

// RenderSummary prints a summary of the attempts.
func RenderSummary(w io.Writer, attempts []model.Attempt) error {
	if len(attempts) == 0 {
		_, err := fmt.Fprintln(w, "No attempts found.")
		return err
	}
	var total, best float64
	var syllables, words, targeted, hits int
	for _, a := range attempts {
		total += a.Accuracy
		best = math.Max(best, a.Accuracy)
		switch a.Mode {
		case model.ModeWord:
			words++
		default:
			syllables++
		}
		if a.Target != "" {
			targeted++
			if a.Hit() {
				hits++
			}
		}
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Attempts: %d (syllables %d, words %d)", len(attempts), syllables, words),
		fmt.Sprintf("Avg Accuracy: %.2f%%", total/float64(len(attempts))*100),
		fmt.Sprintf("Best Accuracy: %.2f%%", best*100),
	}
	if targeted > 0 {
		lines = append(lines, fmt.Sprintf("Target Hit Rate: %.2f%% (%d/%d)", float64(hits)/float64(targeted)*100, hits, targeted))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurve prints the accuracy learning curve as a sparkline and a chart.
func RenderCurve(w io.Writer, attempts []model.Attempt, window, totalWidth int, useColor bool) error {
	if len(attempts) == 0 {
		return nil
	}
	accs := make([]float64, len(attempts))
	for i, a := range attempts {
		accs[i] = a.Accuracy * 100
	}
	smoothed := MovingAverage(accs, window)
	if _, err := fmt.Fprintf(w, "Accuracy trend: %s\n", Sparkline(smoothed)); err != nil {
		return err
	}
	return PlotPercent(w, "Learning Curve", []Series{
		{Name: "Accuracy", Values: accs},
		{Name: fmt.Sprintf("Avg(%d)", window), Values: smoothed},
	}, ChartWidthFor(totalWidth), defaultChartHeight, useColor)
}

// RenderLabelTable prints per-label aggregates, weakest first.
func RenderLabelTable(w io.Writer, aggs []model.LabelAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No label stats found.")
		return err
	}
	rows := make([]model.LabelAggregate, len(aggs))
	copy(rows, aggs)
	sort.Slice(rows, func(i, j int) bool {
		si, sj := weakness(rows[i]), weakness(rows[j])
		if si == sj {
			return rows[i].Label < rows[j].Label
		}
		return si < sj
	})

	if _, err := fmt.Fprintln(w, "Per-Label"); err != nil {
		return err
	}
	headers := []string{"Label", "Attempts", "Avg Accuracy", "Hit Rate"}
	tableRows := make([][]string, 0, len(rows))
	for _, r := range rows {
		hitRate := "-"
		if r.Targeted > 0 {
			hitRate = fmt.Sprintf("%.0f%% (%d/%d)", float64(r.Hits)/float64(r.Targeted)*100, r.Hits, r.Targeted)
		}
		tableRows = append(tableRows, []string{
			strings.ToUpper(r.Label),
			fmt.Sprintf("%d", r.Attempts),
			fmt.Sprintf("%.2f%%", r.AverageAccuracy()*100),
			hitRate,
		})
	}
	rightAlign := map[int]bool{1: true, 2: true, 3: true}
	for _, line := range formatTable(headers, tableRows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
