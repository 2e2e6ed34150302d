// Package stats contains statistics calculations and reporting.
package stats

import (
	"context"
	"io"

	"github.com/projectlif/liplearn/internal/model"
	"github.com/projectlif/liplearn/internal/store"
)

// Report contains precomputed data for stats rendering.
type Report struct {
	Attempts        []model.Attempt
	LabelAggsAll    []model.LabelAggregate
	LabelAggsWindow []model.LabelAggregate
}

// BuildReport loads and prepares data for stats rendering.
func BuildReport(ctx context.Context, st *store.Store, cfg model.StatsConfig) (Report, error) {
	attempts, err := st.ListAttempts(ctx, cfg)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Attempts:        attempts,
		LabelAggsAll:    AggregateLabels(attempts),
		LabelAggsWindow: AggregateLabels(lastAttempts(attempts, cfg.CurveWindow)),
	}, nil
}

// Render writes the full report: summary, curve, per-label table and weak labels.
func (r Report) Render(w io.Writer, window, totalWidth int, useColor bool) error {
	if err := RenderSummary(w, r.Attempts); err != nil {
		return err
	}
	if len(r.Attempts) == 0 {
		return nil
	}
	if err := RenderCurve(w, r.Attempts, window, totalWidth, useColor); err != nil {
		return err
	}
	if err := RenderLabelTable(w, r.LabelAggsWindow); err != nil {
		return err
	}
	return RenderWeakLabels(w, r.LabelAggsWindow, defaultWeakTop)
}

func lastAttempts(attempts []model.Attempt, window int) []model.Attempt {
	if window <= 0 || len(attempts) <= window {
		return attempts
	}
	return attempts[len(attempts)-window:]
}
