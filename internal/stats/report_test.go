package stats

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/projectlif/liplearn/internal/model"
	"github.com/projectlif/liplearn/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "liplearn.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		a := model.Attempt{
			ID:         fmt.Sprintf("attempt-%d", i),
			RecordedAt: time.Unix(0, 0).Add(time.Duration(i) * time.Minute),
			Mode:       model.ModeSyllable,
			Category:   "vowels",
			Target:     "a",
			Label:      []string{"a", "e", "a"}[i],
			Accuracy:   0.7 + float64(i)*0.1,
			FrameCount: 22,
		}
		if err := st.InsertAttempt(ctx, a); err != nil {
			t.Fatalf("insert attempt: %v", err)
		}
	}

	report, err := BuildReport(ctx, st, model.StatsConfig{
		Mode:        model.ModeSyllable,
		Last:        2,
		CurveWindow: 1,
	})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(report.Attempts))
	}
	if report.Attempts[0].ID != "attempt-1" || report.Attempts[1].ID != "attempt-2" {
		t.Fatalf("unexpected attempts: %+v", report.Attempts)
	}
	if len(report.LabelAggsAll) != 1 || report.LabelAggsAll[0].Attempts != 2 || report.LabelAggsAll[0].Hits != 1 {
		t.Fatalf("unexpected aggregates: %+v", report.LabelAggsAll)
	}
	if len(report.LabelAggsWindow) != 1 || report.LabelAggsWindow[0].Attempts != 1 {
		t.Fatalf("unexpected window aggregates: %+v", report.LabelAggsWindow)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, 2, 60, false); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Attempts: 2 (syllables 2, words 0)", "Avg Accuracy: 85.00%", "Learning Curve", "Per-Label", "Focus next: A"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSummary(&buf, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "No attempts found.\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
