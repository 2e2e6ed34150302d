package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/projectlif/liplearn/internal/model"
)

func TestRenderFooterFormats(t *testing.T) {
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	sess := newFakeSession()
	sess.stats = model.SessionStats{TotalPredictions: 2, AccuracySum: 1.7, StartedAt: started}
	m := &Model{
		sess:     sess,
		now:      func() time.Time { return started.Add(135 * time.Second) },
		progress: model.Progress{Completed: []string{"a", "ba"}, Points: 100},
	}
	out := m.renderFooter()
	if out == "" {
		t.Fatalf("expected footer output")
	}
	if !containsAll(out, []string{"Predictions 2", "Avg 85.0%", "Session 02:15", "Points 100", "Mastered 2"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
