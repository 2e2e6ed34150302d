package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/projectlif/liplearn/internal/model"
)

func TestResultLinesSyllable(t *testing.T) {
	lines := resultLines(model.Attempt{
		Category: "vowels",
		Result:   model.SyllablePrediction{Label: "ba", Accuracy: 0.92},
	})
	want := []string{"BA", "92% Accuracy", "Category: VOWELS"}
	if len(lines) != len(want) {
		t.Fatalf("expected %v, got %v", want, lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, lines)
		}
	}
}

func TestResultLinesWordsKeepServerOrder(t *testing.T) {
	lines := resultLines(model.Attempt{
		Result: model.WordPredictions{Ranked: []model.WordCandidate{
			{Word: "bahay", Confidence: 0.80},
			{Word: "buhay", Confidence: 0.15},
		}},
	})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	if lines[0] != "Rank 1  BAHAY  80%" || lines[1] != "Rank 2  BUHAY  15%" {
		t.Fatalf("unexpected word lines %q", lines)
	}
}

func TestFormatTime(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{59 * time.Second, "00:59"},
		{135 * time.Second, "02:15"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{-time.Second, "00:00"},
	}
	for _, tc := range cases {
		if got := formatTime(tc.in); got != tc.want {
			t.Fatalf("formatTime(%s): want %s got %s", tc.in, tc.want, got)
		}
	}
}

func TestRenderOverlay(t *testing.T) {
	ov := &model.Overlay{
		Landmarks: model.Landmarks{
			Success:     true,
			MouthBox:    &model.Box{X: 25, Y: 20, W: 50, H: 20},
			MouthPoints: []model.Point{{X: 50, Y: 30}},
		},
		FrameWidth:  100,
		FrameHeight: 50,
	}
	out := renderOverlay(ov, 20, 10)
	lines := strings.Split(out, "\n")
	if len(lines) != 12 {
		t.Fatalf("expected 12 lines, got %d:\n%s", len(lines), out)
	}
	// point (50,30) maps to cell (10,6); row 0 is the top border.
	row := []rune(lines[7])
	if row[11] != '•' {
		t.Fatalf("expected keypoint at column 10 of row 6:\n%s", out)
	}
	// box top edge is grid row 4.
	if !strings.Contains(lines[5], "·") {
		t.Fatalf("expected box edge on row 4:\n%s", out)
	}
}

func TestRenderOverlayEmpty(t *testing.T) {
	if renderOverlay(nil, 10, 5) != "" {
		t.Fatalf("expected empty overlay for nil")
	}
	if renderOverlay(&model.Overlay{FrameWidth: 10, FrameHeight: 10}, 10, 5) != "" {
		t.Fatalf("expected empty overlay for unsuccessful detection")
	}
}
