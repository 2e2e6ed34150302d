package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/projectlif/liplearn/internal/model"
)

// resultLines renders a result the way the practice screen shows it:
// syllables as label, accuracy and category; words as ranked rows in server order.
func resultLines(a model.Attempt) []string {
	switch res := a.Result.(type) {
	case model.SyllablePrediction:
		return []string{
			strings.ToUpper(res.Label),
			fmt.Sprintf("%d%% Accuracy", percent(res.Accuracy)),
			"Category: " + strings.ToUpper(a.Category),
		}
	case model.WordPredictions:
		lines := make([]string, 0, len(res.Ranked))
		for i, c := range res.Ranked {
			lines = append(lines, fmt.Sprintf("Rank %d  %s  %d%%", i+1, strings.ToUpper(c.Word), percent(c.Confidence)))
		}
		return lines
	default:
		return nil
	}
}

func percent(v float64) int {
	return int(math.Round(v * 100))
}

// formatTime renders a duration as mm:ss, or h:mm:ss past an hour.
func formatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// renderOverlay draws the mouth box and keypoints scaled onto a cols x rows grid.
func renderOverlay(ov *model.Overlay, cols, rows int) string {
	if ov == nil || !ov.Success || ov.FrameWidth <= 0 || ov.FrameHeight <= 0 || cols <= 0 || rows <= 0 {
		return ""
	}
	grid := make([][]rune, rows)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", cols))
	}
	scale := func(x, y float64) (int, int) {
		cx := int(x * float64(cols) / float64(ov.FrameWidth))
		cy := int(y * float64(rows) / float64(ov.FrameHeight))
		return max(0, min(cols-1, cx)), max(0, min(rows-1, cy))
	}
	if b := ov.MouthBox; b != nil {
		x0, y0 := scale(b.X, b.Y)
		x1, y1 := scale(b.X+b.W, b.Y+b.H)
		for x := x0; x <= x1; x++ {
			grid[y0][x], grid[y1][x] = '·', '·'
		}
		for y := y0; y <= y1; y++ {
			grid[y][x0], grid[y][x1] = '·', '·'
		}
	}
	for _, p := range ov.MouthPoints {
		x, y := scale(p.X, p.Y)
		grid[y][x] = '•'
	}
	lines := make([]string, rows)
	for y, row := range grid {
		lines[y] = "│" + string(row) + "│"
	}
	border := strings.Repeat("─", cols)
	return "┌" + border + "┐\n" + strings.Join(lines, "\n") + "\n└" + border + "┘"
}
