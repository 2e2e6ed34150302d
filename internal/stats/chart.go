// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"golang.org/x/term"
)

// Series is a named run of percentages (0-100).
type Series struct {
	Name   string
	Values []float64
}

const (
	defaultChartHeight = 8
	minChartWidth      = 10
	fallbackWidth      = 80
	axisSeparator      = " │ "
	colorReset         = "\x1b[0m"
)

var seriesColors = []string{"\x1b[36m", "\x1b[33m", "\x1b[35m", "\x1b[32m"}

// PlotPercent draws series on a fixed 0-100% braille chart width cells wide.
func PlotPercent(w io.Writer, title string, series []Series, width, height int, useColor bool) error {
	if height <= 0 {
		height = defaultChartHeight
	}
	width = max(width, minChartWidth)
	dotsX, dotsY := width*2, height*4

	masks := make([][]uint8, height)
	owner := make([][]int, height)
	for y := range masks {
		masks[y] = make([]uint8, width)
		owner[y] = make([]int, width)
		for x := range owner[y] {
			owner[y][x] = -1
		}
	}
	plot := func(si, x, y int) {
		if x < 0 || x >= dotsX || y < 0 || y >= dotsY {
			return
		}
		masks[y/4][x/2] |= brailleBit(x%2, y%4)
		owner[y/4][x/2] = si
	}

	drawn := 0
	for si, s := range series {
		points := resample(s.Values, dotsX)
		if len(points) == 0 {
			continue
		}
		drawn++
		prevX, prevY := -1, -1
		for i, v := range points {
			x := 0
			if len(points) > 1 {
				x = int(math.Round(float64(i) * float64(dotsX-1) / float64(len(points)-1)))
			}
			y := percentRow(v, dotsY)
			if prevX < 0 {
				plot(si, x, y)
			} else {
				drawLine(prevX, prevY, x, y, func(px, py int) { plot(si, px, py) })
			}
			prevX, prevY = x, y
		}
	}
	if drawn == 0 {
		return nil
	}

	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	for y := 0; y < height; y++ {
		var row strings.Builder
		fmt.Fprintf(&row, "%4s%s", axisLabel(y, height), axisSeparator)
		for x := 0; x < width; x++ {
			ch := rune(0x2800) + rune(masks[y][x])
			if useColor && owner[y][x] >= 0 {
				row.WriteString(seriesColors[owner[y][x]%len(seriesColors)])
				row.WriteRune(ch)
				row.WriteString(colorReset)
				continue
			}
			row.WriteRune(ch)
		}
		if _, err := fmt.Fprintln(w, row.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(w, legend(series, useColor)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func axisLabel(row, height int) string {
	switch row {
	case 0:
		return "100%"
	case height / 2:
		return "50%"
	case height - 1:
		return "0%"
	default:
		return ""
	}
}

func legend(series []Series, useColor bool) string {
	parts := make([]string, 0, len(series))
	for i, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		marker := "━"
		if useColor {
			marker = seriesColors[i%len(seriesColors)] + marker + colorReset
		}
		parts = append(parts, marker+" "+s.Name)
	}
	return strings.Join(parts, "  ")
}

// resample reduces values to at most n points by averaging equal buckets.
func resample(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	out := make([]float64, n)
	for i := range out {
		start := i * len(values) / n
		end := max((i+1)*len(values)/n, start+1)
		var sum float64
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

func percentRow(v float64, dotsY int) int {
	v = math.Max(0, math.Min(100, v))
	return int(math.Round((100 - v) / 100 * float64(dotsY-1)))
}

func brailleBit(col, row int) uint8 {
	if row == 3 {
		if col == 0 {
			return 0x40
		}
		return 0x80
	}
	if col == 0 {
		return 1 << row
	}
	return 1 << (row + 3)
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ChartWidthFor returns the chart cell width that fits totalWidth columns.
// A non-positive totalWidth uses the terminal width.
func ChartWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		totalWidth = TerminalWidth()
	}
	axis := 4 + len([]rune(axisSeparator))
	return max(minChartWidth, totalWidth-axis)
}

// TerminalWidth returns the stdout width, or 80 when stdout is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallbackWidth
	}
	return width
}

// ShouldUseColor reports whether w is a color-capable terminal.
func ShouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
