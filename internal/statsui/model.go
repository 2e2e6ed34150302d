// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/projectlif/liplearn/internal/model"
	"github.com/projectlif/liplearn/internal/stats"
	"github.com/projectlif/liplearn/internal/store"
)

const (
	tabOverview = iota
	tabLabels
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Loader returns the attempts report for a filter.
type Loader func(ctx context.Context, cfg model.StatsConfig) (stats.Report, error)

// StoreLoader builds reports from the attempt log.
func StoreLoader(st *store.Store) Loader {
	return func(ctx context.Context, cfg model.StatsConfig) (stats.Report, error) {
		return stats.BuildReport(ctx, st, cfg)
	}
}

// Model implements the Bubble Tea stats UI.
type Model struct {
	load Loader
	cfg  model.StatsConfig

	report stats.Report
	errMsg string

	tabs       []string
	activeTab  int
	overview   viewport.Model
	labelTable table.Model

	width  int
	height int
}

// NewModel constructs a stats UI model.
func NewModel(load Loader, cfg model.StatsConfig) *Model {
	if cfg.CurveWindow < 1 {
		cfg.CurveWindow = 1
	}
	m := &Model{
		load:       load,
		cfg:        cfg,
		tabs:       []string{"Overview", "Labels"},
		overview:   viewport.New(0, 0),
		labelTable: buildLabelTable(nil, 0, 1),
	}
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.cfg.CurveWindow = nextCurveWindow(m.cfg.CurveWindow)
			m.refreshReport()
			return m, nil
		case "-":
			m.cfg.CurveWindow = prevCurveWindow(m.cfg.CurveWindow)
			m.refreshReport()
			return m, nil
		case "r":
			m.refreshReport()
			return m, nil
		}
		var cmd tea.Cmd
		if m.activeTab == tabLabels {
			m.labelTable, cmd = m.labelTable.Update(msg)
			return m, cmd
		}
		m.overview, cmd = m.overview.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight := m.layoutHeights()
	header := fitLines(m.renderTabs()+"\n"+m.renderFilterSummary(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	return strings.Join([]string{header, body, m.renderFooter()}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight int) {
	headerHeight = lipgloss.Height(activeNavStyle.Render("X")) + 1
	footerHeight := 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	m.labelTable.SetWidth(m.width)
	m.labelTable.SetHeight(max(1, bodyHeight-1))
}

func (m *Model) moveTab(delta int) {
	m.activeTab = (m.activeTab + delta + len(m.tabs)) % len(m.tabs)
	if m.activeTab == tabLabels {
		m.labelTable.Focus()
	} else {
		m.labelTable.Blur()
	}
}

func (m *Model) refreshReport() {
	report, err := m.load(context.Background(), m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.overview.SetContent("Failed to load stats.")
		return
	}
	m.errMsg = ""
	m.report = report
	m.labelTable.SetRows(labelRows(report.LabelAggsWindow))
	m.renderContents()
}

func (m *Model) renderContents() {
	if m.errMsg != "" {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.report, m.cfg.CurveWindow, width))
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderFilterSummary() string {
	mode := string(m.cfg.Mode)
	if mode == "" {
		mode = "any"
	}
	category := m.cfg.Category
	if category == "" {
		category = "any"
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = fmt.Sprintf("%d", m.cfg.Last)
	}
	return headerStyle.Render(fmt.Sprintf("Settings: mode=%s  category=%s  since=%s  last=%s  window=%d",
		mode, category, since, last, m.cfg.CurveWindow))
}

func (m *Model) renderBody() string {
	if m.activeTab == tabLabels {
		if len(m.report.LabelAggsWindow) == 0 {
			return "No label stats found."
		}
		return tableMutedStyle.Render(m.labelTable.View())
	}
	return m.overview.View()
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render("Nav: left/right  Scroll: up/down  Window: -/=  Reload: r  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func renderOverview(r stats.Report, window, width int) string {
	if len(r.Attempts) == 0 {
		return "No attempts found."
	}
	var total, best float64
	var hits, targeted int
	for _, a := range r.Attempts {
		total += a.Accuracy
		best = max(best, a.Accuracy)
		if a.Target != "" {
			targeted++
			if a.Hit() {
				hits++
			}
		}
	}
	hitRate := "n/a"
	if targeted > 0 {
		hitRate = fmt.Sprintf("%.1f%%", float64(hits)/float64(targeted)*100)
	}
	cards := []string{
		metricCard("Attempts", fmt.Sprintf("%d", len(r.Attempts))),
		metricCard("Avg Acc", fmt.Sprintf("%.1f%%", total/float64(len(r.Attempts))*100)),
		metricCard("Best Acc", fmt.Sprintf("%.1f%%", best*100)),
		metricCard("Hit Rate", hitRate),
	}
	summary := strings.Join(cards, "\n")
	if width >= 80 {
		summary = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}

	var buf bytes.Buffer
	if err := stats.RenderCurve(&buf, r.Attempts, window, width, true); err != nil {
		return summary + "\n\n" + fmt.Sprintf("Failed to render curve: %v", err)
	}
	if err := stats.RenderWeakLabels(&buf, r.LabelAggsWindow, 3); err != nil {
		return summary + "\n\n" + fmt.Sprintf("Failed to render weak labels: %v", err)
	}
	return strings.TrimRight(summary+"\n\n"+buf.String(), "\n")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func buildLabelTable(aggs []model.LabelAggregate, width, height int) table.Model {
	columns := []table.Column{
		{Title: "Label", Width: 10},
		{Title: "Attempts", Width: 8},
		{Title: "Accuracy", Width: 9},
		{Title: "Hits", Width: 9},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(labelRows(aggs)),
		table.WithHeight(max(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(labelTableStyles())
	return t
}

func labelRows(aggs []model.LabelAggregate) []table.Row {
	sorted := make([]model.LabelAggregate, len(aggs))
	copy(sorted, aggs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Attempts == sorted[j].Attempts {
			return sorted[i].Label < sorted[j].Label
		}
		return sorted[i].Attempts > sorted[j].Attempts
	})
	rows := make([]table.Row, 0, len(sorted))
	for _, agg := range sorted {
		hits := "-"
		if agg.Targeted > 0 {
			hits = fmt.Sprintf("%d/%d", agg.Hits, agg.Targeted)
		}
		rows = append(rows, table.Row{
			strings.ToUpper(agg.Label),
			fmt.Sprintf("%d", agg.Attempts),
			fmt.Sprintf("%.2f%%", agg.AverageAccuracy()*100),
			hits,
		})
	}
	return rows
}

func labelTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

var curveWindows = []int{1, 5, 10, 20, 50, 100}

func nextCurveWindow(current int) int {
	for _, w := range curveWindows {
		if w > current {
			return w
		}
	}
	return current
}

func prevCurveWindow(current int) int {
	for i := len(curveWindows) - 1; i >= 0; i-- {
		if curveWindows[i] < current {
			return curveWindows[i]
		}
	}
	return current
}

func fitLines(content string, width, height int) string {
	lines := strings.Split(content, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		if lipgloss.Width(line) < width {
			lines[i] = line + strings.Repeat(" ", width-lipgloss.Width(line))
		}
	}
	return strings.Join(lines, "\n")
}
