package statsui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/projectlif/liplearn/internal/model"
	"github.com/projectlif/liplearn/internal/stats"
)

func fixedLoader(attempts []model.Attempt) (Loader, *[]model.StatsConfig) {
	var seen []model.StatsConfig
	return func(_ context.Context, cfg model.StatsConfig) (stats.Report, error) {
		seen = append(seen, cfg)
		return stats.Report{
			Attempts:        attempts,
			LabelAggsAll:    stats.AggregateLabels(attempts),
			LabelAggsWindow: stats.AggregateLabels(attempts),
		}, nil
	}, &seen
}

func sampleAttempts() []model.Attempt {
	return []model.Attempt{
		{Mode: model.ModeSyllable, Target: "ba", Label: "ba", Accuracy: 0.9},
		{Mode: model.ModeSyllable, Target: "ba", Label: "da", Accuracy: 0.5},
		{Mode: model.ModeSyllable, Target: "ka", Label: "ka", Accuracy: 0.8},
	}
}

func TestOverviewShowsCards(t *testing.T) {
	load, _ := fixedLoader(sampleAttempts())
	m := NewModel(load, model.StatsConfig{CurveWindow: 5})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	view := m.View()
	for _, want := range []string{"Overview", "Attempts", "Hit Rate", "66.7%", "window=5"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestLabelTabListsLabels(t *testing.T) {
	load, _ := fixedLoader(sampleAttempts())
	m := NewModel(load, model.StatsConfig{CurveWindow: 5})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabLabels {
		t.Fatalf("expected labels tab")
	}
	view := m.View()
	if !strings.Contains(view, "BA") || !strings.Contains(view, "1/2") {
		t.Fatalf("expected label rows in view:\n%s", view)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.activeTab != tabOverview {
		t.Fatalf("expected tab to wrap to overview")
	}
}

func TestCurveWindowKeysReload(t *testing.T) {
	load, seen := fixedLoader(sampleAttempts())
	m := NewModel(load, model.StatsConfig{CurveWindow: 5})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("=")})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	got := []int{}
	for _, cfg := range *seen {
		got = append(got, cfg.CurveWindow)
	}
	want := []int{5, 10, 5, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestLoadErrorShown(t *testing.T) {
	load := func(context.Context, model.StatsConfig) (stats.Report, error) {
		return stats.Report{}, errors.New("db locked")
	}
	m := NewModel(load, model.StatsConfig{})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	if !strings.Contains(m.View(), "db locked") {
		t.Fatalf("expected error in footer")
	}
}

func TestRowsSortedByAttempts(t *testing.T) {
	rows := labelRows(stats.AggregateLabels(sampleAttempts()))
	if len(rows) == 0 || rows[0][0] != "BA" || rows[0][1] != "2" {
		t.Fatalf("unexpected rows %v", rows)
	}
}
