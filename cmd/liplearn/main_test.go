package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/projectlif/liplearn/internal/catalog"
	"github.com/projectlif/liplearn/internal/model"
)

func TestFlagsOverrideConfig(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--mode", "word"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	fileMode := "syllable"
	fileServer := "http://file:5000"
	applyStringConfig(cmd, "mode", &practiceMode, &fileMode)
	applyStringConfig(cmd, "server", &practiceServer, &fileServer)
	if practiceMode != "word" {
		t.Fatalf("expected flag mode to win, got %s", practiceMode)
	}
	if practiceServer != fileServer {
		t.Fatalf("expected config server, got %s", practiceServer)
	}
}

func TestBuildStatsConfig(t *testing.T) {
	statsMode, statsCategory, statsSince, statsLast, statsCurveWindow = "words", " Common ", "2024-05-01", 10, 5
	t.Cleanup(func() {
		statsMode, statsCategory, statsSince, statsLast, statsCurveWindow = "", "", "", 0, defaultCurveWindow
	})
	cfg, err := buildStatsConfig()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if cfg.Mode != model.ModeWord || cfg.Category != "common" || cfg.Last != 10 || cfg.CurveWindow != 5 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Since == nil || cfg.Since.Format("2006-01-02") != "2024-05-01" {
		t.Fatalf("unexpected since %v", cfg.Since)
	}

	statsSince = "May 1"
	if _, err := buildStatsConfig(); err == nil {
		t.Fatalf("expected invalid --since error")
	}
}

func TestValidatePractice(t *testing.T) {
	practiceServer, practiceThreshold = defaultServerURL, 1.2
	t.Cleanup(func() { practiceThreshold = 0.75 })
	if err := validatePractice(); err == nil {
		t.Fatalf("expected threshold error")
	}
	practiceThreshold = 0.75
	if err := validatePractice(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRenderProgress(t *testing.T) {
	var buf bytes.Buffer
	p := model.Progress{Completed: []string{"a", "ba"}, Points: 100, TotalTime: 90}
	if err := renderProgress(&buf, p); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Points: 100", "Mastered (2): A, BA", "Practice time: 1m30s", "Last updated: never"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestRenderCatalog(t *testing.T) {
	var buf bytes.Buffer
	if err := renderCatalog(&buf, catalog.New(), []model.Mode{model.ModeSyllable}); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "vowels") || !strings.Contains(out, "A E I O U") {
		t.Fatalf("unexpected catalog output:\n%s", out)
	}
	if strings.Contains(out, "greetings") {
		t.Fatalf("word categories must be filtered out")
	}
}
