package tui

import "testing"

func TestWrapWordsBreaksOnSpaces(t *testing.T) {
	lines := wrapWords("Round your lips into a circle", 12)
	want := []string{"Round your", "lips into a", "circle"}
	if len(lines) != len(want) {
		t.Fatalf("expected %v, got %v", want, lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, lines)
		}
	}
}

func TestWrapWordsSplitsLongWord(t *testing.T) {
	lines := wrapWords("pagkakaisa", 4)
	want := []string{"pagk", "akai", "sa"}
	if len(lines) != len(want) {
		t.Fatalf("expected %v, got %v", want, lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, lines)
		}
	}
}

func TestWrapWordsWideRunes(t *testing.T) {
	lines := wrapWords("日本 語", 4)
	if len(lines) != 2 || lines[0] != "日本" || lines[1] != "語" {
		t.Fatalf("unexpected wide wrap %v", lines)
	}
}

func TestWrapWordsEmpty(t *testing.T) {
	if lines := wrapWords("   ", 10); lines != nil {
		t.Fatalf("expected nil, got %v", lines)
	}
}
