package generator

import "testing"

func TestPickAvoidsImmediateRepeat(t *testing.T) {
	p := NewSeeded(1)
	labels := []string{"ba", "be"}
	prev := p.Pick(labels)
	for i := 0; i < 20; i++ {
		next := p.Pick(labels)
		if next == prev {
			t.Fatalf("expected no immediate repeat, got %s twice", next)
		}
		prev = next
	}
}

func TestPickSingleAndEmpty(t *testing.T) {
	p := NewSeeded(1)
	if got := p.Pick(nil); got != "" {
		t.Fatalf("expected empty pick, got %q", got)
	}
	for i := 0; i < 3; i++ {
		if got := p.Pick([]string{"a"}); got != "a" {
			t.Fatalf("expected a, got %q", got)
		}
	}
}

func TestPickWeightedFavorsWeakLabels(t *testing.T) {
	p := NewSeeded(42)
	labels := []string{"a", "e", "i", "o", "u"}
	weak := map[string]struct{}{"u": {}}
	counts := map[string]int{}
	for i := 0; i < 2000; i++ {
		counts[p.PickWeighted(labels, weak, 10)]++
	}
	for _, l := range labels[:4] {
		if counts["u"] <= counts[l] {
			t.Fatalf("expected u to dominate, counts=%v", counts)
		}
	}
}
