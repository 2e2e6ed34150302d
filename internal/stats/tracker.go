// Package stats contains statistics calculations and reporting.
package stats

import (
	"sync"
	"time"

	"github.com/projectlif/liplearn/internal/model"
)

// Tracker holds the in-memory SessionStats of the running client.
type Tracker struct {
	mu    sync.Mutex
	stats model.SessionStats
}

// NewTracker returns an empty tracker started at startedAt.
func NewTracker(startedAt time.Time) *Tracker {
	return &Tracker{stats: model.SessionStats{StartedAt: startedAt}}
}

// Record counts one completed prediction. Only syllable attempts add to the
// accuracy sum; word predictions carry no accuracy score.
func (t *Tracker) Record(a model.Attempt) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TotalPredictions++
	if a.Mode != model.ModeWord {
		t.stats.AccuracySum += a.Accuracy
	}
	t.stats.History = append(t.stats.History, a)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() model.SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.stats
	out.History = append([]model.Attempt(nil), t.stats.History...)
	return out
}
