// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects what the user practices and which classifier receives the frames.
type Mode string

const (
	ModeSyllable Mode = "syllable"
	ModeWord     Mode = "word"
)

// ParseMode converts a user-supplied mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "syllable", "syllables":
		return ModeSyllable, nil
	case "word", "words":
		return ModeWord, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want syllable or word)", s)
	}
}

// Label returns the plural display name used in headers.
func (m Mode) Label() string {
	if m == ModeWord {
		return "Words"
	}
	return "Syllables"
}

const (
	syllableFrameCount = 22
	wordFrameCount     = 44
	frameInterval      = 33 * time.Millisecond
)

// CaptureConfig describes one recording. Frame count and interval depend only on Mode.
type CaptureConfig struct {
	Mode     Mode
	Category string
}

// CaptureConfigFor builds a capture config for mode and category.
func CaptureConfigFor(mode Mode, category string) CaptureConfig {
	return CaptureConfig{Mode: mode, Category: category}
}

// TargetFrameCount is the number of frames a complete recording holds.
func (c CaptureConfig) TargetFrameCount() int {
	if c.Mode == ModeWord {
		return wordFrameCount
	}
	return syllableFrameCount
}

// FrameInterval is the capture cadence (about 30 fps).
func (c CaptureConfig) FrameInterval() time.Duration {
	return frameInterval
}

// SessionState is the recording state machine position.
type SessionState int

const (
	StateIdle SessionState = iota
	StateCountingDown
	StateRecording
	StateSubmitting
	StateShowingResult
	StateError
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCountingDown:
		return "counting-down"
	case StateRecording:
		return "recording"
	case StateSubmitting:
		return "submitting"
	case StateShowingResult:
		return "showing-result"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PredictionRequest is the buffered recording handed to the classifier.
type PredictionRequest struct {
	Mode     Mode
	Category string
	Frames   [][]byte
}

// Attempt is one completed submission and its outcome.
type Attempt struct {
	ID         string
	RecordedAt time.Time
	Mode       Mode
	Category   string
	Target     string
	Label      string
	Accuracy   float64
	FrameCount int
	Result     PredictionResult
}

// Hit reports whether the predicted label matches the practice target.
func (a Attempt) Hit() bool {
	return a.Target != "" && strings.EqualFold(a.Target, a.Label)
}

// SessionStats accumulates the outcomes of the current run. It is never persisted.
type SessionStats struct {
	TotalPredictions int
	AccuracySum      float64
	StartedAt        time.Time
	History          []Attempt
}

// AverageAccuracy returns accuracySum / totalPredictions, or 0 with no predictions.
func (s SessionStats) AverageAccuracy() float64 {
	if s.TotalPredictions == 0 {
		return 0
	}
	return s.AccuracySum / float64(s.TotalPredictions)
}

// Progress is the local progress record.
type Progress struct {
	Completed   []string `json:"completed"`
	Points      int      `json:"points"`
	TotalTime   int      `json:"totalTime"`
	LastUpdated string   `json:"last_updated,omitempty"`
}

// IsCompleted reports whether id is in the completed set.
func (p Progress) IsCompleted(id string) bool {
	for _, c := range p.Completed {
		if strings.EqualFold(c, id) {
			return true
		}
	}
	return false
}

// MasteryResult is the server answer to a mastery request.
type MasteryResult struct {
	Success      bool
	TotalPoints  int
	PointsEarned int
}

// StatsConfig defines filters and options for stats output.
type StatsConfig struct {
	Mode        Mode
	Category    string
	Since       *time.Time
	Last        int
	CurveWindow int
}

// LabelAggregate aggregates attempts by predicted label.
type LabelAggregate struct {
	Label       string
	Attempts    int
	AccuracySum float64
	Hits        int
	Targeted    int
}

// AverageAccuracy returns the mean accuracy of the label's attempts.
func (a LabelAggregate) AverageAccuracy() float64 {
	if a.Attempts == 0 {
		return 0
	}
	return a.AccuracySum / float64(a.Attempts)
}
