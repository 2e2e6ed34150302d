// Package model defines shared data structures.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// PredictionResult is either a SyllablePrediction or WordPredictions.
type PredictionResult interface {
	// TopLabel returns the syllable or the rank-1 word.
	TopLabel() string
	// TopScore returns the syllable accuracy or the rank-1 confidence.
	TopScore() float64
	isPrediction()
}

// SyllablePrediction is the classifier answer in syllable mode.
type SyllablePrediction struct {
	Label    string
	Accuracy float64
}

func (p SyllablePrediction) TopLabel() string  { return p.Label }
func (p SyllablePrediction) TopScore() float64 { return p.Accuracy }
func (SyllablePrediction) isPrediction()       {}

// WordCandidate is one ranked word guess.
type WordCandidate struct {
	Word       string
	Confidence float64
}

// WordPredictions holds ranked word guesses in server order.
type WordPredictions struct {
	Ranked []WordCandidate
}

func (p WordPredictions) TopLabel() string {
	if len(p.Ranked) == 0 {
		return ""
	}
	return p.Ranked[0].Word
}

func (p WordPredictions) TopScore() float64 {
	if len(p.Ranked) == 0 {
		return 0
	}
	return p.Ranked[0].Confidence
}

func (WordPredictions) isPrediction() {}

// ValidateSyllable checks a decoded syllable answer.
func ValidateSyllable(label string, accuracy float64) (SyllablePrediction, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return SyllablePrediction{}, fmt.Errorf("%w: empty predicted_syllable", ErrMalformedResponse)
	}
	if !unitInterval(accuracy) {
		return SyllablePrediction{}, fmt.Errorf("%w: accuracy %v out of range", ErrMalformedResponse, accuracy)
	}
	return SyllablePrediction{Label: label, Accuracy: accuracy}, nil
}

// ValidateWords checks a decoded word answer. Order is preserved.
func ValidateWords(ranked []WordCandidate) (WordPredictions, error) {
	if len(ranked) == 0 {
		return WordPredictions{}, fmt.Errorf("%w: empty predictions", ErrMalformedResponse)
	}
	out := make([]WordCandidate, 0, len(ranked))
	for i, c := range ranked {
		word := strings.TrimSpace(c.Word)
		if word == "" {
			return WordPredictions{}, fmt.Errorf("%w: prediction %d has no word", ErrMalformedResponse, i)
		}
		if !unitInterval(c.Confidence) {
			return WordPredictions{}, fmt.Errorf("%w: prediction %d confidence %v out of range", ErrMalformedResponse, i, c.Confidence)
		}
		out = append(out, WordCandidate{Word: word, Confidence: c.Confidence})
	}
	return WordPredictions{Ranked: out}, nil
}

func unitInterval(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Point is a pixel coordinate in the probed frame.
type Point struct {
	X float64
	Y float64
}

// Box is a pixel rectangle in the probed frame.
type Box struct {
	X float64
	Y float64
	W float64
	H float64
}

// Landmarks is a landmark detection answer.
type Landmarks struct {
	Success     bool
	MouthBox    *Box
	MouthPoints []Point
}

// Overlay is the latest landmark answer together with the frame it describes.
type Overlay struct {
	Landmarks
	FrameWidth  int
	FrameHeight int
	CapturedAt  time.Time
}
