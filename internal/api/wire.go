package api

import (
	"fmt"

	"github.com/projectlif/liplearn/internal/model"
)

type syllableResponse struct {
	PredictedSyllable *string  `json:"predicted_syllable"`
	Accuracy          *float64 `json:"accuracy"`
}

type wordPrediction struct {
	Word       string   `json:"word"`
	Confidence *float64 `json:"confidence"`
}

type wordsResponse struct {
	Predictions []wordPrediction `json:"predictions"`
}

type wireBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type wirePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type landmarksResponse struct {
	Success   bool `json:"success"`
	Landmarks *struct {
		MouthBox    *wireBox    `json:"mouth_box"`
		MouthPoints []wirePoint `json:"mouth_points"`
	} `json:"landmarks"`
}

type progressResponse struct {
	MasteredSyllables []string `json:"mastered_syllables"`
	TotalPoints       int      `json:"total_points"`
	TotalTime         int      `json:"total_time"`
}

type syncRequest struct {
	Completed   []string `json:"completed"`
	Points      int      `json:"points"`
	TotalTime   int      `json:"total_time"`
	LastUpdated string   `json:"last_updated,omitempty"`
}

type masterResponse struct {
	Success      bool `json:"success"`
	TotalPoints  int  `json:"total_points"`
	PointsEarned int  `json:"points_earned"`
}

func (r syllableResponse) toModel() (model.PredictionResult, error) {
	if r.PredictedSyllable == nil {
		return nil, fmt.Errorf("%w: missing predicted_syllable", model.ErrMalformedResponse)
	}
	if r.Accuracy == nil {
		return nil, fmt.Errorf("%w: missing accuracy", model.ErrMalformedResponse)
	}
	return model.ValidateSyllable(*r.PredictedSyllable, *r.Accuracy)
}

func (r wordsResponse) toModel() (model.PredictionResult, error) {
	ranked := make([]model.WordCandidate, 0, len(r.Predictions))
	for i, p := range r.Predictions {
		if p.Confidence == nil {
			return nil, fmt.Errorf("%w: prediction %d missing confidence", model.ErrMalformedResponse, i)
		}
		ranked = append(ranked, model.WordCandidate{Word: p.Word, Confidence: *p.Confidence})
	}
	return model.ValidateWords(ranked)
}

func (r landmarksResponse) toModel() model.Landmarks {
	out := model.Landmarks{Success: r.Success}
	if !r.Success || r.Landmarks == nil {
		return out
	}
	if b := r.Landmarks.MouthBox; b != nil {
		out.MouthBox = &model.Box{X: b.X, Y: b.Y, W: b.W, H: b.H}
	}
	for _, p := range r.Landmarks.MouthPoints {
		out.MouthPoints = append(out.MouthPoints, model.Point{X: p.X, Y: p.Y})
	}
	return out
}
