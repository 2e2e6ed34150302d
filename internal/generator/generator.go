// Package generator picks practice targets.
package generator

import (
	"math/rand"
	"time"
)

// Picker selects the next practice target.
type Picker struct {
	rnd  *rand.Rand
	last string
}

// New returns a Picker seeded with the current time.
func New() *Picker {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a Picker with a fixed seed.
func NewSeeded(seed int64) *Picker {
	return &Picker{rnd: rand.New(rand.NewSource(seed))}
}

// Pick selects a label uniformly, avoiding an immediate repeat when possible.
func (p *Picker) Pick(labels []string) string {
	return p.PickWeighted(labels, nil, 0)
}

// PickWeighted selects a label with a bias toward weak labels. Each weak label
// weighs 1+factor, every other label 1.
func (p *Picker) PickWeighted(labels []string, weakSet map[string]struct{}, factor float64) string {
	if len(labels) == 0 {
		return ""
	}
	if len(labels) == 1 {
		p.last = labels[0]
		return labels[0]
	}
	weights := make([]float64, len(labels))
	total := 0.0
	for i, label := range labels {
		w := 1.0
		if _, ok := weakSet[label]; ok {
			w += factor
		}
		if label == p.last {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		p.last = labels[p.rnd.Intn(len(labels))]
		return p.last
	}

	r := p.rnd.Float64() * total
	acc := 0.0
	idx := len(labels) - 1
	for j, w := range weights {
		if w == 0 {
			continue
		}
		acc += w
		if r <= acc {
			idx = j
			break
		}
	}
	if weights[idx] == 0 {
		for j := len(weights) - 1; j >= 0; j-- {
			if weights[j] > 0 {
				idx = j
				break
			}
		}
	}
	p.last = labels[idx]
	return p.last
}
