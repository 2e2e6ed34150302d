package session

import (
	"io"
	"sync"
)

// CueKind distinguishes the countdown sounds.
type CueKind int

const (
	// CueTick plays on every countdown tick but the last.
	CueTick CueKind = iota
	// CueFinal is the distinct high cue of the last tick.
	CueFinal
)

// Cue plays countdown sounds.
type Cue interface {
	Play(kind CueKind)
}

// BellCue rings the terminal bell: once per tick, twice on the final tick.
type BellCue struct {
	mu sync.Mutex
	W  io.Writer
}

// Play writes the bell sequence for kind. Write errors are ignored.
func (b *BellCue) Play(kind CueKind) {
	if b == nil || b.W == nil {
		return
	}
	seq := "\a"
	if kind == CueFinal {
		seq = "\a\a"
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.W, seq)
}

type silentCue struct{}

func (silentCue) Play(CueKind) {}
