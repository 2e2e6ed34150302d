// Package events provides a typed publish/subscribe bus for session notifications.
package events

import (
	"sync"
	"time"

	"github.com/projectlif/liplearn/internal/model"
)

// Event is any value published on the bus.
type Event interface {
	isEvent()
}

// StateChanged is published on every session state transition.
type StateChanged struct {
	From model.SessionState
	To   model.SessionState
}

// CountdownTick is published once per countdown second. Final marks the last tick.
type CountdownTick struct {
	Remaining int
	Final     bool
}

// FrameCaptured is published after each buffered frame.
type FrameCaptured struct {
	Count  int
	Target int
}

// ResultReady carries a completed attempt.
type ResultReady struct {
	Attempt model.Attempt
}

// NoticeLevel controls how a notice is styled.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notice is a transient user-facing message.
type Notice struct {
	Level   NoticeLevel
	Message string
	TTL     time.Duration
}

// CameraStatus reports camera availability.
type CameraStatus struct {
	Ready bool
	Err   error
}

// ModeChanged is published after a mode or category switch.
type ModeChanged struct {
	Config model.CaptureConfig
}

// TargetChanged is published when the practice target changes.
type TargetChanged struct {
	Target string
}

// OverlayUpdated is published when the landmark cache changes. Overlay is nil when cleared.
type OverlayUpdated struct {
	Overlay *model.Overlay
}

// ProgressUpdated is published after the local progress record is saved.
type ProgressUpdated struct {
	Progress model.Progress
}

// Mastered is published when a syllable is newly marked as mastered.
type Mastered struct {
	ID           string
	PointsEarned int
}

func (StateChanged) isEvent()    {}
func (CountdownTick) isEvent()   {}
func (FrameCaptured) isEvent()   {}
func (ResultReady) isEvent()     {}
func (Notice) isEvent()          {}
func (CameraStatus) isEvent()    {}
func (ModeChanged) isEvent()     {}
func (TargetChanged) isEvent()   {}
func (OverlayUpdated) isEvent()  {}
func (ProgressUpdated) isEvent() {}
func (Mastered) isEvent()        {}

// Bus fans events out to subscribers. Slow subscribers drop events instead of blocking publishers.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscriber
	closed bool
}

type subscriber struct {
	ch     chan Event
	accept func(Event) bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: map[int]subscriber{}}
}

// Subscribe registers a subscriber with the given channel buffer.
// The returned function unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	return b.SubscribeFunc(buffer, nil)
}

// SubscribeFunc is like Subscribe but only delivers events for which accept
// returns true. Rejected events never take buffer space. A nil accept
// receives everything.
func (b *Bus) SubscribeFunc(buffer int, accept func(Event) bool) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = subscriber{ch: ch, accept: accept}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
}

// Publish delivers ev to every subscriber with room in its buffer.
// A nil bus is a valid no-op publisher.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.accept != nil && !sub.accept(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
