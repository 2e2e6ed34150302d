// Package progress keeps the local progress record in step with the server and
// marks syllables as mastered.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/projectlif/liplearn/internal/events"
	"github.com/projectlif/liplearn/internal/metrics"
	"github.com/projectlif/liplearn/internal/model"
)

// StorageKey is the fixed key of the local progress record.
const StorageKey = "liplearn_progress"

const (
	// DefaultThreshold is the minimum accuracy that masters a syllable.
	DefaultThreshold = 0.75
	// DefaultSyncInterval is the period of background pushes.
	DefaultSyncInterval = 30 * time.Second

	offlineMasteryPoints = 50
	finalPushTimeout     = 5 * time.Second
)

// Store persists the local record and the attempt log.
type Store interface {
	GetValue(ctx context.Context, key string) (string, bool, error)
	PutValue(ctx context.Context, key, value string) error
	InsertAttempt(ctx context.Context, a model.Attempt) error
}

// Remote is the server side of progress tracking.
type Remote interface {
	GetProgress(ctx context.Context) (model.Progress, error)
	SyncProgress(ctx context.Context, p model.Progress) error
	MarkMastered(ctx context.Context, id string) (model.MasteryResult, error)
}

// Options configures a Manager. Remote may be nil for offline use.
type Options struct {
	Store     Store
	Remote    Remote
	Bus       *events.Bus
	Logger    zerolog.Logger
	Threshold float64
	Now       func() time.Time
}

// Manager owns the in-memory copy of the local progress record.
type Manager struct {
	store     Store
	remote    Remote
	bus       *events.Bus
	log       zerolog.Logger
	threshold float64
	now       func() time.Time

	mu       sync.Mutex
	progress model.Progress
}

// New returns a Manager with an empty record. Call Load to read the stored one.
func New(opts Options) *Manager {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:     opts.Store,
		remote:    opts.Remote,
		bus:       opts.Bus,
		log:       opts.Logger.With().Str("component", "progress").Logger(),
		threshold: opts.Threshold,
		now:       opts.Now,
		progress:  model.Progress{Completed: []string{}},
	}
}

// Threshold returns the mastery accuracy threshold.
func (m *Manager) Threshold() float64 {
	return m.threshold
}

// Load reads the local record. A missing record yields an empty one.
func (m *Manager) Load(ctx context.Context) (model.Progress, error) {
	raw, ok, err := m.store.GetValue(ctx, StorageKey)
	if err != nil {
		return model.Progress{}, fmt.Errorf("failed to read progress: %w", err)
	}
	p := model.Progress{Completed: []string{}}
	if ok {
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return model.Progress{}, fmt.Errorf("failed to decode progress: %w", err)
		}
		if p.Completed == nil {
			p.Completed = []string{}
		}
	}
	m.mu.Lock()
	m.progress = p
	m.mu.Unlock()
	return clone(p), nil
}

// Current returns a copy of the in-memory record.
func (m *Manager) Current() model.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.progress)
}

// Save stores p as the local record and publishes it.
func (m *Manager) Save(ctx context.Context, p model.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(ctx, p)
}

func (m *Manager) saveLocked(ctx context.Context, p model.Progress) error {
	p.LastUpdated = m.now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := m.store.PutValue(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	m.progress = clone(p)
	m.bus.Publish(events.ProgressUpdated{Progress: clone(p)})
	return nil
}

// Merge combines a local and a server record: the union of completed ids
// (local order first), the larger points and the larger total time.
func Merge(local, server model.Progress) model.Progress {
	out := model.Progress{
		Completed:   make([]string, 0, len(local.Completed)+len(server.Completed)),
		Points:      max(local.Points, server.Points),
		TotalTime:   max(local.TotalTime, server.TotalTime),
		LastUpdated: local.LastUpdated,
	}
	seen := map[string]bool{}
	for _, list := range [][]string{local.Completed, server.Completed} {
		for _, id := range list {
			key := strings.ToLower(id)
			if seen[key] {
				continue
			}
			seen[key] = true
			out.Completed = append(out.Completed, id)
		}
	}
	return out
}

// SyncFromServer merges the server record into the local one and saves it.
func (m *Manager) SyncFromServer(ctx context.Context) (err error) {
	if m.remote == nil {
		return nil
	}
	defer func() { metrics.ProgressSync("pull", err) }()
	server, err := m.remote.GetProgress(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch server progress: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(ctx, Merge(m.progress, server))
}

// SyncToServer pushes the local record.
func (m *Manager) SyncToServer(ctx context.Context) (err error) {
	if m.remote == nil {
		return nil
	}
	defer func() { metrics.ProgressSync("push", err) }()
	if err := m.remote.SyncProgress(ctx, m.Current()); err != nil {
		return fmt.Errorf("failed to push progress: %w", err)
	}
	return nil
}

// RunSync pushes the local record every interval until ctx is done, then
// pushes once more.
func (m *Manager) RunSync(ctx context.Context, interval time.Duration) {
	if m.remote == nil {
		return
	}
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalPushTimeout)
			if err := m.SyncToServer(final); err != nil {
				m.log.Warn().Err(err).Msg("final progress push failed")
			}
			cancel()
			return
		case <-ticker.C:
			if err := m.SyncToServer(ctx); err != nil {
				m.log.Debug().Err(err).Msg("progress push failed")
			}
		}
	}
}

// AddPracticeTime adds d, in whole seconds, to the total practice time.
func (m *Manager) AddPracticeTime(ctx context.Context, d time.Duration) error {
	secs := int(d / time.Second)
	if secs <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := clone(m.progress)
	p.TotalTime += secs
	return m.saveLocked(ctx, p)
}

// ObserveAttempt marks the attempt's target as mastered when a syllable attempt
// hit its target at or above the threshold. It reports whether a new mastery
// was recorded. An unreachable server falls back to a local mark worth 50 points.
func (m *Manager) ObserveAttempt(ctx context.Context, a model.Attempt) (bool, error) {
	if a.Mode != model.ModeSyllable || !a.Hit() || a.Accuracy < m.threshold {
		return false, nil
	}
	id := strings.ToLower(a.Target)
	if m.Current().IsCompleted(id) {
		return false, nil
	}

	var (
		res model.MasteryResult
		err error
	)
	if m.remote != nil {
		res, err = m.remote.MarkMastered(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.progress.IsCompleted(id) {
		return false, nil
	}
	p := clone(m.progress)
	p.Completed = append(p.Completed, id)
	earned := offlineMasteryPoints
	switch {
	case m.remote != nil && err == nil && !res.Success:
		// Already mastered on the server.
		p.Points = max(p.Points, res.TotalPoints)
		if serr := m.saveLocked(ctx, p); serr != nil {
			return false, serr
		}
		return false, nil
	case m.remote != nil && err == nil:
		earned = res.PointsEarned
		p.Points = res.TotalPoints
	default:
		if err != nil {
			m.log.Warn().Err(err).Str("syllable", id).Msg("mastery request failed, marking locally")
		}
		p.Points += earned
	}
	if serr := m.saveLocked(ctx, p); serr != nil {
		return false, serr
	}
	m.log.Info().Str("syllable", id).Int("points", earned).Msg("syllable mastered")
	m.bus.Publish(events.Mastered{ID: id, PointsEarned: earned})
	return true, nil
}

// IsAttemptEvent reports whether ev carries a completed attempt. Pass it to
// events.Bus.SubscribeFunc for the subscription handed to Watch.
func IsAttemptEvent(ev events.Event) bool {
	_, ok := ev.(events.ResultReady)
	return ok
}

// Watch records every completed attempt from sub and checks it for mastery
// until ctx is done or sub is closed. Attempts are stored as they arrive;
// mastery checks run in order on a separate goroutine so a slow server never
// stalls the subscription. Pending checks finish before Watch returns on a
// closed sub.
func (m *Manager) Watch(ctx context.Context, sub <-chan events.Event) {
	work := make(chan model.Attempt)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for a := range work {
			if _, err := m.ObserveAttempt(ctx, a); err != nil {
				m.log.Warn().Err(err).Msg("failed to record mastery")
			}
		}
	}()
	defer func() {
		close(work)
		<-done
	}()

	var queue []model.Attempt
	for sub != nil || len(queue) > 0 {
		var (
			out  chan<- model.Attempt
			next model.Attempt
		)
		if len(queue) > 0 {
			out, next = work, queue[0]
		}
		select {
		case <-ctx.Done():
			return
		case out <- next:
			queue = queue[1:]
		case ev, ok := <-sub:
			if !ok {
				sub = nil
				continue
			}
			ready, isResult := ev.(events.ResultReady)
			if !isResult {
				continue
			}
			if err := m.store.InsertAttempt(ctx, ready.Attempt); err != nil {
				m.log.Warn().Err(err).Msg("failed to store attempt")
			}
			queue = append(queue, ready.Attempt)
		}
	}
}

func clone(p model.Progress) model.Progress {
	p.Completed = append([]string{}, p.Completed...)
	return p
}
