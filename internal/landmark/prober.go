// Package landmark runs the periodic mouth-landmark probe that feeds the overlay.
package landmark

import (
	"bytes"
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	// Registered for image.DecodeConfig on probed frames.
	_ "image/jpeg"

	"github.com/rs/zerolog"

	"github.com/projectlif/liplearn/internal/camera"
	"github.com/projectlif/liplearn/internal/events"
	"github.com/projectlif/liplearn/internal/metrics"
	"github.com/projectlif/liplearn/internal/model"
	"github.com/projectlif/liplearn/internal/resilience"
)

// DefaultInterval is the probe period (5 Hz).
const DefaultInterval = 200 * time.Millisecond

// Detector returns mouth landmarks for one frame.
type Detector interface {
	DetectLandmarks(ctx context.Context, frame []byte) (model.Landmarks, error)
}

// Options tunes a Prober. Zero values pick defaults.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Breaker  *resilience.Breaker
	Bus      *events.Bus
	Logger   zerolog.Logger
}

// Prober snapshots the camera on a fixed period and caches the latest landmark answer.
// Probes may overlap; whichever response lands last wins.
type Prober struct {
	src      camera.Source
	detector Detector
	interval time.Duration
	timeout  time.Duration
	breaker  *resilience.Breaker
	bus      *events.Bus
	log      zerolog.Logger

	overlay  atomic.Pointer[model.Overlay]
	probes   atomic.Int64
	failures atomic.Int64
}

// New returns a prober reading from src.
func New(src camera.Source, detector Detector, opts Options) *Prober {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * opts.Interval
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewBreaker("landmarks", 5, 10*time.Second)
	}
	return &Prober{
		src:      src,
		detector: detector,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		breaker:  opts.Breaker,
		bus:      opts.Bus,
		log:      opts.Logger.With().Str("component", "landmark").Logger(),
	}
}

// Run probes until ctx is done, then waits for in-flight probes.
func (p *Prober) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.log.Debug().Dur("interval", p.interval).Msg("landmark probe started")
	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Msg("landmark probe stopped")
			return
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Probe(ctx)
			}()
		}
	}
}

// Probe performs a single snapshot and detection. Errors are logged and counted only.
// The breaker guards the detection call; camera failures never trip it.
func (p *Prober) Probe(ctx context.Context) {
	p.probes.Add(1)
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	frame, err := p.src.Snapshot(probeCtx)
	if err != nil {
		p.fail(ctx, err)
		return
	}
	var lm model.Landmarks
	err = p.breaker.Call(func() error {
		var err error
		lm, err = p.detector.DetectLandmarks(probeCtx, frame)
		return err
	})
	metrics.BreakerState(p.breaker.Name(), int(p.breaker.State()))
	switch {
	case errors.Is(err, resilience.ErrOpen):
		metrics.LandmarkProbe("skipped")
		return
	case err != nil:
		p.fail(ctx, err)
		return
	}

	if !lm.Success {
		metrics.LandmarkProbe("miss")
		p.store(nil)
		return
	}
	metrics.LandmarkProbe("ok")
	ov := &model.Overlay{Landmarks: lm, CapturedAt: time.Now()}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(frame)); err == nil {
		ov.FrameWidth = cfg.Width
		ov.FrameHeight = cfg.Height
	}
	p.store(ov)
}

func (p *Prober) fail(ctx context.Context, err error) {
	p.failures.Add(1)
	metrics.LandmarkProbe("error")
	if ctx.Err() == nil {
		p.log.Debug().Err(err).Msg("landmark probe failed")
	}
}

func (p *Prober) store(ov *model.Overlay) {
	p.overlay.Store(ov)
	p.bus.Publish(events.OverlayUpdated{Overlay: ov})
}

// Latest returns the cached overlay, or nil when there is none.
func (p *Prober) Latest() *model.Overlay {
	return p.overlay.Load()
}

// Stats returns probe and failure counts.
func (p *Prober) Stats() (probes, failures int64) {
	return p.probes.Load(), p.failures.Load()
}
