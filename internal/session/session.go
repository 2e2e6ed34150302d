// Package session implements the recording state machine: countdown, fixed-cadence
// capture, buffer hand-off, submission and session statistics.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/projectlif/liplearn/internal/camera"
	"github.com/projectlif/liplearn/internal/catalog"
	"github.com/projectlif/liplearn/internal/events"
	"github.com/projectlif/liplearn/internal/metrics"
	"github.com/projectlif/liplearn/internal/model"
	"github.com/projectlif/liplearn/internal/stats"
)

const (
	countdownTicks   = 3
	countdownPeriod  = time.Second
	defaultNoticeTTL = 3 * time.Second
)

// User-facing notices.
const (
	msgCameraReady     = "Camera initialized successfully!"
	msgCameraFailed    = "Failed to access camera. Please check permissions."
	msgNoFrames        = "No frames captured. Please try again."
	msgSubmitFailed    = "Error processing recording. Please try again."
	msgRecordCancelled = "Recording cancelled"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session is closed")

// Predictor classifies a finished recording.
type Predictor interface {
	Predict(ctx context.Context, req model.PredictionRequest) (model.PredictionResult, error)
}

// Prober runs alongside the camera until its context is cancelled.
type Prober interface {
	Run(ctx context.Context)
}

// Options configures a Session. Camera and Predictor are required.
type Options struct {
	Camera    camera.Source
	Predictor Predictor
	Bus       *events.Bus
	Clock     Clock
	Cue       Cue
	Tracker   *stats.Tracker
	Prober    Prober
	Logger    zerolog.Logger
	Mode      model.Mode
	Category  string
	Target    string
	NoticeTTL time.Duration
}

// Session owns the camera, the recording buffer and the state machine.
// All methods are safe for concurrent use.
type Session struct {
	camera    camera.Source
	predictor Predictor
	bus       *events.Bus
	clock     Clock
	cue       Cue
	tracker   *stats.Tracker
	prober    Prober
	log       zerolog.Logger
	noticeTTL time.Duration

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       model.SessionState
	cfg         model.CaptureConfig
	target      string
	buffer      [][]byte
	active      model.CaptureConfig
	activeTgt   string
	gen         uint64
	cancelRec   context.CancelFunc
	cameraReady bool
	closed      bool
}

// New builds an idle session. The camera is not opened until OpenCamera.
func New(opts Options) *Session {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Cue == nil {
		opts.Cue = silentCue{}
	}
	if opts.Tracker == nil {
		opts.Tracker = stats.NewTracker(opts.Clock.Now())
	}
	if opts.Mode == "" {
		opts.Mode = model.ModeSyllable
	}
	if opts.Category == "" {
		opts.Category = catalog.DefaultCategory(opts.Mode)
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = defaultNoticeTTL
	}
	root, cancel := context.WithCancel(context.Background())
	return &Session{
		camera:    opts.Camera,
		predictor: opts.Predictor,
		bus:       opts.Bus,
		clock:     opts.Clock,
		cue:       opts.Cue,
		tracker:   opts.Tracker,
		prober:    opts.Prober,
		log:       opts.Logger.With().Str("component", "session").Logger(),
		noticeTTL: opts.NoticeTTL,
		root:      root,
		cancel:    cancel,
		state:     model.StateIdle,
		cfg:       model.CaptureConfigFor(opts.Mode, opts.Category),
		target:    opts.Target,
	}
}

// OpenCamera acquires the camera and starts the landmark probe.
// A failure leaves the session in the terminal Error state.
func (s *Session) OpenCamera(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.mu.Unlock()

	if err := s.camera.Open(ctx); err != nil {
		s.mu.Lock()
		s.cameraReady = false
		s.setStateLocked(model.StateError)
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("camera unavailable")
		s.bus.Publish(events.CameraStatus{Ready: false, Err: err})
		s.notify(events.NoticeError, msgCameraFailed)
		return fmt.Errorf("failed to open camera: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if cerr := s.camera.Close(); cerr != nil {
			// Best-effort release after a racing Close.
			_ = cerr
		}
		return ErrClosed
	}
	s.cameraReady = true
	if s.state == model.StateError {
		s.setStateLocked(model.StateIdle)
	}
	if s.prober != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.prober.Run(s.root)
		}()
	}
	s.mu.Unlock()

	s.log.Info().Msg("camera ready")
	s.bus.Publish(events.CameraStatus{Ready: true})
	s.notify(events.NoticeSuccess, msgCameraReady)
	return nil
}

// Start begins the countdown. It is a no-op while a recording is already
// counting down, capturing or submitting.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if !s.cameraReady {
		return model.ErrCameraNotReady
	}
	switch s.state {
	case model.StateCountingDown, model.StateRecording, model.StateSubmitting:
		return nil
	}

	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(s.root)
	s.cancelRec = cancel
	s.buffer = nil
	s.active, s.activeTgt = s.cfg, s.target
	cfg := s.cfg
	s.setStateLocked(model.StateCountingDown)

	s.wg.Add(1)
	go s.run(ctx, gen, cfg)
	return nil
}

// Stop ends the countdown without submitting, or ends the recording early and
// submits the frames captured so far.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	switch s.state {
	case model.StateCountingDown:
		s.abortLocked()
		metrics.RecordingFinished("cancelled")
		s.setStateLocked(model.StateIdle)
	case model.StateRecording:
		s.submitLocked()
	}
}

// Cancel abandons the countdown or recording without submitting.
// From ShowingResult it dismisses the result.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case model.StateCountingDown:
		s.abortLocked()
		metrics.RecordingFinished("cancelled")
		s.setStateLocked(model.StateIdle)
		s.mu.Unlock()
	case model.StateRecording:
		s.abortLocked()
		s.buffer = nil
		metrics.RecordingFinished("cancelled")
		s.setStateLocked(model.StateIdle)
		s.mu.Unlock()
		s.notify(events.NoticeInfo, msgRecordCancelled)
	case model.StateShowingResult:
		s.setStateLocked(model.StateIdle)
		s.mu.Unlock()
	default:
		s.mu.Unlock()
	}
}

// SetMode aborts any countdown or recording, switches the capture config and
// resets the category to the mode's default. An in-flight submission finishes
// under the previous config.
func (s *Session) SetMode(mode model.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || mode == s.cfg.Mode {
		return
	}
	switch s.state {
	case model.StateCountingDown, model.StateRecording:
		s.abortLocked()
		metrics.RecordingFinished("cancelled")
		s.setStateLocked(model.StateIdle)
	}
	s.buffer = nil
	s.cfg = model.CaptureConfigFor(mode, catalog.DefaultCategory(mode))
	s.target = ""
	s.log.Info().Str("mode", string(mode)).Str("category", s.cfg.Category).Msg("mode changed")
	s.bus.Publish(events.ModeChanged{Config: s.cfg})
	s.bus.Publish(events.TargetChanged{Target: ""})
}

// SetCategory selects the category used by the next recording.
func (s *Session) SetCategory(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == s.cfg.Category {
		return
	}
	s.cfg.Category = name
	s.target = ""
	s.bus.Publish(events.ModeChanged{Config: s.cfg})
	s.bus.Publish(events.TargetChanged{Target: ""})
}

// SetTarget sets the label the user intends to say next.
func (s *Session) SetTarget(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = label
	s.bus.Publish(events.TargetChanged{Target: label})
}

// State returns the current state.
func (s *Session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the capture config of the next recording.
func (s *Session) Config() model.CaptureConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Target returns the current practice target.
func (s *Session) Target() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// BufferLen returns the number of frames buffered by the active recording.
func (s *Session) BufferLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// CameraReady reports whether the camera opened successfully.
func (s *Session) CameraReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameraReady
}

// Stats returns a snapshot of the session statistics.
func (s *Session) Stats() model.SessionStats {
	return s.tracker.Snapshot()
}

// Close cancels countdown, capture, probe and any in-flight submission,
// waits for them to exit and releases the camera. The session is left Idle
// and later Stop, Cancel and SetMode calls do nothing.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.cancelRec != nil {
		s.cancelRec()
		s.cancelRec = nil
	}
	s.gen++
	s.buffer = nil
	s.state = model.StateIdle
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	if err := s.camera.Close(); err != nil {
		return fmt.Errorf("failed to close camera: %w", err)
	}
	return nil
}

func (s *Session) run(ctx context.Context, gen uint64, cfg model.CaptureConfig) {
	defer s.wg.Done()
	if !s.countdown(ctx, gen) {
		return
	}
	s.capture(ctx, gen, cfg)
}

// countdown announces 3, 2, 1 one second apart and reports whether recording
// began one second after the final tick.
func (s *Session) countdown(ctx context.Context, gen uint64) bool {
	ticker := s.clock.NewTicker(countdownPeriod)
	defer ticker.Stop()
	for remaining := countdownTicks; remaining >= 1; remaining-- {
		if !s.current(gen, model.StateCountingDown) {
			return false
		}
		final := remaining == 1
		s.bus.Publish(events.CountdownTick{Remaining: remaining, Final: final})
		if final {
			s.cue.Play(CueFinal)
		} else {
			s.cue.Play(CueTick)
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C():
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != model.StateCountingDown {
		return false
	}
	s.setStateLocked(model.StateRecording)
	return true
}

func (s *Session) capture(ctx context.Context, gen uint64, cfg model.CaptureConfig) {
	ticker := s.clock.NewTicker(cfg.FrameInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
		if s.captureFrame(ctx, gen, cfg) {
			return
		}
	}
}

// captureFrame buffers one snapshot and reports whether capture is over.
func (s *Session) captureFrame(ctx context.Context, gen uint64, cfg model.CaptureConfig) bool {
	frame, err := s.camera.Snapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		s.log.Debug().Err(err).Msg("frame snapshot failed")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != model.StateRecording {
		return true
	}
	s.buffer = append(s.buffer, frame)
	count, target := len(s.buffer), cfg.TargetFrameCount()
	metrics.FrameCaptured(string(cfg.Mode))
	s.bus.Publish(events.FrameCaptured{Count: count, Target: target})
	if count < target {
		return false
	}
	s.submitLocked()
	return true
}

// submitLocked cancels capture, hands the buffer off and starts the submission.
func (s *Session) submitLocked() {
	if s.cancelRec != nil {
		s.cancelRec()
		s.cancelRec = nil
	}
	frames := s.buffer
	s.buffer = nil
	s.setStateLocked(model.StateSubmitting)

	gen, cfg, target := s.gen, s.active, s.activeTgt
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.submit(gen, cfg, target, frames)
	}()
}

// submit runs on the session root context so stopping capture never cancels it.
func (s *Session) submit(gen uint64, cfg model.CaptureConfig, target string, frames [][]byte) {
	if len(frames) == 0 {
		metrics.RecordingFinished("empty")
		if s.finish(gen, model.StateIdle) {
			s.notify(events.NoticeError, msgNoFrames)
		}
		return
	}

	result, err := s.predictor.Predict(s.root, model.PredictionRequest{
		Mode:     cfg.Mode,
		Category: cfg.Category,
		Frames:   frames,
	})
	if err != nil {
		if s.root.Err() != nil {
			return
		}
		metrics.RecordingFinished("failed")
		s.log.Warn().Err(err).Str("mode", string(cfg.Mode)).Int("frames", len(frames)).Msg("prediction failed")
		if s.finish(gen, model.StateError, model.StateIdle) {
			s.notify(events.NoticeError, msgSubmitFailed)
		}
		return
	}

	attempt := model.Attempt{
		ID:         uuid.NewString(),
		RecordedAt: s.clock.Now(),
		Mode:       cfg.Mode,
		Category:   cfg.Category,
		Target:     target,
		Label:      result.TopLabel(),
		Accuracy:   result.TopScore(),
		FrameCount: len(frames),
		Result:     result,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen || s.state != model.StateSubmitting {
		return
	}
	s.tracker.Record(attempt)
	metrics.RecordingFinished("submitted")
	s.log.Info().
		Str("mode", string(cfg.Mode)).
		Str("label", attempt.Label).
		Float64("accuracy", attempt.Accuracy).
		Int("frames", attempt.FrameCount).
		Msg("prediction received")
	s.setStateLocked(model.StateShowingResult)
	s.bus.Publish(events.ResultReady{Attempt: attempt})
}

// finish walks a still-current submission through states and reports whether it did.
func (s *Session) finish(gen uint64, states ...model.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen || s.state != model.StateSubmitting {
		return false
	}
	for _, st := range states {
		s.setStateLocked(st)
	}
	return true
}

func (s *Session) current(gen uint64, state model.SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && s.state == state
}

// abortLocked cancels the active countdown or capture and fences its goroutine.
func (s *Session) abortLocked() {
	if s.cancelRec != nil {
		s.cancelRec()
		s.cancelRec = nil
	}
	s.gen++
}

func (s *Session) setStateLocked(to model.SessionState) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.log.Debug().Stringer("from", from).Stringer("to", to).Msg("state changed")
	s.bus.Publish(events.StateChanged{From: from, To: to})
}

func (s *Session) notify(level events.NoticeLevel, msg string) {
	s.bus.Publish(events.Notice{Level: level, Message: msg, TTL: s.noticeTTL})
}
