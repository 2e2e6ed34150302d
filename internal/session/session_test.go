package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/projectlif/liplearn/internal/api"
	"github.com/projectlif/liplearn/internal/events"
	"github.com/projectlif/liplearn/internal/landmark"
	"github.com/projectlif/liplearn/internal/model"
)

type fakeTicker struct {
	d  time.Duration
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop() {}

// fire delivers one tick and waits until the session goroutine takes it.
func (t *fakeTicker) fire(tb testing.TB) {
	tb.Helper()
	select {
	case t.ch <- time.Time{}:
	case <-time.After(2 * time.Second):
		tb.Fatalf("tick (%s) was not consumed", t.d)
	}
}

func (t *fakeTicker) fireN(tb testing.TB, n int) {
	tb.Helper()
	for i := 0; i < n; i++ {
		t.fire(tb)
	}
}

type fakeClock struct {
	tickers chan *fakeTicker
	now     time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{tickers: make(chan *fakeTicker, 16), now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{d: d, ch: make(chan time.Time)}
	c.tickers <- t
	return t
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) next(t *testing.T) *fakeTicker {
	t.Helper()
	select {
	case tk := <-c.tickers:
		return tk
	case <-time.After(2 * time.Second):
		t.Fatalf("no ticker created")
		return nil
	}
}

type fakeCamera struct {
	openErr error

	mu     sync.Mutex
	shots  int
	closed bool
}

func (c *fakeCamera) Open(context.Context) error { return c.openErr }

func (c *fakeCamera) Snapshot(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shots++
	return []byte{0xFF, 0xD8, byte(c.shots), 0xFF, 0xD9}, nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakePredictor struct {
	result model.PredictionResult
	err    error
	block  chan struct{}

	mu   sync.Mutex
	reqs []model.PredictionRequest
}

func (p *fakePredictor) Predict(ctx context.Context, req model.PredictionRequest) (model.PredictionResult, error) {
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	p.mu.Unlock()
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func (p *fakePredictor) requests() []model.PredictionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.PredictionRequest(nil), p.reqs...)
}

type recordingCue struct {
	mu    sync.Mutex
	kinds []CueKind
}

func (c *recordingCue) Play(kind CueKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
}

func (c *recordingCue) played() []CueKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]CueKind(nil), c.kinds...)
}

type harness struct {
	session   *Session
	clock     *fakeClock
	camera    *fakeCamera
	predictor *fakePredictor
	cue       *recordingCue
	events    <-chan events.Event
}

func newHarness(t *testing.T, predictor *fakePredictor, configure func(*Options)) *harness {
	t.Helper()
	bus := events.NewBus()
	sub, unsubscribe := bus.Subscribe(512)
	h := &harness{
		clock:     newFakeClock(),
		camera:    &fakeCamera{},
		predictor: predictor,
		cue:       &recordingCue{},
		events:    sub,
	}
	opts := Options{
		Camera:    h.camera,
		Predictor: predictor,
		Bus:       bus,
		Clock:     h.clock,
		Cue:       h.cue,
		Logger:    zerolog.Nop(),
		Mode:      model.ModeSyllable,
		Target:    "ba",
	}
	if configure != nil {
		configure(&opts)
	}
	h.session = New(opts)
	t.Cleanup(func() {
		_ = h.session.Close()
		unsubscribe()
	})
	return h
}

func (h *harness) open(t *testing.T) {
	t.Helper()
	if err := h.session.OpenCamera(context.Background()); err != nil {
		t.Fatalf("open camera: %v", err)
	}
}

// startRecording runs the countdown and returns the capture ticker.
func (h *harness) startRecording(t *testing.T) *fakeTicker {
	t.Helper()
	if err := h.session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	countdown := h.clock.next(t)
	if countdown.d != time.Second {
		t.Fatalf("expected 1s countdown ticker, got %s", countdown.d)
	}
	countdown.fireN(t, 3)
	capture := h.clock.next(t)
	if capture.d != 33*time.Millisecond {
		t.Fatalf("expected 33ms capture ticker, got %s", capture.d)
	}
	if got := h.session.State(); got != model.StateRecording {
		t.Fatalf("expected recording, got %s", got)
	}
	return capture
}

func waitFor[T events.Event](t *testing.T, ch <-chan events.Event, match func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event stream closed")
			}
			if e, ok := ev.(T); ok && (match == nil || match(e)) {
				return e
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func syllableResult() *fakePredictor {
	return &fakePredictor{result: model.SyllablePrediction{Label: "ba", Accuracy: 0.92}}
}

func TestRecordingAutoSubmitsFullBuffer(t *testing.T) {
	h := newHarness(t, syllableResult(), nil)
	h.open(t)

	capture := h.startRecording(t)
	capture.fireN(t, 22)
	ready := waitFor[events.ResultReady](t, h.events, nil)

	reqs := h.predictor.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(reqs))
	}
	if len(reqs[0].Frames) != 22 || reqs[0].Mode != model.ModeSyllable || reqs[0].Category != "vowels" {
		t.Fatalf("unexpected request: mode=%s category=%s frames=%d", reqs[0].Mode, reqs[0].Category, len(reqs[0].Frames))
	}
	if ready.Attempt.Label != "ba" || ready.Attempt.Target != "ba" || !ready.Attempt.Hit() {
		t.Fatalf("unexpected attempt %+v", ready.Attempt)
	}
	if got := h.session.State(); got != model.StateShowingResult {
		t.Fatalf("expected showing-result, got %s", got)
	}
	st := h.session.Stats()
	if st.TotalPredictions != 1 || st.AccuracySum != 0.92 {
		t.Fatalf("unexpected stats %+v", st)
	}
	cues := h.cue.played()
	if len(cues) != 3 || cues[0] != CueTick || cues[1] != CueTick || cues[2] != CueFinal {
		t.Fatalf("unexpected cues %v", cues)
	}
}

func TestCountdownTicksThreeTwoOne(t *testing.T) {
	h := newHarness(t, syllableResult(), nil)
	h.open(t)
	if err := h.session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	countdown := h.clock.next(t)
	for _, want := range []int{3, 2, 1} {
		tick := waitFor[events.CountdownTick](t, h.events, nil)
		if tick.Remaining != want || tick.Final != (want == 1) {
			t.Fatalf("expected tick %d, got %+v", want, tick)
		}
		if got := h.session.State(); got != model.StateCountingDown {
			t.Fatalf("expected counting-down, got %s", got)
		}
		countdown.fire(t)
	}
	waitFor[events.StateChanged](t, h.events, func(e events.StateChanged) bool {
		return e.To == model.StateRecording
	})
}

func TestStartIsIdempotentDuringCountdown(t *testing.T) {
	h := newHarness(t, syllableResult(), nil)
	h.open(t)
	if err := h.session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.next(t)
	if err := h.session.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	select {
	case <-h.clock.tickers:
		t.Fatalf("second start created another countdown")
	case <-time.After(50 * time.Millisecond):
	}
	if got := h.session.State(); got != model.StateCountingDown {
		t.Fatalf("expected counting-down, got %s", got)
	}
}

func TestCancelDuringCountdown(t *testing.T) {
	h := newHarness(t, syllableResult(), nil)
	h.open(t)
	if err := h.session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	h.clock.next(t)
	h.session.Cancel()
	if got := h.session.State(); got != model.StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if err := h.session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := len(h.predictor.requests()); n != 0 {
		t.Fatalf("expected no submissions, got %d", n)
	}
}

func TestStopDuringCountdownDoesNotSubmit(t *testing.T) {
	h := newHarness(t, syllableResult(), nil)
	h.open(t)
	if err := h.session.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	countdown := h.clock.next(t)
	countdown.fire(t)
	h.session.Stop()
	if got := h.session.State(); got != model.StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	_ = h.session.Close()
	if n := len(h.predictor.requests()); n != 0 {
		t.Fatalf("expected no submissions, got %d", n)
	}
}

func TestStopSubmitsPartialBuffer(t *testing.T) {
	h := newHarness(t, syllableResult(), nil)
	h.open(t)
	capture := h.startRecording(t)
	capture.fireN(t, 5)
	waitFor[events.FrameCaptured](t, h.events, func(e events.FrameCaptured) bool { return e.Count == 5 })

	h.session.Stop()
	waitFor[events.ResultReady](t, h.events, nil)
	reqs := h.predictor.requests()
	if len(reqs) != 1 || len(reqs[0].Frames) != 5 {
		t.Fatalf("expected one submission of 5 frames, got %+v", reqs)
	}
}

func TestCancelDuringRecordingDiscardsBuffer(t *testing.T) {
	h := newHarness(t, syllableResult(), nil)
	h.open(t)
	capture := h.startRecording(t)
	capture.fireN(t, 3)
	waitFor[events.FrameCaptured](t, h.events, func(e events.FrameCaptured) bool { return e.Count == 3 })

	h.session.Cancel()
	if got := h.session.State(); got != model.StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if n := h.session.BufferLen(); n != 0 {
		t.Fatalf("expected empty buffer, got %d", n)
	}
	notice := waitFor[events.Notice](t, h.events, func(n events.Notice) bool { return n.Level == events.NoticeInfo })
	if notice.Message != "Recording cancelled" {
		t.Fatalf("unexpected notice %q", notice.Message)
	}
	_ = h.session.Close()
	if n := len(h.predictor.requests()); n != 0 {
		t.Fatalf("expected no submissions, got %d", n)
	}
}

func TestSetModeAbortsAndResizes(t *testing.T) {
	pred := &fakePredictor{result: model.WordPredictions{Ranked: []model.WordCandidate{
		{Word: "bahay", Confidence: 0.80},
		{Word: "buhay", Confidence: 0.15},
	}}}
	h := newHarness(t, pred, nil)
	h.open(t)
	capture := h.startRecording(t)
	capture.fireN(t, 4)
	waitFor[events.FrameCaptured](t, h.events, func(e events.FrameCaptured) bool { return e.Count == 4 })

	h.session.SetMode(model.ModeWord)
	if got := h.session.State(); got != model.StateIdle {
		t.Fatalf("expected idle after mode switch, got %s", got)
	}
	if n := h.session.BufferLen(); n != 0 {
		t.Fatalf("expected cleared buffer, got %d", n)
	}
	cfg := h.session.Config()
	if cfg.TargetFrameCount() != 44 || cfg.Category != "common" {
		t.Fatalf("unexpected config %+v (%d frames)", cfg, cfg.TargetFrameCount())
	}
	if h.session.Target() != "" {
		t.Fatalf("expected target cleared")
	}

	capture = h.startRecording(t)
	capture.fireN(t, 44)
	ready := waitFor[events.ResultReady](t, h.events, nil)
	reqs := h.predictor.requests()
	if len(reqs) != 1 || len(reqs[0].Frames) != 44 || reqs[0].Mode != model.ModeWord {
		t.Fatalf("unexpected submissions %d", len(reqs))
	}
	if ready.Attempt.Label != "bahay" || ready.Attempt.Accuracy != 0.80 {
		t.Fatalf("unexpected attempt %+v", ready.Attempt)
	}
	if st := h.session.Stats(); st.TotalPredictions != 1 || st.AccuracySum != 0 {
		t.Fatalf("word prediction must count without accuracy, got %+v", st)
	}
}

func TestSetCategoryAppliesToNextRecording(t *testing.T) {
	h := newHarness(t, syllableResult(), nil)
	h.open(t)
	capture := h.startRecording(t)
	h.session.SetCategory("b")
	capture.fireN(t, 22)
	waitFor[events.ResultReady](t, h.events, nil)
	if got := h.predictor.requests()[0].Category; got != "vowels" {
		t.Fatalf("expected running recording to keep vowels, got %s", got)
	}
	if got := h.session.Config().Category; got != "b" {
		t.Fatalf("expected next category b, got %s", got)
	}
}

func TestZeroFramesReturnsToIdle(t *testing.T) {
	h := newHarness(t, syllableResult(), nil)
	h.open(t)
	h.startRecording(t)
	h.session.Stop()

	notice := waitFor[events.Notice](t, h.events, func(n events.Notice) bool { return n.Level == events.NoticeError })
	if notice.Message != "No frames captured. Please try again." {
		t.Fatalf("unexpected notice %q", notice.Message)
	}
	if got := h.session.State(); got != model.StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}
	if n := len(h.predictor.requests()); n != 0 {
		t.Fatalf("expected no submissions, got %d", n)
	}
}

func TestSubmitFailureReturnsToIdle(t *testing.T) {
	pred := &fakePredictor{err: fmt.Errorf("predict: %w", model.ErrNetwork)}
	h := newHarness(t, pred, nil)
	h.open(t)
	capture := h.startRecording(t)
	capture.fireN(t, 22)

	waitFor[events.StateChanged](t, h.events, func(e events.StateChanged) bool { return e.To == model.StateError })
	waitFor[events.StateChanged](t, h.events, func(e events.StateChanged) bool {
		return e.From == model.StateError && e.To == model.StateIdle
	})
	notice := waitFor[events.Notice](t, h.events, func(n events.Notice) bool { return n.Level == events.NoticeError })
	if notice.Message != "Error processing recording. Please try again." {
		t.Fatalf("unexpected notice %q", notice.Message)
	}
	if st := h.session.Stats(); st.TotalPredictions != 0 {
		t.Fatalf("failed submission must not count, got %+v", st)
	}
	if len(pred.requests()) != 1 {
		t.Fatalf("expected a single attempt without retry")
	}
}

func TestPermissionDeniedBlocksStart(t *testing.T) {
	h := newHarness(t, syllableResult(), nil)
	h.camera.openErr = fmt.Errorf("open /dev/video0: %w", model.ErrPermissionDenied)

	err := h.session.OpenCamera(context.Background())
	if !errors.Is(err, model.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if got := h.session.State(); got != model.StateError {
		t.Fatalf("expected error state, got %s", got)
	}
	if err := h.session.Start(); !errors.Is(err, model.ErrCameraNotReady) {
		t.Fatalf("expected camera not ready, got %v", err)
	}
	status := waitFor[events.CameraStatus](t, h.events, nil)
	if status.Ready {
		t.Fatalf("expected camera status not ready")
	}
}

func TestStartBeforeOpen(t *testing.T) {
	h := newHarness(t, syllableResult(), nil)
	if err := h.session.Start(); !errors.Is(err, model.ErrCameraNotReady) {
		t.Fatalf("expected camera not ready, got %v", err)
	}
}

func TestLandmarkFailuresDoNotDisturbCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	var prober *landmark.Prober
	h := newHarness(t, syllableResult(), func(opts *Options) {
		client := api.NewClient(srv.URL, srv.Client(), zerolog.Nop())
		prober = landmark.New(opts.Camera, client, landmark.Options{Interval: 2 * time.Millisecond})
		opts.Prober = prober
	})
	h.open(t)

	capture := h.startRecording(t)
	for i := 0; i < 22; i++ {
		capture.fire(t)
		time.Sleep(time.Millisecond)
	}
	waitFor[events.ResultReady](t, h.events, nil)
	if reqs := h.predictor.requests(); len(reqs[0].Frames) != 22 {
		t.Fatalf("expected 22 frames, got %d", len(reqs[0].Frames))
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, failures := prober.Stats(); failures > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected probe failures to be counted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if prober.Latest() != nil {
		t.Fatalf("expected no overlay")
	}
}

func TestCloseDuringSubmissionIsSilent(t *testing.T) {
	pred := syllableResult()
	pred.block = make(chan struct{})
	h := newHarness(t, pred, nil)
	h.open(t)
	capture := h.startRecording(t)
	capture.fireN(t, 22)
	waitFor[events.StateChanged](t, h.events, func(e events.StateChanged) bool { return e.To == model.StateSubmitting })

	if err := h.session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !h.camera.closed {
		t.Fatalf("expected camera released")
	}
	for {
		select {
		case ev := <-h.events:
			if n, ok := ev.(events.Notice); ok && n.Level == events.NoticeError {
				t.Fatalf("unexpected error notice after close: %q", n.Message)
			}
			if _, ok := ev.(events.ResultReady); ok {
				t.Fatalf("unexpected result after close")
			}
		default:
			if err := h.session.Start(); !errors.Is(err, ErrClosed) {
				t.Fatalf("expected closed error, got %v", err)
			}
			return
		}
	}
}

func TestStopAfterCloseDoesNotSubmit(t *testing.T) {
	pred := syllableResult()
	h := newHarness(t, pred, nil)
	h.open(t)
	capture := h.startRecording(t)
	capture.fireN(t, 5)

	if err := h.session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := h.session.State(); got != model.StateIdle {
		t.Fatalf("expected idle after close, got %v", got)
	}
	h.session.Stop()
	h.session.Cancel()
	h.session.SetMode(model.ModeWord)

	if got := h.session.State(); got != model.StateIdle {
		t.Fatalf("expected idle, got %v", got)
	}
	if n := h.session.BufferLen(); n != 0 {
		t.Fatalf("expected cleared buffer, got %d", n)
	}
	if reqs := pred.requests(); len(reqs) != 0 {
		t.Fatalf("expected no submission after close, got %d", len(reqs))
	}
	if cfg := h.session.Config(); cfg.Mode != model.ModeSyllable {
		t.Fatalf("expected mode unchanged after close, got %v", cfg.Mode)
	}
}

func TestBellCue(t *testing.T) {
	var buf syncBuffer
	cue := &BellCue{W: &buf}
	cue.Play(CueTick)
	cue.Play(CueFinal)
	if got := buf.String(); got != "\a\a\a" {
		t.Fatalf("unexpected bell output %q", got)
	}
}

type syncBuffer struct {
	mu sync.Mutex
	b  []byte
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b = append(s.b, p...)
	return len(p), nil
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.b)
}
