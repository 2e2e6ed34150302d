package landmark

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/projectlif/liplearn/internal/api"
	"github.com/projectlif/liplearn/internal/events"
	"github.com/projectlif/liplearn/internal/model"
	"github.com/projectlif/liplearn/internal/resilience"
)

type stillSource struct {
	frame []byte
}

func (s *stillSource) Open(context.Context) error { return nil }
func (s *stillSource) Close() error               { return nil }
func (s *stillSource) Snapshot(context.Context) ([]byte, error) {
	return s.frame, nil
}

type brokenSource struct{}

func (brokenSource) Open(context.Context) error { return nil }
func (brokenSource) Close() error               { return nil }
func (brokenSource) Snapshot(context.Context) ([]byte, error) {
	return nil, errors.New("camera unplugged")
}

type scriptedDetector struct {
	mu    sync.Mutex
	calls int
	next  func(call int) (model.Landmarks, error)
}

func (d *scriptedDetector) DetectLandmarks(context.Context, []byte) (model.Landmarks, error) {
	d.mu.Lock()
	d.calls++
	call := d.calls
	d.mu.Unlock()
	return d.next(call)
}

func testFrame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 64, 48)), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestProbeStoresOverlayWithFrameSize(t *testing.T) {
	bus := events.NewBus()
	sub, unsub := bus.Subscribe(4)
	defer unsub()

	det := &scriptedDetector{next: func(int) (model.Landmarks, error) {
		return model.Landmarks{Success: true, MouthBox: &model.Box{X: 1, Y: 2, W: 3, H: 4}}, nil
	}}
	p := New(&stillSource{frame: testFrame(t)}, det, Options{Bus: bus, Logger: zerolog.Nop()})
	p.Probe(context.Background())

	ov := p.Latest()
	if ov == nil || ov.MouthBox == nil {
		t.Fatalf("expected overlay, got %+v", ov)
	}
	if ov.FrameWidth != 64 || ov.FrameHeight != 48 {
		t.Fatalf("unexpected frame size %dx%d", ov.FrameWidth, ov.FrameHeight)
	}
	ev := (<-sub).(events.OverlayUpdated)
	if ev.Overlay != ov {
		t.Fatalf("expected published overlay to match cache")
	}
}

func TestProbeUnsuccessfulClearsOverlay(t *testing.T) {
	det := &scriptedDetector{next: func(call int) (model.Landmarks, error) {
		if call == 1 {
			return model.Landmarks{Success: true, MouthBox: &model.Box{W: 1, H: 1}}, nil
		}
		return model.Landmarks{Success: false}, nil
	}}
	p := New(&stillSource{frame: testFrame(t)}, det, Options{Logger: zerolog.Nop()})
	p.Probe(context.Background())
	if p.Latest() == nil {
		t.Fatalf("expected overlay after first probe")
	}
	p.Probe(context.Background())
	if p.Latest() != nil {
		t.Fatalf("expected overlay to be cleared")
	}
}

func TestProbeErrorKeepsOverlayAndCounts(t *testing.T) {
	det := &scriptedDetector{next: func(call int) (model.Landmarks, error) {
		if call == 1 {
			return model.Landmarks{Success: true}, nil
		}
		return model.Landmarks{}, errors.New("detector down")
	}}
	p := New(&stillSource{frame: testFrame(t)}, det, Options{Logger: zerolog.Nop()})
	p.Probe(context.Background())
	before := p.Latest()
	p.Probe(context.Background())
	if p.Latest() != before {
		t.Fatalf("errors must not touch the overlay")
	}
	probes, failures := p.Stats()
	if probes != 2 || failures != 1 {
		t.Fatalf("unexpected stats probes=%d failures=%d", probes, failures)
	}
}

func TestProbeSkipsWhileBreakerOpen(t *testing.T) {
	det := &scriptedDetector{next: func(int) (model.Landmarks, error) {
		return model.Landmarks{}, errors.New("down")
	}}
	breaker := resilience.NewBreaker("landmarks", 2, time.Hour)
	p := New(&stillSource{frame: testFrame(t)}, det, Options{Breaker: breaker, Logger: zerolog.Nop()})
	for i := 0; i < 5; i++ {
		p.Probe(context.Background())
	}
	if det.calls != 2 {
		t.Fatalf("expected detector to be called twice before the breaker opened, got %d", det.calls)
	}
	if breaker.State() != resilience.StateOpen {
		t.Fatalf("expected open breaker")
	}
}

func TestCameraFailuresLeaveBreakerClosed(t *testing.T) {
	det := &scriptedDetector{next: func(int) (model.Landmarks, error) {
		return model.Landmarks{Success: true}, nil
	}}
	breaker := resilience.NewBreaker("landmarks", 2, time.Hour)
	p := New(brokenSource{}, det, Options{Breaker: breaker, Logger: zerolog.Nop()})
	for i := 0; i < 5; i++ {
		p.Probe(context.Background())
	}
	if breaker.State() != resilience.StateClosed {
		t.Fatalf("camera errors must not open the breaker")
	}
	if det.calls != 0 {
		t.Fatalf("expected no detection without a frame, got %d calls", det.calls)
	}
	probes, failures := p.Stats()
	if probes != 5 || failures != 5 {
		t.Fatalf("unexpected stats probes=%d failures=%d", probes, failures)
	}
}

func TestRunSurvivesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	client := api.NewClient(srv.URL, srv.Client(), zerolog.Nop())

	p := New(&stillSource{frame: testFrame(t)}, client, Options{
		Interval: 5 * time.Millisecond,
		Breaker:  resilience.NewBreaker("landmarks", 1000, time.Second),
		Logger:   zerolog.Nop(),
	})
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	p.Run(ctx)

	probes, failures := p.Stats()
	if probes == 0 {
		t.Fatalf("expected probes to run")
	}
	if failures != probes {
		t.Fatalf("expected every probe to fail, probes=%d failures=%d", probes, failures)
	}
	if p.Latest() != nil {
		t.Fatalf("expected no overlay")
	}
}
