// Package camera provides an ffmpeg-backed device source.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	readChunk    = 64 * 1024
	maxFrameSize = 8 << 20
	openTimeout  = 10 * time.Second
)

// FFmpegSource streams MJPEG from a capture device through an ffmpeg child process
// and keeps the most recent complete frame.
type FFmpegSource struct {
	device string
	width  int
	height int
	log    zerolog.Logger

	mu      sync.Mutex
	latest  []byte
	readErr error
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFFmpegSource returns a source for device (for example /dev/video0) at the given resolution.
func NewFFmpegSource(device string, width, height int, log zerolog.Logger) *FFmpegSource {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	return &FFmpegSource{
		device: device,
		width:  width,
		height: height,
		log:    log.With().Str("component", "camera").Logger(),
	}
}

// Open starts ffmpeg and waits for the first frame.
func (s *FFmpegSource) Open(ctx context.Context) error {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	if runtime.GOOS == "linux" {
		f, err := os.Open(s.device)
		if err != nil {
			return fmt.Errorf("failed to open camera: %w", permissionError(s.device, err))
		}
		if cerr := f.Close(); cerr != nil {
			// Best-effort close of the access probe.
			_ = cerr
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, ffmpegPath, s.args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to open ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	s.log.Info().Str("device", s.device).Int("width", s.width).Int("height", s.height).Msg("camera stream started")

	first := make(chan struct{})
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.latest = nil
	s.readErr = nil
	s.mu.Unlock()

	go func() {
		defer close(done)
		err := s.readFrames(stdout, first)
		waitErr := cmd.Wait()
		if err == nil {
			err = waitErr
		}
		if err != nil && runCtx.Err() == nil {
			s.log.Error().Err(err).Str("stderr", lastLine(stderr.Bytes())).Msg("camera stream ended")
		}
		s.mu.Lock()
		if err == nil {
			err = io.EOF
		}
		s.readErr = err
		s.mu.Unlock()
	}()

	timer := time.NewTimer(openTimeout)
	defer timer.Stop()
	select {
	case <-first:
		return nil
	case <-done:
		s.mu.Lock()
		err := s.readErr
		s.mu.Unlock()
		return fmt.Errorf("camera stream ended before first frame: %w", err)
	case <-timer.C:
		_ = s.Close()
		return fmt.Errorf("camera produced no frame within %s", openTimeout)
	case <-ctx.Done():
		_ = s.Close()
		return ctx.Err()
	}
}

func (s *FFmpegSource) args() []string {
	input := []string{"-f", "v4l2", "-framerate", "30", "-video_size", fmt.Sprintf("%dx%d", s.width, s.height), "-i", s.device}
	switch runtime.GOOS {
	case "darwin":
		input = []string{"-f", "avfoundation", "-framerate", "30", "-video_size", fmt.Sprintf("%dx%d", s.width, s.height), "-i", s.device}
	case "windows":
		input = []string{"-f", "dshow", "-i", "video=" + s.device}
	}
	out := []string{"-loglevel", "error", "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "5", "-"}
	return append(append([]string{"-hide_banner"}, input...), out...)
}

func (s *FFmpegSource) readFrames(r io.Reader, first chan<- struct{}) error {
	buf := make([]byte, 0, readChunk*2)
	chunk := make([]byte, readChunk)
	signalled := false
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			var frames [][]byte
			frames, buf = splitJPEG(buf)
			if len(frames) > 0 {
				s.mu.Lock()
				s.latest = frames[len(frames)-1]
				s.mu.Unlock()
				if !signalled {
					close(first)
					signalled = true
				}
			}
			if len(buf) > maxFrameSize {
				return fmt.Errorf("frame exceeds %d bytes", maxFrameSize)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// splitJPEG extracts complete SOI..EOI frames from buf and returns the unconsumed tail.
func splitJPEG(buf []byte) ([][]byte, []byte) {
	var frames [][]byte
	for {
		start := bytes.Index(buf, []byte{0xFF, 0xD8})
		if start < 0 {
			// Keep a trailing 0xFF in case it starts the next marker.
			if n := len(buf); n > 0 && buf[n-1] == 0xFF {
				return frames, append(buf[:0], 0xFF)
			}
			return frames, buf[:0]
		}
		end := bytes.Index(buf[start+2:], []byte{0xFF, 0xD9})
		if end < 0 {
			rest := make([]byte, len(buf)-start)
			copy(rest, buf[start:])
			return frames, rest
		}
		stop := start + 2 + end + 2
		frame := make([]byte, stop-start)
		copy(frame, buf[start:stop])
		frames = append(frames, frame)
		buf = buf[stop:]
	}
}

// Snapshot returns the most recent frame.
func (s *FFmpegSource) Snapshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return nil, ErrClosed
	}
	if s.readErr != nil {
		return nil, fmt.Errorf("camera stream stopped: %w", s.readErr)
	}
	if s.latest == nil {
		return nil, ErrClosed
	}
	return s.latest, nil
}

// Close stops ffmpeg and waits for the reader to exit.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	s.log.Info().Msg("camera stream stopped")
	return nil
}

func lastLine(b []byte) string {
	b = bytes.TrimSpace(b)
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	return string(b)
}
