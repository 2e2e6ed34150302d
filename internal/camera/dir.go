// Package camera provides a still-frame replay source.
package camera

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DirSource replays the still images of a directory in name order, looping at the end.
type DirSource struct {
	dir string

	mu     sync.Mutex
	frames [][]byte
	next   int
	open   bool
}

// NewDirSource returns a source reading from dir.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// Open loads every .jpg, .jpeg and .png file and converts them to JPEG.
func (s *DirSource) Open(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to open frames dir: %w", permissionError(s.dir, err))
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("no frames found in %s", s.dir)
	}
	sort.Strings(names)

	frames := make([][]byte, 0, len(names))
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read frame: %w", permissionError(path, err))
		}
		frame, err := toJPEG(data)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		frames = append(frames, frame)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = frames
	s.next = 0
	s.open = true
	return nil
}

// Snapshot returns the next frame.
func (s *DirSource) Snapshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrClosed
	}
	frame := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	return frame, nil
}

// Close forgets the loaded frames.
func (s *DirSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.frames = nil
	return nil
}
