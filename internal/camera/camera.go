// Package camera provides frame sources for recording and landmark probing.
package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"os"

	// Registered for image.Decode on replayed stills.
	_ "image/png"

	"github.com/projectlif/liplearn/internal/model"
)

// JPEGQuality is the encoder quality used for every frame handed to the service.
const JPEGQuality = 85

// Source is a live camera stream that can produce JPEG snapshots on demand.
type Source interface {
	// Open acquires the device. Permission failures wrap model.ErrPermissionDenied.
	Open(ctx context.Context) error
	// Snapshot returns the current frame as JPEG bytes.
	Snapshot(ctx context.Context) ([]byte, error)
	// Close releases the device.
	Close() error
}

// ErrClosed is returned by Snapshot after Close or before Open.
var ErrClosed = errors.New("camera is not open")

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// toJPEG re-encodes data as JPEG unless it already is one.
func toJPEG(data []byte) ([]byte, error) {
	if isJPEG(data) {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return encodeJPEG(img)
}

func isJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}

func permissionError(path string, err error) error {
	if errors.Is(err, fs.ErrPermission) || os.IsPermission(err) {
		return fmt.Errorf("%w: %s", model.ErrPermissionDenied, path)
	}
	return err
}
