// Package model defines shared data structures.
package model

import "errors"

var (
	// ErrPermissionDenied means the camera device could not be opened for lack of access.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrCameraNotReady is returned by Start when no live camera stream is open.
	ErrCameraNotReady = errors.New("camera not ready")
	// ErrNetwork covers transport failures and non-2xx responses.
	ErrNetwork = errors.New("network error")
	// ErrEmptyCapture means a submission was attempted with no buffered frames.
	ErrEmptyCapture = errors.New("no frames captured")
	// ErrMalformedResponse means a response body did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
)
