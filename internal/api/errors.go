// Package api is the HTTP client for the LipLearn prediction service.
package api

import (
	"fmt"

	"github.com/projectlif/liplearn/internal/model"
)

// NetworkError describes a transport failure or a non-2xx response.
type NetworkError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s: server returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is matches model.ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == model.ErrNetwork
}
