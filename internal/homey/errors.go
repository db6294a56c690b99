package homey

import (
	"errors"
	"fmt"
)

// ErrAPI matches every error returned by Client, so callers can test
// errors.Is(err, ErrAPI) without caring about the concrete kind.
var ErrAPI = errors.New("easy homey api error")

// ConnectionError is returned when the API cannot be reached.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("error connecting to api (%s): %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error        { return e.Err }
func (e *ConnectionError) Is(target error) bool { return target == ErrAPI }

// TimeoutError is returned when a request exceeds the client timeout.
type TimeoutError struct {
	Endpoint string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout connecting to api (%s): %v", e.Endpoint, e.Err)
}

func (e *TimeoutError) Unwrap() error        { return e.Err }
func (e *TimeoutError) Is(target error) bool { return target == ErrAPI }

// APIError covers non-2xx responses and anything else unexpected,
// such as an undecodable body.
type APIError struct {
	Endpoint   string
	StatusCode int // 0 when no response status applies
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("api error (%s): status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("api error (%s): %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("api error (%s): %s", e.Endpoint, e.Message)
}

func (e *APIError) Unwrap() error        { return e.Err }
func (e *APIError) Is(target error) bool { return target == ErrAPI }
