package protocol

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnectionClosed is returned for commands sent after the underlying
	// transport has closed.
	ErrConnectionClosed = errors.New("protocol connection closed")

	// ErrSessionDisposed is returned for commands sent on a disposed session.
	ErrSessionDisposed = errors.New("protocol session disposed")
)

// TimeoutError reports that a command's response did not arrive within the
// session's timeout window.
type TimeoutError struct {
	Method  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("PROTOCOL_TIMEOUT: %s did not respond within %s", e.Method, e.Timeout)
}

// ErrorCode returns the stable code stored with captured timeout errors.
func (e *TimeoutError) ErrorCode() string {
	return "PROTOCOL_TIMEOUT"
}

// IsTimeout reports whether err is a protocol command timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// ResponseError is an error object returned by the remote debugging target.
type ResponseError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("protocol error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}
