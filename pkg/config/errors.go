package config

import "fmt"

// Error is a fatal configuration error: the run aborts before any browser
// interaction occurs.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// ErrorCode returns the stable code stored with captured config errors.
func (e *Error) ErrorCode() string {
	if e.Code == "" {
		return "CONFIG_INVALID"
	}
	return e.Code
}

func newError(format string, args ...any) *Error {
	return &Error{Code: "CONFIG_INVALID", Message: fmt.Sprintf(format, args...)}
}
