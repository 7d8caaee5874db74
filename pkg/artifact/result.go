// Package artifact holds the value-or-error results produced by collectors
// and the bag that accumulates them across navigations.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Result is a single collector outcome: either a value or the error that
// prevented one. Errors crossing the orchestrator boundary become Results,
// never re-thrown panics, so downstream consumers pattern-match instead of
// recovering.
type Result struct {
	value any
	err   error
}

// Value wraps a successful collector outcome.
func Value(v any) Result {
	return Result{value: v}
}

// Failure wraps a captured collector error.
func Failure(err error) Result {
	if err == nil {
		err = errors.New("collector failed without an error")
	}
	return Result{err: err}
}

// IsError reports whether the result carries an error instead of a value.
func (r Result) IsError() bool {
	return r.err != nil
}

// Err returns the captured error, or nil for a successful result.
func (r Result) Err() error {
	return r.err
}

// Get returns the value and captured error. Exactly one is meaningful.
func (r Result) Get() (any, error) {
	return r.value, r.err
}

// MustValue returns the stored value and panics on an error result. It exists
// for tests and internal assertions, never for the runner's hot path.
func (r Result) MustValue() any {
	if r.err != nil {
		panic(fmt.Sprintf("artifact: MustValue on error result: %v", r.err))
	}
	return r.value
}

// savedResult is the persisted wire shape of a Result.
type savedResult struct {
	Value any         `json:"value,omitempty"`
	Error *savedError `json:"error,omitempty"`
}

type savedError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Coder is implemented by errors that carry a short machine-readable code.
type Coder interface {
	ErrorCode() string
}

// MarshalJSON persists error results as structured error objects so a saved
// run round-trips without losing failure information.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.err == nil {
		return json.Marshal(savedResult{Value: r.value})
	}
	se := &savedError{Message: r.err.Error()}
	var coder Coder
	if errors.As(r.err, &coder) {
		se.Code = coder.ErrorCode()
	}
	return json.Marshal(savedResult{Error: se})
}

// UnmarshalJSON restores a persisted result. Restored errors are plain
// errors carrying the original message (and code, when present).
func (r *Result) UnmarshalJSON(data []byte) error {
	var saved savedResult
	if err := json.Unmarshal(data, &saved); err != nil {
		return err
	}
	if saved.Error != nil {
		*r = Failure(&restoredError{code: saved.Error.Code, message: saved.Error.Message})
		return nil
	}
	*r = Value(saved.Value)
	return nil
}

// restoredError is a Result error re-hydrated from a saved run.
type restoredError struct {
	code    string
	message string
}

func (e *restoredError) Error() string {
	return e.message
}

func (e *restoredError) ErrorCode() string {
	return e.code
}
