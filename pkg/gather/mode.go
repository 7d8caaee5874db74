// Package gather holds the shared vocabulary of the gather pipeline: the
// gather modes a run can execute in and the resolved settings that control it.
package gather

import "fmt"

// Mode identifies the lifecycle shape of a gather run.
type Mode string

const (
	// ModeSnapshot reads the page at a single point in time.
	ModeSnapshot Mode = "snapshot"
	// ModeTimespan observes the page over a caller-controlled interval.
	ModeTimespan Mode = "timespan"
	// ModeNavigation observes a full page-load lifecycle.
	ModeNavigation Mode = "navigation"
)

// Modes returns every valid gather mode.
func Modes() []Mode {
	return []Mode{ModeSnapshot, ModeTimespan, ModeNavigation}
}

// Valid reports whether m is one of the known gather modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeSnapshot, ModeTimespan, ModeNavigation:
		return true
	}
	return false
}

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown gather mode %q", s)
	}
	return m, nil
}
