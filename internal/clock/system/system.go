// Package system supplies wall-clock time to code that takes an
// injectable clock, keeping snapshot paths and timestamps testable.
package system

import "time"

// Clock reads the system clock.
type Clock struct{}

// New returns a system Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
