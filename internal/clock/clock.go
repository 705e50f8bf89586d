// Package clock wraps wall-clock access so session timing can be driven
// by a controllable clock in tests.
package clock

import "time"

// Clock supplies the current time. Implementations must be side-effect
// free; the session engine derives every remaining-time value from
// Now() against a stored absolute deadline.
type Clock interface {
	Now() time.Time
}

// System is the production Clock backed by time.Now.
type System struct{}

func (System) Now() time.Time { return time.Now() }
