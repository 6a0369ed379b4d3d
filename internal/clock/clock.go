package clock

import "time"

// Clock provides the current wall-clock time.
// It exists so that components depending on elapsed time (i.e. session expiry) can be tested with a controlled clock.
type Clock interface {
	// Now returns the current time
	Now() time.Time
}

// System implements the Clock interface using the real system time
type System struct{}

var _ Clock = (*System)(nil)

// Now returns the current system time
func (System) Now() time.Time {
	return time.Now()
}
