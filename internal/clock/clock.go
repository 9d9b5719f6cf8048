// Package clock provides the monotonic millisecond time base used by the
// control loop. Readings never go backwards during a run. All interval math
// is modular, so comparisons stay correct when the counter wraps.
package clock

import (
	"time"
)

// Millis is a count of milliseconds since process start.
type Millis uint64

// Common spans.
const (
	Second Millis = 1000
	Minute        = 60 * Second
	Hour          = 60 * Minute
	Day           = 24 * Hour
)

// FromDuration converts a duration to Millis. Negative durations map to 0.
func FromDuration(d time.Duration) Millis {
	if d <= 0 {
		return 0
	}
	return Millis(d / time.Millisecond)
}

// Duration converts m to a time.Duration. Values too large for Duration
// saturate at its maximum.
func (m Millis) Duration() time.Duration {
	const max = Millis(1<<63-1) / Millis(time.Millisecond)
	if m > max {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(m) * time.Millisecond
}

// Clock is a monotonic millisecond source.
type Clock interface {
	Now() Millis
}

// Real reads the process monotonic clock.
type Real struct {
	start time.Time
}

// NewReal returns a Clock whose zero is the moment of the call.
func NewReal() *Real {
	return &Real{start: time.Now()}
}

// Now returns milliseconds elapsed since NewReal. time.Since uses the
// monotonic reading, so wall clock steps do not affect it.
func (r *Real) Now() Millis {
	return FromDuration(time.Since(r.start))
}

// Started returns the wall time at which the clock was created.
func (r *Real) Started() time.Time {
	return r.start
}

// Since returns now-start using modular arithmetic.
func Since(now, start Millis) Millis {
	return now - start
}

// Remaining returns the time left in a span of length span that began at
// start. When the modular result is larger than span the span is over (or
// now is before start) and 0 is returned.
func Remaining(start, span, now Millis) Millis {
	r := start + span - now
	if r > span {
		return 0
	}
	return r
}

// Until returns the time until start+span. When the modular result is
// larger than span it is clamped to span.
func Until(start, span, now Millis) Millis {
	r := start + span - now
	if r > span {
		return span
	}
	return r
}
