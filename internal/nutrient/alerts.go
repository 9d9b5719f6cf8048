package nutrient

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/sweeney/hydro-controller/internal/clock"
)

// DefaultAlertInterval is the minimum spacing between alerts on one channel.
const DefaultAlertInterval = time.Minute

// Alert reports a change in a channel's band status.
type Alert struct {
	Channel  Channel
	Previous Status
	Advice   DoseAdvice
	At       clock.Millis
}

// Cleared reports whether the channel returned to its band.
func (a Alert) Cleared() bool {
	return a.Advice.Status == StatusOK
}

// AlertTracker turns advice into status-change alerts, rate limited per
// channel. A suppressed change is not forgotten: it is reported on a later
// call once the limiter allows it, provided the status still differs.
// Not safe for concurrent use.
type AlertTracker struct {
	reported map[Channel]Status
	limiters map[Channel]*rate.Limiter
}

// NewAlertTracker returns a tracker that starts with both channels ok.
// A non-positive interval disables rate limiting.
func NewAlertTracker(minInterval time.Duration) *AlertTracker {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	t := &AlertTracker{
		reported: make(map[Channel]Status),
		limiters: make(map[Channel]*rate.Limiter),
	}
	for _, ch := range []Channel{ChannelPH, ChannelEC} {
		t.reported[ch] = StatusOK
		t.limiters[ch] = rate.NewLimiter(limit, 1)
	}
	return t
}

// Observe compares advice with the last reported status of each channel.
func (t *AlertTracker) Observe(advice Advice, now clock.Millis) []Alert {
	var alerts []Alert
	at := limiterTime(now)
	for _, ch := range []Channel{ChannelPH, ChannelEC} {
		current := advice.For(ch)
		prev := t.reported[ch]
		if current.Status == prev {
			continue
		}
		if !t.limiters[ch].AllowN(at, 1) {
			continue
		}
		t.reported[ch] = current.Status
		alerts = append(alerts, Alert{Channel: ch, Previous: prev, Advice: current, At: now})
	}
	return alerts
}

// Reported returns the last status announced for ch.
func (t *AlertTracker) Reported(ch Channel) Status {
	return t.reported[ch]
}

// limiterTime maps the millisecond counter onto a fixed epoch for the
// limiter, which only compares instants.
func limiterTime(now clock.Millis) time.Time {
	return time.Unix(0, 0).Add(now.Duration())
}
