package status

import (
	"fmt"

	"github.com/sweeney/hydro-controller/internal/clock"
	"github.com/sweeney/hydro-controller/internal/logic"
)

// Fixed cycle texts.
const (
	MsgPumpOff    = "Pump is OFF"
	MsgInProgress = "Cycle in progress"
	MsgNotYet     = "N/A"
)

// FormatClock renders ms as HH:MM:SS. Hours are not wrapped into days.
func FormatClock(ms clock.Millis) string {
	secs := uint64(ms / clock.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

// FormatDays renders ms as DD:HH:MM:SS.
func FormatDays(ms clock.Millis) string {
	secs := uint64(ms / clock.Second)
	return fmt.Sprintf("%02d:%02d:%02d:%02d", secs/86400, (secs/3600)%24, (secs/60)%60, secs%60)
}

// FormatMinutes renders ms as "<m> m <s> s".
func FormatMinutes(ms clock.Millis) string {
	secs := uint64(ms / clock.Second)
	return fmt.Sprintf("%d m %d s", secs/60, secs%60)
}

// CycleView is the display state of one cycle.
type CycleView struct {
	Active    bool
	Status    string
	Next      string
	Last      string
	Remaining clock.Millis // time left while active
	UntilNext clock.Millis // time to next auto start while idle
	Runs      uint64
}

// DescribeMisting renders the misting cycle. Countdowns use HH:MM:SS.
func DescribeMisting(state logic.CycleState, timing logic.Timing, now clock.Millis) CycleView {
	return describe(state, timing.MistingInterval, timing.MistingDuration, now, FormatClock)
}

// DescribeFlushing renders the flushing cycle. Countdowns use DD:HH:MM:SS
// because the interval is measured in days.
func DescribeFlushing(state logic.CycleState, timing logic.Timing, now clock.Millis) CycleView {
	return describe(state, timing.FlushingInterval, timing.FlushingDuration, now, FormatDays)
}

func describe(state logic.CycleState, interval, duration, now clock.Millis, next func(clock.Millis) string) CycleView {
	v := CycleView{Active: state.Active, Runs: state.Runs, Last: MsgNotYet}
	if state.Runs > 0 {
		v.Last = FormatClock(state.Start)
	}

	if state.Active {
		v.Remaining = clock.Remaining(state.Start, duration, now)
		v.Status = "Pump ON, " + FormatMinutes(v.Remaining) + " left"
		v.Next = MsgInProgress
		return v
	}

	v.UntilNext = clock.Until(state.Start, interval, now)
	v.Status = MsgPumpOff
	v.Next = next(v.UntilNext)
	return v
}
